package automation

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dewansh/dewhome-core/internal/device"
	"github.com/dewansh/dewhome-core/internal/infrastructure/database"
	_ "github.com/dewansh/dewhome-core/migrations" // registers schema migrations
)

// setupTestDB opens a migrated database holding devices 1 and 2.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "actions.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	devices := device.NewSQLiteRepository(db.DB)
	for _, pin := range []int{17, 18} {
		d := &device.Device{Name: "Light", Icon: "lightbulb", PinNumber: pin, State: device.StateLow}
		if err := devices.Create(ctx, d); err != nil {
			t.Fatalf("seeding device: %v", err)
		}
	}
	return db.DB
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	a := validAction()
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if a.ID == 0 {
		t.Fatal("Create() did not assign an ID")
	}

	got, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != a.Name || got.Type != a.Type || got.Schedule != a.Schedule || !got.Enabled {
		t.Errorf("GetByID() = %+v, want fields of %+v", got, a)
	}
	if len(got.DeviceActions) != 2 {
		t.Fatalf("len(DeviceActions) = %d, want 2", len(got.DeviceActions))
	}
	if got.DeviceActions[1] != a.DeviceActions[1] {
		t.Errorf("DeviceActions[1] = %+v, want %+v", got.DeviceActions[1], a.DeviceActions[1])
	}
	if got.LastRun != nil {
		t.Errorf("LastRun = %v, want nil", got.LastRun)
	}
}

func TestSQLiteRepository_Create_PreservesStepOrder(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	a := validAction()
	a.DeviceActions = []DeviceAction{
		{DeviceID: 2, ActionType: device.CommandLow},
		{DeviceID: 1, ActionType: device.CommandHigh, DelaySeconds: 3},
		{DeviceID: 2, ActionType: device.CommandHigh, DelaySeconds: 1},
	}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	actions, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("len(List()) = %d, want 1", len(actions))
	}
	for i, want := range a.DeviceActions {
		if actions[0].DeviceActions[i] != want {
			t.Errorf("step %d = %+v, want %+v", i, actions[0].DeviceActions[i], want)
		}
	}
}

func TestSQLiteRepository_Create_UnknownDeviceRollsBack(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	a := validAction()
	a.DeviceActions[1].DeviceID = 99
	if err := repo.Create(ctx, a); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("Create() error = %v, want ErrUnknownDevice", err)
	}

	actions, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(actions) != 0 {
		t.Errorf("List() returned %d actions after failed create, want 0", len(actions))
	}
}

func TestSQLiteRepository_GetByID_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	if _, err := repo.GetByID(context.Background(), 42); !errors.Is(err, ErrActionNotFound) {
		t.Errorf("GetByID() error = %v, want ErrActionNotFound", err)
	}
}

func TestSQLiteRepository_SetEnabledAndLastRun(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	a := validAction()
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.SetEnabled(ctx, a.ID, false, time.Now()); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	ran := time.Date(2026, 3, 4, 7, 30, 0, 0, time.UTC)
	if err := repo.SetLastRun(ctx, a.ID, ran); err != nil {
		t.Fatalf("SetLastRun() error = %v", err)
	}

	got, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Enabled {
		t.Error("Enabled = true, want false")
	}
	if got.LastRun == nil || !got.LastRun.Equal(ran) {
		t.Errorf("LastRun = %v, want %v", got.LastRun, ran)
	}

	if err := repo.SetEnabled(ctx, 999, true, time.Now()); !errors.Is(err, ErrActionNotFound) {
		t.Errorf("SetEnabled(999) error = %v, want ErrActionNotFound", err)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	a := validAction()
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Referenced devices cannot be deleted while the action exists.
	devices := device.NewSQLiteRepository(db)
	if err := devices.Delete(ctx, 1); !errors.Is(err, device.ErrDeviceInUse) {
		t.Fatalf("deleting referenced device error = %v, want ErrDeviceInUse", err)
	}

	if err := repo.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, a.ID); !errors.Is(err, ErrActionNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrActionNotFound", err)
	}
	if err := devices.Delete(ctx, 1); err != nil {
		t.Errorf("deleting device after action removal error = %v", err)
	}
	if err := repo.Delete(ctx, a.ID); !errors.Is(err, ErrActionNotFound) {
		t.Errorf("second Delete() error = %v, want ErrActionNotFound", err)
	}
}

func TestSQLiteRepository_Executions(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	a := validAction()
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	base := time.Date(2026, 3, 4, 7, 30, 0, 0, time.UTC)
	for i, status := range []ExecutionStatus{StatusSuccess, StatusPartial, StatusError} {
		started := base.Add(time.Duration(i) * 1500 * time.Millisecond)
		completed := started.Add(250 * time.Millisecond)
		dur := int64(250)
		e := &Execution{
			ID:          string(status) + "-run",
			ActionID:    a.ID,
			Trigger:     TriggerSchedule,
			Status:      status,
			Message:     "run " + string(status),
			StepsTotal:  2,
			StepsFailed: i,
			StartedAt:   started,
			CompletedAt: &completed,
			DurationMS:  &dur,
		}
		if err := repo.CreateExecution(ctx, e); err != nil {
			t.Fatalf("CreateExecution() error = %v", err)
		}
	}

	got, err := repo.ListExecutions(ctx, a.ID, 2)
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(ListExecutions()) = %d, want 2", len(got))
	}
	if got[0].Status != StatusError || got[1].Status != StatusPartial {
		t.Errorf("statuses = %s, %s, want newest first (error, partial)", got[0].Status, got[1].Status)
	}
	if got[0].DurationMS == nil || *got[0].DurationMS != 250 {
		t.Errorf("DurationMS = %v, want 250", got[0].DurationMS)
	}
	if !got[0].StartedAt.Equal(base.Add(3 * time.Second)) {
		t.Errorf("StartedAt = %v, want %v", got[0].StartedAt, base.Add(3*time.Second))
	}

	empty, err := repo.ListExecutions(ctx, 999, 0)
	if err != nil {
		t.Fatalf("ListExecutions(999) error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ListExecutions(999) = %d rows, want 0", len(empty))
	}

	orphan := &Execution{ID: "orphan", ActionID: 999, Trigger: TriggerManual, Status: StatusSuccess, StartedAt: base}
	if err := repo.CreateExecution(ctx, orphan); !errors.Is(err, ErrActionNotFound) {
		t.Errorf("CreateExecution(orphan) error = %v, want ErrActionNotFound", err)
	}
}
