package device

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dewansh/dewhome-core/internal/infrastructure/database"
	_ "github.com/dewansh/dewhome-core/migrations" // registers schema migrations
)

// setupTestDB opens a migrated SQLite database in a temp directory.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "devices.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db.DB
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := &Device{Name: "Porch", Icon: "lightbulb", PinNumber: 17, State: StateLow}
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if d.ID == 0 {
		t.Fatal("Create() did not assign an ID")
	}
	if d.CreatedAt.IsZero() {
		t.Error("Create() did not set CreatedAt")
	}

	got, err := repo.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Porch" || got.PinNumber != 17 || got.State != StateLow || got.Icon != "lightbulb" {
		t.Errorf("GetByID() = %+v, want Porch on pin 17, low", got)
	}
}

func TestSQLiteRepository_GetByID_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), 42)
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_DuplicatePin(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, &Device{Name: "A", Icon: "fan", PinNumber: 18, State: StateLow}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	err := repo.Create(ctx, &Device{Name: "B", Icon: "fan", PinNumber: 18, State: StateLow})
	if !errors.Is(err, ErrPinInUse) {
		t.Errorf("Create() duplicate pin error = %v, want ErrPinInUse", err)
	}
}

func TestSQLiteRepository_ListOrderedByID(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	for _, pin := range []int{27, 17, 22} {
		if err := repo.Create(ctx, &Device{Name: "D", Icon: "fan", PinNumber: pin, State: StateLow}); err != nil {
			t.Fatalf("Create(pin %d) error = %v", pin, err)
		}
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("len(List()) = %d, want 3", len(devices))
	}
	for i := 1; i < len(devices); i++ {
		if devices[i-1].ID >= devices[i].ID {
			t.Errorf("List() not ordered by id: %d before %d", devices[i-1].ID, devices[i].ID)
		}
	}
}

func TestSQLiteRepository_UpdateState(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := &Device{Name: "Heater", Icon: "fire", PinNumber: 23, State: StateLow}
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	at := time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC)
	if err := repo.UpdateState(ctx, d.ID, StateHigh, at); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}

	got, err := repo.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.State != StateHigh {
		t.Errorf("State = %q, want high", got.State)
	}
	if !got.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, at)
	}

	if err := repo.UpdateState(ctx, 999, StateHigh, at); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("UpdateState(missing) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := &Device{Name: "Pump", Icon: "water", PinNumber: 24, State: StateLow}
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	t.Run("referenced by action", func(t *testing.T) {
		now := time.Now().UTC().Format(time.RFC3339)
		if _, err := db.ExecContext(ctx,
			`INSERT INTO actions (id, name, type, schedule, enabled, created_at, updated_at)
			 VALUES (1, 'Water', 'interval', '1h', 1, ?, ?)`, now, now); err != nil {
			t.Fatalf("inserting action: %v", err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO action_devices (action_id, position, device_id, action_type, delay_seconds)
			 VALUES (1, 0, ?, 'high', 0)`, d.ID); err != nil {
			t.Fatalf("inserting action step: %v", err)
		}

		if err := repo.Delete(ctx, d.ID); !errors.Is(err, ErrDeviceInUse) {
			t.Fatalf("Delete() error = %v, want ErrDeviceInUse", err)
		}

		if _, err := db.ExecContext(ctx, "DELETE FROM actions WHERE id = 1"); err != nil {
			t.Fatalf("deleting action: %v", err)
		}
	})

	t.Run("unreferenced", func(t *testing.T) {
		if err := repo.Delete(ctx, d.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := repo.GetByID(ctx, d.ID); !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("GetByID() after Delete error = %v, want ErrDeviceNotFound", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		if err := repo.Delete(ctx, d.ID); !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("Delete() missing error = %v, want ErrDeviceNotFound", err)
		}
	})
}
