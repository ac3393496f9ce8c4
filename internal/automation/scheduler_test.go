package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dewansh/dewhome-core/internal/device"
)

func newTestScheduler(t *testing.T) (*Scheduler, *engineFixture) {
	t.Helper()
	f := newEngineFixture(t)
	s := NewScheduler(f.engine, f.registry, time.UTC)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx) //nolint:errcheck // Test cleanup
	})
	return s, f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScheduler_StartArmsEnabledActions(t *testing.T) {
	s, f := newTestScheduler(t)

	timer := createAction(t, f.registry, validAction())
	disabled := validAction()
	disabled.Enabled = false
	createAction(t, f.registry, disabled)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	next, ok := s.NextRun(timer.ID)
	if !ok {
		t.Fatal("enabled timer not armed")
	}
	if next.Minute() != 30 || next.Hour() != 7 {
		t.Errorf("NextRun = %v, want 07:30", next)
	}
	if _, ok := s.NextRun(disabled.ID); ok {
		t.Error("disabled action armed")
	}
}

func TestScheduler_ScheduleAndUnschedule(t *testing.T) {
	s, f := newTestScheduler(t)
	a := createAction(t, f.registry, validAction())

	if err := s.Schedule(a); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if _, ok := s.NextRun(a.ID); !ok {
		t.Fatal("action not armed after Schedule")
	}

	a.Enabled = false
	if err := s.Schedule(a); err != nil {
		t.Fatalf("Schedule(disabled) error = %v", err)
	}
	if _, ok := s.NextRun(a.ID); ok {
		t.Error("disabled action still armed")
	}

	a.Enabled = true
	if err := s.Schedule(a); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	s.Unschedule(a.ID)
	if _, ok := s.NextRun(a.ID); ok {
		t.Error("action armed after Unschedule")
	}

	bad := &Action{ID: 99, Type: TypeInterval, Schedule: "1d", Enabled: true}
	if err := s.Schedule(bad); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("Schedule(bad) error = %v, want ErrInvalidSchedule", err)
	}
}

func TestScheduler_Annotate(t *testing.T) {
	s, f := newTestScheduler(t)
	armed := createAction(t, f.registry, validAction())
	idle := validAction()
	idle.Enabled = false
	createAction(t, f.registry, idle)
	if err := s.Schedule(armed); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	s.Annotate(armed, idle)
	if armed.NextRun == nil {
		t.Error("armed action has no NextRun")
	}
	if idle.NextRun != nil {
		t.Error("idle action has a NextRun")
	}
}

func TestScheduler_IntervalFires(t *testing.T) {
	s, f := newTestScheduler(t)

	a := validAction()
	a.Type = TypeInterval
	a.Schedule = "1s"
	createAction(t, f.registry, a)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, "interval run", func() bool { return len(f.repo.allExecutions()) > 0 })
	exec := f.repo.allExecutions()[0]
	if exec.Trigger != TriggerSchedule || exec.Status != StatusSuccess {
		t.Errorf("execution = %s/%s, want schedule/success", exec.Trigger, exec.Status)
	}
}

func TestScheduler_Countdown(t *testing.T) {
	s, f := newTestScheduler(t)
	now := time.Date(2026, 3, 4, 7, 12, 45, 0, time.UTC)
	s.now = func() time.Time { return now }

	a := validAction()
	a.Type = TypeCountdown
	a.Schedule = "30m"
	createAction(t, f.registry, a)

	if err := s.Schedule(a); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	next, ok := s.NextRun(a.ID)
	if !ok {
		t.Fatal("countdown not armed")
	}
	if want := time.Date(2026, 3, 4, 7, 42, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("NextRun = %v, want %v", next, want)
	}

	s.mu.Lock()
	cd := s.timers[a.ID]
	s.mu.Unlock()
	cd.timer.Stop()
	s.fireCountdown(a.ID, cd)
	s.Wait()

	execs := f.repo.allExecutions()
	if len(execs) != 1 || execs[0].Status != StatusSuccess {
		t.Fatalf("executions = %+v, want one success", execs)
	}
	got, _ := f.registry.GetAction(context.Background(), a.ID) //nolint:errcheck // Exists
	if got.Enabled {
		t.Error("countdown still enabled after firing")
	}
	if _, ok := s.NextRun(a.ID); ok {
		t.Error("countdown still armed after firing")
	}
}

func TestScheduler_CountdownSkippedWhileRunningIsConsumed(t *testing.T) {
	s, f := newTestScheduler(t)
	f.engine.after = func(time.Duration) <-chan time.Time { return nil }

	a := validAction()
	a.Type = TypeCountdown
	a.Schedule = "30m"
	a.DeviceActions = []DeviceAction{{DeviceID: 1, ActionType: device.CommandHigh, DelaySeconds: 30}}
	createAction(t, f.registry, a)

	if err := s.Schedule(a); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if err := s.RunNow(context.Background(), a.ID); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	if !s.isRunning(a.ID) {
		t.Fatal("manual run not in progress")
	}

	s.mu.Lock()
	cd := s.timers[a.ID]
	s.mu.Unlock()
	cd.timer.Stop()
	s.fireCountdown(a.ID, cd)

	got, _ := f.registry.GetAction(context.Background(), a.ID) //nolint:errcheck // Exists
	if got.Enabled {
		t.Error("countdown still enabled after a skipped firing")
	}
	if _, ok := s.NextRun(a.ID); ok {
		t.Error("countdown still armed after a skipped firing")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if execs := f.repo.allExecutions(); len(execs) != 1 || execs[0].Trigger != TriggerManual {
		t.Errorf("executions = %+v, want only the manual run", execs)
	}
}

func TestScheduler_RunNow(t *testing.T) {
	s, f := newTestScheduler(t)
	a := validAction()
	a.Enabled = false
	createAction(t, f.registry, a)

	if err := s.RunNow(context.Background(), a.ID); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	s.Wait()

	execs := f.repo.allExecutions()
	if len(execs) != 1 || execs[0].Trigger != TriggerManual || execs[0].Status != StatusSuccess {
		t.Fatalf("executions = %+v, want one manual success", execs)
	}

	if err := s.RunNow(context.Background(), 404); !errors.Is(err, ErrActionNotFound) {
		t.Errorf("RunNow(404) error = %v, want ErrActionNotFound", err)
	}
}

func TestScheduler_NoOverlapAndStop(t *testing.T) {
	s, f := newTestScheduler(t)
	f.engine.after = func(time.Duration) <-chan time.Time { return nil }

	a := validAction()
	a.DeviceActions = []DeviceAction{{DeviceID: 1, ActionType: device.CommandHigh, DelaySeconds: 30}}
	createAction(t, f.registry, a)

	if err := s.RunNow(context.Background(), a.ID); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	if !s.isRunning(a.ID) {
		t.Fatal("action not marked running")
	}
	if err := s.RunNow(context.Background(), a.ID); !errors.Is(err, ErrActionRunning) {
		t.Errorf("overlapping RunNow() error = %v, want ErrActionRunning", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if s.isRunning(a.ID) {
		t.Error("action still running after Stop")
	}

	execs := f.repo.allExecutions()
	if len(execs) != 1 || execs[0].Status != StatusError {
		t.Errorf("executions = %+v, want one cancelled run", execs)
	}
	if err := s.RunNow(context.Background(), a.ID); !errors.Is(err, ErrSchedulerStopped) {
		t.Errorf("RunNow() after Stop error = %v, want ErrSchedulerStopped", err)
	}
}
