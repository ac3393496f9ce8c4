package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler arms enabled actions and hands due runs to the Engine.
//
// Timers and intervals are cron entries. Countdowns use a one-shot timer and
// disable their action after firing so they do not re-arm on restart. Runs
// execute in their own goroutines; a trigger that arrives while the same
// action is still running is skipped.
type Scheduler struct {
	engine   *Engine
	registry *Registry
	logger   Logger
	loc      *time.Location
	cron     *cron.Cron

	// now is time.Now, replaceable in tests.
	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	entries map[int64]cron.EntryID
	timers  map[int64]*countdown
	running map[int64]bool
	started bool
	stopped bool
}

type countdown struct {
	timer *time.Timer
	at    time.Time
}

// NewScheduler creates a scheduler that evaluates timers in loc.
// A nil loc means time.Local.
func NewScheduler(engine *Engine, registry *Registry, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		engine:   engine,
		registry: registry,
		logger:   noopLogger{},
		loc:      loc,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		entries:  make(map[int64]cron.EntryID),
		timers:   make(map[int64]*countdown),
		running:  make(map[int64]bool),
	}
	s.cron = s.newCron()
	return s
}

func (s *Scheduler) newCron() *cron.Cron {
	l := cronLogger{s}
	return cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l)),
	)
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// Start arms every enabled action and starts the cron runner.
// Actions whose stored schedule no longer parses are logged and left unarmed.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSchedulerStopped
	}
	s.started = true
	s.mu.Unlock()

	armed := 0
	for _, a := range s.registry.ListActions() {
		if !a.Enabled {
			continue
		}
		if err := s.Schedule(&a); err != nil {
			s.logger.Warn("action not scheduled", "action_id", a.ID, "name", a.Name, "error", err)
			continue
		}
		armed++
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "armed", armed, "timezone", s.loc.String())
	return nil
}

// Stop disarms all actions, cancels in-flight runs and waits for them to
// return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	for id, cd := range s.timers {
		cd.timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running actions: %w", ctx.Err())
	}
}

// Schedule arms a, replacing any existing arming. A disabled action is
// only disarmed.
func (s *Scheduler) Schedule(a *Action) error {
	sched, err := ParseSchedule(a.Type, a.Schedule)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}
	s.unscheduleLocked(a.ID)
	if !a.Enabled {
		return nil
	}

	id := a.ID
	if cs := sched.cronSchedule(); cs != nil {
		s.entries[id] = s.cron.Schedule(cs, cron.FuncJob(func() {
			s.trigger(id)
		}))
		return nil
	}

	now := s.now()
	at := sched.Next(now.In(s.loc))
	cd := &countdown{at: at}
	cd.timer = time.AfterFunc(at.Sub(now), func() {
		s.fireCountdown(id, cd)
	})
	s.timers[id] = cd
	return nil
}

// Unschedule disarms the action with the given ID.
func (s *Scheduler) Unschedule(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unscheduleLocked(id)
}

func (s *Scheduler) unscheduleLocked(id int64) {
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
	if cd, ok := s.timers[id]; ok {
		cd.timer.Stop()
		delete(s.timers, id)
	}
}

// NextRun returns when the action fires next, if it is armed.
func (s *Scheduler) NextRun(id int64) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cd, ok := s.timers[id]; ok {
		return cd.at, true
	}
	entryID, ok := s.entries[id]
	if !ok {
		return time.Time{}, false
	}
	entry := s.cron.Entry(entryID)
	if !entry.Valid() {
		return time.Time{}, false
	}
	if !entry.Next.IsZero() {
		return entry.Next, true
	}
	// Entries added before the runner starts have no Next yet.
	return entry.Schedule.Next(s.now().In(s.loc)), true
}

// Annotate fills in NextRun on each action.
func (s *Scheduler) Annotate(actions ...*Action) {
	for _, a := range actions {
		a.NextRun = nil
		if next, ok := s.NextRun(a.ID); ok {
			next = next.UTC()
			a.NextRun = &next
		}
	}
}

// RunNow starts a manual run in the background. It returns ErrActionNotFound
// for an unknown action and ErrActionRunning when a run is already in progress.
func (s *Scheduler) RunNow(ctx context.Context, id int64) error {
	if _, err := s.registry.GetAction(ctx, id); err != nil {
		return err
	}
	return s.launch(id, TriggerManual, nil)
}

// isRunning reports whether the action currently has a run in progress.
func (s *Scheduler) isRunning(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[id]
}

// Wait blocks until every launched run has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) trigger(id int64) {
	if err := s.launch(id, TriggerSchedule, nil); err != nil {
		s.logger.Warn("scheduled run skipped", "action_id", id, "error", err)
	}
}

func (s *Scheduler) fireCountdown(id int64, cd *countdown) {
	s.mu.Lock()
	if s.timers[id] != cd {
		// Disarmed or re-armed after the timer fired.
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	s.mu.Unlock()

	err := s.launch(id, TriggerSchedule, func() { s.disableCountdown(id) })
	if err == nil {
		return
	}
	s.logger.Warn("countdown run skipped", "action_id", id, "error", err)
	// A countdown fires once. Skipping it because a manual run is in
	// progress still consumes it; only a shutdown leaves it armed for the
	// next start.
	if errors.Is(err, ErrActionRunning) {
		s.disableCountdown(id)
	}
}

func (s *Scheduler) disableCountdown(id int64) {
	if _, err := s.registry.SetEnabled(context.WithoutCancel(s.ctx), id, false); err != nil &&
		!errors.Is(err, ErrActionNotFound) {
		s.logger.Error("disabling fired countdown", "action_id", id, "error", err)
	}
}

// launch runs the action in a tracked goroutine. then, if set, runs after
// the execution has been recorded.
func (s *Scheduler) launch(id int64, trigger Trigger, then func()) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSchedulerStopped
	}
	if s.running[id] {
		s.mu.Unlock()
		return ErrActionRunning
	}
	s.running[id] = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, id)
			s.mu.Unlock()
		}()

		if _, err := s.engine.Execute(s.ctx, id, trigger); err != nil {
			s.logger.Warn("action execution failed", "action_id", id, "trigger", trigger, "error", err)
		}
		if then != nil {
			then()
		}
	}()
	return nil
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	s *Scheduler
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
