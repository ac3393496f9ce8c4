package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dewansh/dewhome-core/internal/device"
)

// Actuator applies a command to a device. *device.Controller satisfies it.
type Actuator interface {
	Apply(ctx context.Context, id int64, cmd device.Command, source string) (*device.Device, error)
}

// ExecutionObserver is notified after every recorded execution.
// Implementations must not block.
type ExecutionObserver interface {
	ActionExecuted(ctx context.Context, action *Action, exec *Execution)
}

// ExecutionObserverFunc adapts a function to ExecutionObserver.
type ExecutionObserverFunc func(ctx context.Context, action *Action, exec *Execution)

// ActionExecuted implements ExecutionObserver.
func (f ExecutionObserverFunc) ActionExecuted(ctx context.Context, action *Action, exec *Execution) {
	f(ctx, action, exec)
}

// Engine runs actions: it applies each step in order, waits out the step
// delays and records one Execution per run.
//
// Thread Safety: Execute is safe for concurrent use. Preventing overlapping
// runs of the same action is the Scheduler's job.
type Engine struct {
	registry *Registry
	devices  Actuator
	repo     Repository
	logger   Logger
	timeout  time.Duration

	// after is time.After, replaceable in tests.
	after func(time.Duration) <-chan time.Time

	observersMu sync.RWMutex
	observers   []ExecutionObserver
}

// NewEngine creates an action engine.
func NewEngine(registry *Registry, devices Actuator, repo Repository) *Engine {
	return &Engine{
		registry: registry,
		devices:  devices,
		repo:     repo,
		logger:   noopLogger{},
		after:    time.After,
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// SetTimeout bounds a single run. Zero means no limit.
func (e *Engine) SetTimeout(d time.Duration) {
	e.timeout = d
}

// AddObserver registers o for execution notifications.
func (e *Engine) AddObserver(o ExecutionObserver) {
	e.observersMu.Lock()
	e.observers = append(e.observers, o)
	e.observersMu.Unlock()
}

// Execute runs the action with the given ID and returns the recorded execution.
//
// A scheduled run of a disabled action is recorded as skipped. Manual runs
// proceed regardless of the enabled flag. A failing step is logged and
// counted and the remaining steps still run. Cancelling ctx stops the run
// at the next delay and marks it as an error.
func (e *Engine) Execute(ctx context.Context, id int64, trigger Trigger) (*Execution, error) {
	action, err := e.registry.GetAction(ctx, id)
	if err != nil {
		return nil, err
	}

	exec := &Execution{
		ID:         uuid.NewString(),
		ActionID:   id,
		Trigger:    trigger,
		StepsTotal: len(action.DeviceActions),
		StartedAt:  time.Now().UTC(),
	}

	if !action.Enabled && trigger == TriggerSchedule {
		exec.Status = StatusSkipped
		exec.Message = fmt.Sprintf("Action %q is disabled", action.Name)
		e.finish(ctx, action, exec)
		return exec, nil
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	e.logger.Info("action execution started",
		"action_id", id,
		"name", action.Name,
		"trigger", trigger,
		"execution_id", exec.ID,
		"steps", exec.StepsTotal,
	)

	var failures []string
	applied := 0
	cancelled := false

	for i, step := range action.DeviceActions {
		if err := e.wait(runCtx, step.Delay()); err != nil {
			cancelled = true
			break
		}

		if _, err := e.devices.Apply(runCtx, step.DeviceID, step.ActionType, device.SourceAction); err != nil {
			exec.StepsFailed++
			failures = append(failures, fmt.Sprintf("step %d (device %d %s): %v", i+1, step.DeviceID, step.ActionType, err))
			e.logger.Warn("action step failed",
				"action_id", id,
				"step", i+1,
				"device_id", step.DeviceID,
				"command", step.ActionType,
				"error", err,
			)
			continue
		}
		applied++
	}

	switch {
	case cancelled:
		exec.Status = StatusError
		exec.StepsFailed = exec.StepsTotal - applied
		failures = append(failures, fmt.Sprintf("cancelled after %d of %d steps", applied, exec.StepsTotal))
	case exec.StepsFailed == 0:
		exec.Status = StatusSuccess
	case exec.StepsFailed == exec.StepsTotal:
		exec.Status = StatusError
	default:
		exec.Status = StatusPartial
	}

	if exec.Status == StatusSuccess {
		exec.Message = fmt.Sprintf("Action %q executed: %d steps applied", action.Name, applied)
	} else {
		exec.Message = strings.Join(failures, "; ")
	}

	e.finish(ctx, action, exec)

	if err := e.registry.RecordRun(context.WithoutCancel(ctx), id, exec.StartedAt); err != nil && !errors.Is(err, ErrActionNotFound) {
		e.logger.Error("recording action last run", "action_id", id, "error", err)
	}
	return exec, nil
}

// wait blocks for d or until ctx is done.
func (e *Engine) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-e.after(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finish stamps completion, persists the record and notifies observers.
func (e *Engine) finish(ctx context.Context, action *Action, exec *Execution) {
	completed := time.Now().UTC()
	duration := completed.Sub(exec.StartedAt).Milliseconds()
	exec.CompletedAt = &completed
	exec.DurationMS = &duration

	// The record is written even when the run was cancelled.
	storeCtx := context.WithoutCancel(ctx)
	if err := e.repo.CreateExecution(storeCtx, exec); err != nil {
		e.logger.Error("failed to record action execution", "action_id", exec.ActionID, "error", err)
	}

	logArgs := []any{
		"action_id", exec.ActionID,
		"name", action.Name,
		"trigger", exec.Trigger,
		"status", exec.Status,
		"steps_failed", exec.StepsFailed,
		"duration_ms", duration,
	}
	switch exec.Status {
	case StatusSuccess:
		e.logger.Info("action executed", logArgs...)
	case StatusSkipped:
		e.logger.Info("action skipped", logArgs...)
	default:
		e.logger.Warn("action executed with errors", append(logArgs, "message", exec.Message)...)
	}

	e.observersMu.RLock()
	observers := make([]ExecutionObserver, len(e.observers))
	copy(observers, e.observers)
	e.observersMu.RUnlock()

	for _, o := range observers {
		o.ActionExecuted(storeCtx, action, exec)
	}
}
