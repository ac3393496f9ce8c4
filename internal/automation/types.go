package automation

import (
	"time"

	"github.com/dewansh/dewhome-core/internal/device"
)

// ActionType selects how an action is triggered.
type ActionType string

const (
	TypeTimer     ActionType = "timer"
	TypeCountdown ActionType = "countdown"
	TypeInterval  ActionType = "interval"
)

// ParseActionType returns t if it names a known trigger type.
func ParseActionType(t string) (ActionType, bool) {
	switch at := ActionType(t); at {
	case TypeTimer, TypeCountdown, TypeInterval:
		return at, true
	default:
		return "", false
	}
}

// Action is a named schedule that drives one or more devices in order.
type Action struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Type          ActionType     `json:"type"`
	Schedule      string         `json:"schedule"`
	Enabled       bool           `json:"enabled"`
	DeviceActions []DeviceAction `json:"device_actions"`

	// NextRun is filled in by the scheduler when the action is armed.
	NextRun *time.Time `json:"next_run"`
	LastRun *time.Time `json:"last_run"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeviceAction is one step of an action.
type DeviceAction struct {
	DeviceID     int64          `json:"device_id"`
	ActionType   device.Command `json:"action_type"`
	DelaySeconds int            `json:"delay_seconds"`
}

// Delay returns the wait before the step is applied.
func (da DeviceAction) Delay() time.Duration {
	return time.Duration(da.DelaySeconds) * time.Second
}

// DeepCopy returns an independent copy of the action.
func (a *Action) DeepCopy() *Action {
	if a == nil {
		return nil
	}
	cpy := *a
	if a.DeviceActions != nil {
		cpy.DeviceActions = make([]DeviceAction, len(a.DeviceActions))
		copy(cpy.DeviceActions, a.DeviceActions)
	}
	cpy.NextRun = cloneTime(a.NextRun)
	cpy.LastRun = cloneTime(a.LastRun)
	return &cpy
}

// References reports whether any step targets deviceID.
func (a *Action) References(deviceID int64) bool {
	for _, da := range a.DeviceActions {
		if da.DeviceID == deviceID {
			return true
		}
	}
	return false
}

// Trigger records what started an execution.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// ExecutionStatus is the outcome of one run.
type ExecutionStatus string

const (
	StatusSuccess ExecutionStatus = "success"
	StatusPartial ExecutionStatus = "partial" // Some steps failed
	StatusError   ExecutionStatus = "error"   // Every step failed, or the run was cancelled
	StatusSkipped ExecutionStatus = "skipped" // Scheduled run of a disabled action
)

// Execution is the log record of a single action run.
type Execution struct {
	ID          string          `json:"id"`
	ActionID    int64           `json:"action_id"`
	Trigger     Trigger         `json:"trigger"`
	Status      ExecutionStatus `json:"status"`
	Message     string          `json:"message"`
	StepsTotal  int             `json:"steps_total"`
	StepsFailed int             `json:"steps_failed"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	DurationMS  *int64          `json:"duration_ms,omitempty"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
