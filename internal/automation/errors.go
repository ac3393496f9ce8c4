package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, automation.ErrActionNotFound) {
//	    // handle not found case
//	}
var (
	// ErrActionNotFound is returned when an action ID does not exist.
	ErrActionNotFound = errors.New("action: not found")

	// ErrInvalidName is returned when an action name is empty or too long.
	ErrInvalidName = errors.New("action: invalid name")

	// ErrInvalidType is returned for an action type other than timer, countdown or interval.
	ErrInvalidType = errors.New("action: invalid type")

	// ErrInvalidSchedule is returned when a schedule does not parse for its type.
	ErrInvalidSchedule = errors.New("action: invalid schedule")

	// ErrNoDeviceActions is returned when an action has no steps.
	ErrNoDeviceActions = errors.New("action: at least one device action is required")

	// ErrInvalidDeviceAction is returned when a step has a bad command or delay.
	ErrInvalidDeviceAction = errors.New("action: invalid device action")

	// ErrUnknownDevice is returned when a step references a device that does not exist.
	ErrUnknownDevice = errors.New("action: unknown device")

	// ErrActionRunning is returned when a run is requested while the action is executing.
	ErrActionRunning = errors.New("action: already running")

	// ErrSchedulerStopped is returned once the scheduler has been stopped.
	ErrSchedulerStopped = errors.New("action: scheduler stopped")
)
