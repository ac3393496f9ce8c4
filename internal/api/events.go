package api

import (
	"context"

	"github.com/dewansh/dewhome-core/internal/automation"
	"github.com/dewansh/dewhome-core/internal/device"
)

// WebSocket event types.
const (
	EventDeviceStateChanged = "device.state_changed"
	EventDeviceCreated      = "device.created"
	EventDeviceDeleted      = "device.deleted"
	EventActionCreated      = "action.created"
	EventActionDeleted      = "action.deleted"
	EventActionToggled      = "action.toggled"
	EventActionExecuted     = "action.executed"
)

type stateChangedEvent struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	PinNumber int          `json:"pin_number"`
	State     device.State `json:"state"`
	Previous  device.State `json:"previous,omitempty"`
	Source    string       `json:"source"`
}

type toggleEvent struct {
	ID      int64 `json:"id"`
	Enabled bool  `json:"enabled"`
}

type executedEvent struct {
	Name      string                `json:"name"`
	Execution *automation.Execution `json:"execution"`
}

// DeviceStateChanged implements device.Observer.
func (s *Server) DeviceStateChanged(_ context.Context, change device.StateChange) {
	s.metrics.deviceStateChanged(change.Source)
	s.hub.Broadcast(EventDeviceStateChanged, stateChangedEvent{
		ID:        change.Device.ID,
		Name:      change.Device.Name,
		PinNumber: change.Device.PinNumber,
		State:     change.Device.State,
		Previous:  change.Previous,
		Source:    change.Source,
	})
}

// ActionExecuted implements automation.ExecutionObserver.
func (s *Server) ActionExecuted(_ context.Context, a *automation.Action, exec *automation.Execution) {
	if exec == nil {
		return
	}
	s.metrics.actionExecuted(exec)

	ev := executedEvent{Execution: exec}
	if a != nil {
		ev.Name = a.Name
	}
	s.hub.Broadcast(EventActionExecuted, ev)
}
