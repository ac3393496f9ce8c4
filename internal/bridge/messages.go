package bridge

import (
	"time"

	"github.com/dewansh/dewhome-core/internal/automation"
	"github.com/dewansh/dewhome-core/internal/device"
)

// DeviceStateMessage is published retained for every device state change.
type DeviceStateMessage struct {
	DeviceID  int64  `json:"device_id"`
	Name      string `json:"name"`
	PinNumber int    `json:"pin_number"`
	State     string `json:"state"`
	Previous  string `json:"previous,omitempty"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

// CommandMessage is the payload accepted on device command topics.
type CommandMessage struct {
	Action string `json:"action"`
}

// ActionEventMessage is published after every action execution.
type ActionEventMessage struct {
	ExecutionID string `json:"execution_id"`
	ActionID    int64  `json:"action_id"`
	Name        string `json:"name"`
	Trigger     string `json:"trigger"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	StepsTotal  int    `json:"steps_total"`
	StepsFailed int    `json:"steps_failed"`
	DurationMS  int64  `json:"duration_ms"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

func newDeviceStateMessage(change device.StateChange) DeviceStateMessage {
	return DeviceStateMessage{
		DeviceID:  change.Device.ID,
		Name:      change.Device.Name,
		PinNumber: change.Device.PinNumber,
		State:     string(change.Device.State),
		Previous:  string(change.Previous),
		Source:    change.Source,
		Timestamp: change.At.UTC().Format(time.RFC3339),
	}
}

func newActionEventMessage(a *automation.Action, exec *automation.Execution) ActionEventMessage {
	msg := ActionEventMessage{
		ExecutionID: exec.ID,
		ActionID:    exec.ActionID,
		Trigger:     string(exec.Trigger),
		Status:      string(exec.Status),
		Message:     exec.Message,
		StepsTotal:  exec.StepsTotal,
		StepsFailed: exec.StepsFailed,
		StartedAt:   exec.StartedAt.UTC().Format(time.RFC3339Nano),
	}
	if a != nil {
		msg.Name = a.Name
	}
	if exec.DurationMS != nil {
		msg.DurationMS = *exec.DurationMS
	}
	if exec.CompletedAt != nil {
		msg.CompletedAt = exec.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	return msg
}
