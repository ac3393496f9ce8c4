package device

import (
	"fmt"
	"strings"
	"time"
)

// State is the electrical level of a device's output pin.
type State string

// Output states.
const (
	StateHigh State = "high"
	StateLow  State = "low"
)

// ParseState parses "high" or "low", case-insensitively.
func ParseState(s string) (State, error) {
	switch State(strings.ToLower(strings.TrimSpace(s))) {
	case StateHigh:
		return StateHigh, nil
	case StateLow:
		return StateLow, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
}

// StateFromLevel converts a pin level to a State.
func StateFromLevel(high bool) State {
	if high {
		return StateHigh
	}
	return StateLow
}

// IsHigh reports whether s drives the pin high.
func (s State) IsHigh() bool { return s == StateHigh }

// Toggled returns the opposite state.
func (s State) Toggled() State {
	if s == StateHigh {
		return StateLow
	}
	return StateHigh
}

// Command is a requested change to a device's state.
type Command string

// Device commands.
const (
	CommandHigh   Command = "high"
	CommandLow    Command = "low"
	CommandToggle Command = "toggle"
)

// ParseCommand parses "high", "low" or "toggle", case-insensitively.
func ParseCommand(s string) (Command, error) {
	switch c := Command(strings.ToLower(strings.TrimSpace(s))); c {
	case CommandHigh, CommandLow, CommandToggle:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCommand, s)
	}
}

// Target returns the state a device ends up in when c is applied to current.
func (c Command) Target(current State) State {
	switch c {
	case CommandHigh:
		return StateHigh
	case CommandLow:
		return StateLow
	default:
		return current.Toggled()
	}
}

// Device is an output bound to one BCM GPIO pin.
type Device struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	PinNumber int       `json:"pin_number"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy returns an independent copy of d.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cp := *d
	return &cp
}

// StateChange describes one applied state transition.
type StateChange struct {
	Device   Device
	Previous State
	Source   string
	At       time.Time
}

// Change sources.
const (
	SourceAPI     = "api"
	SourceMQTT    = "mqtt"
	SourceAction  = "action"
	SourceStartup = "startup"
)
