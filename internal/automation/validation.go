package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dewansh/dewhome-core/internal/device"
)

// Validation constants.
const (
	maxNameLength   = 100
	maxDeviceSteps  = 100
	maxDelaySeconds = 86400
)

// DeviceLookup resolves device IDs referenced by action steps.
// *device.Registry satisfies it.
type DeviceLookup interface {
	GetDevice(ctx context.Context, id int64) (*device.Device, error)
}

// ValidateAction normalises and checks an action before it is stored.
// Checks run in order: name, type, schedule, step count, then each step.
// The first failure is returned.
func ValidateAction(ctx context.Context, a *Action, devices DeviceLookup) error {
	a.Name = strings.TrimSpace(a.Name)
	if err := ValidateName(a.Name); err != nil {
		return err
	}

	t, ok := ParseActionType(strings.ToLower(strings.TrimSpace(string(a.Type))))
	if !ok {
		return fmt.Errorf("%w: %q (want timer, countdown or interval)", ErrInvalidType, a.Type)
	}
	a.Type = t

	a.Schedule = strings.TrimSpace(a.Schedule)
	if _, err := ParseSchedule(a.Type, a.Schedule); err != nil {
		return err
	}

	if len(a.DeviceActions) == 0 {
		return ErrNoDeviceActions
	}
	if len(a.DeviceActions) > maxDeviceSteps {
		return fmt.Errorf("%w: at most %d device actions", ErrInvalidDeviceAction, maxDeviceSteps)
	}

	for i := range a.DeviceActions {
		if err := validateStep(ctx, i, &a.DeviceActions[i], devices); err != nil {
			return err
		}
	}
	return nil
}

// ValidateName checks an action name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

func validateStep(ctx context.Context, i int, da *DeviceAction, devices DeviceLookup) error {
	cmd, err := device.ParseCommand(string(da.ActionType))
	if err != nil {
		return fmt.Errorf("%w: device_actions[%d]: action_type %q must be high, low or toggle",
			ErrInvalidDeviceAction, i, da.ActionType)
	}
	da.ActionType = cmd

	if da.DelaySeconds < 0 || da.DelaySeconds > maxDelaySeconds {
		return fmt.Errorf("%w: device_actions[%d]: delay_seconds must be between 0 and %d",
			ErrInvalidDeviceAction, i, maxDelaySeconds)
	}

	if devices == nil {
		return nil
	}
	if _, err := devices.GetDevice(ctx, da.DeviceID); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			return fmt.Errorf("%w: device_actions[%d]: device %d does not exist", ErrUnknownDevice, i, da.DeviceID)
		}
		return fmt.Errorf("looking up device %d: %w", da.DeviceID, err)
	}
	return nil
}
