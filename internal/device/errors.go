package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidIcon is returned when an icon name is too long or malformed.
	ErrInvalidIcon = errors.New("device: invalid icon")

	// ErrInvalidPin is returned when a pin is not in the catalog or is reserved.
	ErrInvalidPin = errors.New("device: invalid pin")

	// ErrPinInUse is returned when another device is already bound to the pin.
	ErrPinInUse = errors.New("device: pin already in use")

	// ErrInvalidState is returned for a state other than high or low.
	ErrInvalidState = errors.New("device: invalid state")

	// ErrInvalidCommand is returned for a command other than high, low or toggle.
	ErrInvalidCommand = errors.New("device: invalid command")

	// ErrDeviceInUse is returned when deleting a device that an action still references.
	ErrDeviceInUse = errors.New("device: referenced by an action")
)
