package device

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxNameLength = 100
	maxIconLength = 64

	// DefaultIcon is used when a device is created without one.
	DefaultIcon = "lightbulb"
)

var iconRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// PinChecker reports whether a BCM pin may carry a device.
// *gpio.Catalog satisfies it.
type PinChecker interface {
	Check(pin int) error
}

// ValidateDevice normalises and checks the user-supplied fields of d.
// Name is trimmed and an empty icon becomes DefaultIcon.
func ValidateDevice(d *Device, pins PinChecker) error {
	d.Name = strings.TrimSpace(d.Name)
	if err := ValidateName(d.Name); err != nil {
		return err
	}

	d.Icon = strings.TrimSpace(d.Icon)
	if d.Icon == "" {
		d.Icon = DefaultIcon
	}
	if err := ValidateIcon(d.Icon); err != nil {
		return err
	}

	if pins != nil {
		if err := pins.Check(d.PinNumber); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPin, err)
		}
	}

	if d.State == "" {
		d.State = StateLow
	}
	if _, err := ParseState(string(d.State)); err != nil {
		return err
	}
	return nil
}

// ValidateName checks a device name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateIcon checks an icon identifier such as "lightbulb" or "fan".
func ValidateIcon(icon string) error {
	if len(icon) > maxIconLength {
		return fmt.Errorf("%w: icon exceeds %d characters", ErrInvalidIcon, maxIconLength)
	}
	if !iconRegex.MatchString(icon) {
		return fmt.Errorf("%w: %q must be lowercase letters, digits, '-' or '_'", ErrInvalidIcon, icon)
	}
	return nil
}
