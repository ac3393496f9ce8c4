package gpio

import "errors"

var (
	// ErrUnknownPin is returned for a BCM number outside the catalog.
	ErrUnknownPin = errors.New("gpio: unknown pin")

	// ErrPinReserved is returned for a catalog pin excluded by configuration.
	ErrPinReserved = errors.New("gpio: pin reserved")

	// ErrPinNotConfigured is returned when writing a line that was never set up.
	ErrPinNotConfigured = errors.New("gpio: pin not configured")

	// ErrDriverClosed is returned for any operation after Close.
	ErrDriverClosed = errors.New("gpio: driver closed")
)
