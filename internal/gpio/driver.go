package gpio

import (
	"fmt"
	"io"
	"sync"

	ecc1 "github.com/ecc1/gpio"
)

// Driver sets output line levels. High is true.
//
// Implementations must be safe for concurrent use.
type Driver interface {
	// Setup configures pin as an output at the given initial level.
	// Calling Setup again for the same pin re-applies the level.
	Setup(pin int, high bool) error

	// Write sets the level of a pin previously passed to Setup.
	Write(pin int, high bool) error

	// Level returns the last level written to pin.
	Level(pin int) (bool, error)

	// Release stops driving pin.
	Release(pin int) error

	// Close releases every line.
	Close() error

	// Name identifies the driver in logs and health output.
	Name() string
}

// New returns the driver named in configuration.
func New(name string, activeLow bool) (Driver, error) {
	switch name {
	case "sysfs":
		return NewSysfsDriver(activeLow), nil
	case "sim", "":
		return NewSimDriver(), nil
	default:
		return nil, fmt.Errorf("unknown gpio driver %q", name)
	}
}

// SysfsDriver drives real lines via the kernel sysfs GPIO interface.
type SysfsDriver struct {
	mu        sync.Mutex
	activeLow bool
	lines     map[int]ecc1.OutputPin
	levels    map[int]bool
	closed    bool
}

// NewSysfsDriver creates a hardware driver. Lines are exported lazily in Setup.
func NewSysfsDriver(activeLow bool) *SysfsDriver {
	return &SysfsDriver{
		activeLow: activeLow,
		lines:     make(map[int]ecc1.OutputPin),
		levels:    make(map[int]bool),
	}
}

// Name implements Driver.
func (d *SysfsDriver) Name() string { return "sysfs" }

// Setup implements Driver.
func (d *SysfsDriver) Setup(pin int, high bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDriverClosed
	}
	if line, ok := d.lines[pin]; ok {
		if err := line.Write(high); err != nil {
			return fmt.Errorf("writing pin %d: %w", pin, err)
		}
		d.levels[pin] = high
		return nil
	}

	line, err := ecc1.Output(pin, d.activeLow, high)
	if err != nil {
		return fmt.Errorf("exporting pin %d: %w", pin, err)
	}
	d.lines[pin] = line
	d.levels[pin] = high
	return nil
}

// Write implements Driver.
func (d *SysfsDriver) Write(pin int, high bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDriverClosed
	}
	line, ok := d.lines[pin]
	if !ok {
		return fmt.Errorf("%w: %d", ErrPinNotConfigured, pin)
	}
	if err := line.Write(high); err != nil {
		return fmt.Errorf("writing pin %d: %w", pin, err)
	}
	d.levels[pin] = high
	return nil
}

// Level implements Driver.
func (d *SysfsDriver) Level(pin int) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false, ErrDriverClosed
	}
	level, ok := d.levels[pin]
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrPinNotConfigured, pin)
	}
	return level, nil
}

// Release implements Driver. The line is driven low before it is closed.
func (d *SysfsDriver) Release(pin int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	line, ok := d.lines[pin]
	if !ok {
		return nil
	}
	delete(d.lines, pin)
	delete(d.levels, pin)
	return releaseLine(pin, line)
}

// Close implements Driver.
func (d *SysfsDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	var firstErr error
	for pin, line := range d.lines {
		if err := releaseLine(pin, line); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.lines = nil
	d.levels = nil
	return firstErr
}

func releaseLine(pin int, line ecc1.OutputPin) error {
	if err := line.Write(false); err != nil {
		return fmt.Errorf("resetting pin %d: %w", pin, err)
	}
	if c, ok := any(line).(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("closing pin %d: %w", pin, err)
		}
	}
	return nil
}
