package gpio

import (
	"fmt"
	"sync"
)

// SimDriver is an in-memory Driver. It records every write so tests can
// assert on the sequence of levels a pin went through.
type SimDriver struct {
	mu      sync.Mutex
	levels  map[int]bool
	faults  map[int]error
	history []Write
	closed  bool
}

// Write is one recorded level change.
type Write struct {
	Pin  int
	High bool
}

// NewSimDriver creates an empty simulated driver.
func NewSimDriver() *SimDriver {
	return &SimDriver{
		levels: make(map[int]bool),
		faults: make(map[int]error),
	}
}

// Name implements Driver.
func (d *SimDriver) Name() string { return "sim" }

// SetFault makes every subsequent Setup or Write on pin fail with err.
// A nil err clears the fault.
func (d *SimDriver) SetFault(pin int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.faults, pin)
		return
	}
	d.faults[pin] = err
}

// History returns a copy of every write applied so far.
func (d *SimDriver) History() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Write, len(d.history))
	copy(out, d.history)
	return out
}

// Setup implements Driver.
func (d *SimDriver) Setup(pin int, high bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDriverClosed
	}
	if err := d.faults[pin]; err != nil {
		return fmt.Errorf("exporting pin %d: %w", pin, err)
	}
	d.levels[pin] = high
	d.history = append(d.history, Write{Pin: pin, High: high})
	return nil
}

// Write implements Driver.
func (d *SimDriver) Write(pin int, high bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDriverClosed
	}
	if _, ok := d.levels[pin]; !ok {
		return fmt.Errorf("%w: %d", ErrPinNotConfigured, pin)
	}
	if err := d.faults[pin]; err != nil {
		return fmt.Errorf("writing pin %d: %w", pin, err)
	}
	d.levels[pin] = high
	d.history = append(d.history, Write{Pin: pin, High: high})
	return nil
}

// Level implements Driver.
func (d *SimDriver) Level(pin int) (bool, error) {
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

// Release implements Driver.
func (d *SimDriver) Release(pin int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.levels, pin)
	return nil
}

// Close implements Driver.
func (d *SimDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.levels = make(map[int]bool)
	return nil
}
