package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dewansh/dewhome-core/internal/gpio"
)

// Observer is notified after a state change has reached the pin and the database.
// Implementations must not block; slow work belongs in a goroutine.
type Observer interface {
	DeviceStateChanged(ctx context.Context, change StateChange)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, change StateChange)

// DeviceStateChanged implements Observer.
func (f ObserverFunc) DeviceStateChanged(ctx context.Context, change StateChange) {
	f(ctx, change)
}

// Controller drives device pins and keeps the registry in step with them.
// It is the only component that writes to the GPIO driver.
type Controller struct {
	registry *Registry
	driver   gpio.Driver
	logger   Logger

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex

	observersMu sync.RWMutex
	observers   []Observer
}

// NewController creates a controller over an already-populated registry.
func NewController(registry *Registry, driver gpio.Driver) *Controller {
	return &Controller{
		registry: registry,
		driver:   driver,
		logger:   noopLogger{},
		locks:    make(map[int64]*sync.Mutex),
	}
}

// SetLogger sets the logger for the controller.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
}

// AddObserver registers o for state change notifications.
func (c *Controller) AddObserver(o Observer) {
	c.observersMu.Lock()
	c.observers = append(c.observers, o)
	c.observersMu.Unlock()
}

// Registry returns the underlying device registry.
func (c *Controller) Registry() *Registry {
	return c.registry
}

// Init configures every registered device's pin as an output.
//
// With restore set, each pin is driven to its persisted state. Otherwise
// every device starts low and the low state is persisted.
func (c *Controller) Init(ctx context.Context, restore bool) error {
	var errs []error
	for _, d := range c.registry.ListDevices() {
		state := StateLow
		if restore {
			state = d.State
		}
		if err := c.driver.Setup(d.PinNumber, state.IsHigh()); err != nil {
			errs = append(errs, fmt.Errorf("device %d pin %d: %w", d.ID, d.PinNumber, err))
			continue
		}
		if d.State != state {
			if _, err := c.registry.SetDeviceState(ctx, d.ID, state); err != nil {
				errs = append(errs, fmt.Errorf("device %d: %w", d.ID, err))
			}
		}
	}

	c.logger.Info("device pins initialised",
		"driver", c.driver.Name(),
		"devices", c.registry.GetDeviceCount(),
		"restore", restore,
	)
	return errors.Join(errs...)
}

// AddDevice registers a new device and configures its pin low.
// If the pin cannot be configured the device is removed again.
func (c *Controller) AddDevice(ctx context.Context, d *Device) error {
	if err := c.registry.CreateDevice(ctx, d); err != nil {
		return err
	}

	if err := c.driver.Setup(d.PinNumber, false); err != nil {
		if _, rbErr := c.registry.DeleteDevice(ctx, d.ID); rbErr != nil {
			c.logger.Error("rolling back device after pin setup failure", "id", d.ID, "error", rbErr)
		}
		return fmt.Errorf("configuring pin %d: %w", d.PinNumber, err)
	}
	return nil
}

// RemoveDevice deletes a device and stops driving its pin.
func (c *Controller) RemoveDevice(ctx context.Context, id int64) (*Device, error) {
	lock := c.deviceLock(id)
	lock.Lock()
	defer lock.Unlock()

	removed, err := c.registry.DeleteDevice(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.driver.Release(removed.PinNumber); err != nil {
		c.logger.Warn("releasing pin", "pin", removed.PinNumber, "error", err)
	}

	c.locksMu.Lock()
	delete(c.locks, id)
	c.locksMu.Unlock()

	return removed, nil
}

// Apply executes cmd against a device. The pin is written first and the new
// state is persisted only if the write succeeded. Once the pin has switched
// the state is recorded even if ctx is cancelled; if recording fails the pin
// is driven back to its previous level. Commands for the same device are
// serialised so a toggle observes the result of the previous one.
func (c *Controller) Apply(ctx context.Context, id int64, cmd Command, source string) (*Device, error) {
	lock := c.deviceLock(id)
	lock.Lock()
	defer lock.Unlock()

	current, err := c.registry.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}

	target := cmd.Target(current.State)
	if err := c.driver.Write(current.PinNumber, target.IsHigh()); err != nil {
		return nil, fmt.Errorf("driving pin %d: %w", current.PinNumber, err)
	}

	persistCtx := context.WithoutCancel(ctx)
	updated, err := c.registry.SetDeviceState(persistCtx, id, target)
	if err != nil {
		if rbErr := c.driver.Write(current.PinNumber, current.State.IsHigh()); rbErr != nil {
			c.logger.Error("restoring pin after state persist failure",
				"id", id, "pin", current.PinNumber, "error", rbErr)
		}
		return nil, err
	}

	c.logger.Info("device state changed",
		"id", id,
		"pin", updated.PinNumber,
		"from", current.State,
		"to", target,
		"source", source,
	)

	c.notify(persistCtx, StateChange{
		Device:   *updated,
		Previous: current.State,
		Source:   source,
		At:       updated.UpdatedAt,
	})
	return updated, nil
}

func (c *Controller) notify(ctx context.Context, change StateChange) {
	c.observersMu.RLock()
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.observersMu.RUnlock()

	for _, o := range observers {
		o.DeviceStateChanged(ctx, change)
	}
}

func (c *Controller) deviceLock(id int64) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	l, ok := c.locks[id]
	if !ok {
		l = &sync.Mutex{}
		c.locks[id] = l
	}
	return l
}

// Seed creates devices from configuration when the registry is empty.
// Seeds that fail validation are logged and skipped.
func (c *Controller) Seed(ctx context.Context, seeds []Device) (int, error) {
	if c.registry.GetDeviceCount() > 0 {
		return 0, nil
	}

	created := 0
	for i := range seeds {
		d := seeds[i]
		if err := c.registry.CreateDevice(ctx, &d); err != nil {
			if errors.Is(err, ErrInvalidName) || errors.Is(err, ErrInvalidIcon) ||
				errors.Is(err, ErrInvalidPin) || errors.Is(err, ErrPinInUse) {
				c.logger.Warn("skipping seed device", "name", d.Name, "pin", d.PinNumber, "error", err)
				continue
			}
			return created, fmt.Errorf("seeding device %q: %w", d.Name, err)
		}
		created++
	}

	if created > 0 {
		c.logger.Info("seeded devices", "count", created)
	}
	return created, nil
}

