package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the device package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache keyed by ID, plus a
// pin index that enforces one device per pin before the database does.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by the mutating methods. All public methods are thread-safe.
type Registry struct {
	repo    Repository
	pins    PinChecker
	cache   map[int64]*Device
	byPin   map[int]int64
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new device registry. pins may be nil to skip catalog checks.
func NewRegistry(repo Repository, pins PinChecker) *Registry {
	return &Registry{
		repo:   repo,
		pins:   pins,
		cache:  make(map[int64]*Device),
		byPin:  make(map[int]int64),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[int64]*Device, len(devices))
	r.byPin = make(map[int]int64, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.DeepCopy()
		r.byPin[d.PinNumber] = d.ID
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a device by ID.
// The returned device is a copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id int64) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		return cached.DeepCopy(), nil
	}

	d, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = d.DeepCopy()
	r.byPin[d.PinNumber] = id
	r.cacheMu.Unlock()

	return d, nil
}

// ListDevices returns all cached devices ordered by ID.
func (r *Registry) ListDevices() []Device {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	devices := make([]Device, 0, len(r.cache))
	for _, d := range r.cache {
		devices = append(devices, *d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices
}

// States returns the current state of every device keyed by ID.
func (r *Registry) States() map[int64]State {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	states := make(map[int64]State, len(r.cache))
	for id, d := range r.cache {
		states[id] = d.State
	}
	return states
}

// PinsInUse returns the set of pins bound to a device.
func (r *Registry) PinsInUse() map[int]bool {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	inUse := make(map[int]bool, len(r.byPin))
	for pin := range r.byPin {
		inUse[pin] = true
	}
	return inUse
}

// DevicePinned returns the ID of the device bound to pin, if any.
func (r *Registry) DevicePinned(pin int) (int64, bool) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	id, ok := r.byPin[pin]
	return id, ok
}

// CreateDevice validates and persists a new device. The device's ID and
// timestamps are filled in on success.
func (r *Registry) CreateDevice(ctx context.Context, d *Device) error {
	d.ID = 0
	d.State = StateLow
	if err := ValidateDevice(d, r.pins); err != nil {
		return err
	}

	// Hold the write lock across the insert so two requests cannot claim the same pin.
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	if owner, taken := r.byPin[d.PinNumber]; taken {
		return fmt.Errorf("%w: pin %d is bound to device %d", ErrPinInUse, d.PinNumber, owner)
	}

	if err := r.repo.Create(ctx, d); err != nil {
		return err
	}

	r.cache[d.ID] = d.DeepCopy()
	r.byPin[d.PinNumber] = d.ID

	r.logger.Info("device created", "id", d.ID, "name", d.Name, "pin", d.PinNumber)
	return nil
}

// DeleteDevice removes a device and returns what was removed.
func (r *Registry) DeleteDevice(ctx context.Context, id int64) (*Device, error) {
	existing, err := r.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.repo.Delete(ctx, id); err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	if r.byPin[existing.PinNumber] == id {
		delete(r.byPin, existing.PinNumber)
	}
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id, "pin", existing.PinNumber)
	return existing, nil
}

// SetDeviceState persists a new state and returns the updated device.
func (r *Registry) SetDeviceState(ctx context.Context, id int64, state State) (*Device, error) {
	if _, err := ParseState(string(state)); err != nil {
		return nil, err
	}

	current, err := r.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := r.repo.UpdateState(ctx, id, state, now); err != nil {
		return nil, err
	}

	current.State = state
	current.UpdatedAt = now

	r.cacheMu.Lock()
	r.cache[id] = current.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Debug("device state updated", "id", id, "state", state)
	return current, nil
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
