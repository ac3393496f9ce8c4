package automation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the automation package.
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

// Registry provides action management with caching and thread safety.
// It wraps a Repository and serves reads from an in-memory cache that is
// populated by RefreshCache and kept in sync by every mutation.
type Registry struct {
	repo    Repository
	devices DeviceLookup
	cache   map[int64]*Action
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new action registry. devices is used to check that
// steps reference existing devices; nil skips that check.
func NewRegistry(repo Repository, devices DeviceLookup) *Registry {
	return &Registry{
		repo:    repo,
		devices: devices,
		cache:   make(map[int64]*Action),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Repository returns the underlying store, used for the execution log.
func (r *Registry) Repository() Repository {
	return r.repo
}

// RefreshCache reloads all actions from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	actions, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading actions: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[int64]*Action, len(actions))
	for i := range actions {
		r.cache[actions[i].ID] = actions[i].DeepCopy()
	}

	r.logger.Info("action cache refreshed", "count", len(actions))
	return nil
}

// GetAction retrieves an action by ID. The result is a copy.
func (r *Registry) GetAction(_ context.Context, id int64) (*Action, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if !ok {
		return nil, ErrActionNotFound
	}
	return cached.DeepCopy(), nil
}

// ListActions returns copies of all actions ordered by ID.
func (r *Registry) ListActions() []Action {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	actions := make([]Action, 0, len(r.cache))
	for _, a := range r.cache {
		actions = append(actions, *a.DeepCopy())
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].ID < actions[j].ID })
	return actions
}

// CreateAction validates and persists a new action. Its ID and timestamps
// are filled in on success.
func (r *Registry) CreateAction(ctx context.Context, a *Action) error {
	a.ID = 0
	a.LastRun = nil
	a.NextRun = nil
	if err := ValidateAction(ctx, a, r.devices); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, a); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[a.ID] = a.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("action created",
		"id", a.ID,
		"name", a.Name,
		"type", a.Type,
		"schedule", a.Schedule,
		"steps", len(a.DeviceActions),
	)
	return nil
}

// DeleteAction removes an action and returns what was removed.
func (r *Registry) DeleteAction(ctx context.Context, id int64) (*Action, error) {
	existing, err := r.GetAction(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.repo.Delete(ctx, id); err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("action deleted", "id", id, "name", existing.Name)
	return existing, nil
}

// SetEnabled sets the enabled flag and returns the updated action.
func (r *Registry) SetEnabled(ctx context.Context, id int64, enabled bool) (*Action, error) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	return r.setEnabledLocked(ctx, id, enabled)
}

// ToggleEnabled flips the enabled flag atomically and returns the updated action.
func (r *Registry) ToggleEnabled(ctx context.Context, id int64) (*Action, error) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	cached, ok := r.cache[id]
	if !ok {
		return nil, ErrActionNotFound
	}
	return r.setEnabledLocked(ctx, id, !cached.Enabled)
}

func (r *Registry) setEnabledLocked(ctx context.Context, id int64, enabled bool) (*Action, error) {
	cached, ok := r.cache[id]
	if !ok {
		return nil, ErrActionNotFound
	}

	now := time.Now().UTC()
	if err := r.repo.SetEnabled(ctx, id, enabled, now); err != nil {
		return nil, err
	}
	cached.Enabled = enabled
	cached.UpdatedAt = now

	r.logger.Info("action enabled changed", "id", id, "enabled", enabled)
	return cached.DeepCopy(), nil
}

// RecordRun stores the time an action last ran.
func (r *Registry) RecordRun(ctx context.Context, id int64, at time.Time) error {
	if err := r.repo.SetLastRun(ctx, id, at); err != nil {
		return err
	}

	at = at.UTC().Truncate(time.Second)
	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		cached.LastRun = &at
	}
	r.cacheMu.Unlock()
	return nil
}

// ActionsForDevice returns the IDs of actions with a step targeting deviceID.
func (r *Registry) ActionsForDevice(deviceID int64) []int64 {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	var ids []int64
	for id, a := range r.cache {
		if a.References(deviceID) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// GetActionCount returns the number of cached actions.
func (r *Registry) GetActionCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
