package entity

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/nerrad567/smarthome-bridge/internal/device"
)

// Logger defines the logging interface used by the Registry.
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

// Registry holds the entity set built from a metadata snapshot.
//
// The set is built once after the first refresh and only changes on
// Reload; devices that appear in later snapshots get no entity until then.
// All methods are safe for concurrent use.
type Registry struct {
	up     Upstream
	logger Logger

	mu       sync.RWMutex
	opts     Options
	entities map[string]Entity
	order    []string
}

// NewRegistry creates an empty registry over up.
func NewRegistry(up Upstream, opts Options) *Registry {
	return &Registry{
		up:       up,
		logger:   noopLogger{},
		opts:     opts,
		entities: make(map[string]Entity),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetEffects replaces the effect map used by the next Reload.
func (r *Registry) SetEffects(effects map[string]string) {
	r.mu.Lock()
	r.opts.Effects = effects
	r.mu.Unlock()
}

// Reload rebuilds every entity from devices, replacing the current set.
//
// Returns:
//   - int: Number of entities built
func (r *Registry) Reload(devices []device.Metadata) int {
	r.mu.RLock()
	opts := r.opts
	r.mu.RUnlock()

	entities := make(map[string]Entity, len(devices))
	order := make([]string, 0, len(devices))
	skipped := 0
	for _, m := range devices {
		built, ok := Build(r.up, m, opts)
		if !ok {
			skipped++
			r.logger.Debug("no entity for device type", "device_id", m.ID, "device_type", m.DeviceType)
			continue
		}
		for _, e := range built {
			if _, dup := entities[e.ID()]; dup {
				r.logger.Warn("duplicate entity id", "entity_id", e.ID(), "device_id", m.ID)
				continue
			}
			entities[e.ID()] = e
			order = append(order, e.ID())
		}
	}
	slices.Sort(order)

	r.mu.Lock()
	r.entities = entities
	r.order = order
	r.mu.Unlock()

	r.logger.Info("entities built", "count", len(order), "skipped_devices", skipped)
	return len(order)
}

// Get returns the entity with the given unique id.
func (r *Registry) Get(id string) (Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// List returns all entities ordered by id.
func (r *Registry) List() []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entity, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entities[id])
	}
	return out
}

// ByDevice returns the entities of one device.
func (r *Registry) ByDevice(deviceID string) []Entity {
	var out []Entity
	for _, e := range r.List() {
		if e.DeviceID() == deviceID {
			out = append(out, e)
		}
	}
	return out
}

// States projects every entity, ordered by id.
func (r *Registry) States() []State {
	entities := r.List()
	out := make([]State, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.State())
	}
	return out
}

// Len returns the number of entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// Do performs an action on the entity with the given id.
func (r *Registry) Do(ctx context.Context, id, action string, params map[string]any) error {
	e, err := r.Get(id)
	if err != nil {
		return err
	}
	if err := e.Do(ctx, action, params); err != nil {
		return err
	}
	r.logger.Debug("entity action sent", "entity_id", id, "action", action)
	return nil
}
