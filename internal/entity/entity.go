package entity

import (
	"context"
	"fmt"

	"github.com/nerrad567/smarthome-bridge/internal/device"
)

// Kind is the presentation type of an entity.
type Kind string

// Entity kinds.
const (
	KindSwitch       Kind = "switch"
	KindButton       Kind = "button"
	KindLight        Kind = "light"
	KindCover        Kind = "cover"
	KindSensor       Kind = "sensor"
	KindBinarySensor Kind = "binary_sensor"
)

// Common action names.
const (
	ActionTurnOn  = "turn_on"
	ActionTurnOff = "turn_off"
	ActionPress   = "press"
)

// Upstream is the coordinator contract entities are built on.
// *coordinator.Coordinator satisfies it.
type Upstream interface {
	Metadata(id string) (device.Metadata, bool)
	LiveState(id string) device.LiveState
	LastUpdateSuccess() bool
	SendCommand(ctx context.Context, id string, partial map[string]any) error
}

// Entity is a typed, read-only projection of one device (or one port of a
// device) plus the commands it accepts.
//
// Entities hold no state of their own: every State call reads the cache
// through Upstream, and every action goes to the hub without touching it.
type Entity interface {
	// ID is the stable unique id, casait_{device id}_{device uuid}[_{port}].
	ID() string
	Kind() Kind
	DeviceID() string
	Name() string

	// Available is true while the last snapshot fetch succeeded and the
	// device is present in it.
	Available() bool

	// State projects the current cache contents.
	State() State

	// Actions lists the action names Do accepts.
	Actions() []string

	// Do performs an action. Parameter errors wrap ErrInvalidParams; hub
	// failures are returned unchanged.
	Do(ctx context.Context, action string, params map[string]any) error
}

// State is the projection of an entity at one instant.
type State struct {
	EntityID  string `json:"entity_id"`
	Kind      Kind   `json:"kind"`
	DeviceID  string `json:"device_id"`
	Name      string `json:"name"`
	Available bool   `json:"available"`

	// Value is the primary numeric reading (on/off as 1/0, brightness,
	// position, sensor value), nil when unknown.
	Value *float64 `json:"value"`

	// Attributes holds the kind-specific projection.
	Attributes map[string]any `json:"attributes"`
}

// base carries what every entity shares.
type base struct {
	up       Upstream
	kind     Kind
	deviceID string
	uniqueID string
	name     string
}

func newBase(up Upstream, kind Kind, m device.Metadata, suffix string) base {
	uniqueID := "casait_" + m.ID
	if m.UUID != "" {
		uniqueID += "_" + m.UUID
	}
	name := m.Name
	if suffix != "" {
		uniqueID += "_" + suffix
		name = fmt.Sprintf("%s %s", m.Name, suffix)
	}
	return base{up: up, kind: kind, deviceID: m.ID, uniqueID: uniqueID, name: name}
}

func (b *base) ID() string       { return b.uniqueID }
func (b *base) Kind() Kind       { return b.kind }
func (b *base) DeviceID() string { return b.deviceID }
func (b *base) Name() string     { return b.name }

func (b *base) Available() bool {
	if !b.up.LastUpdateSuccess() {
		return false
	}
	_, ok := b.up.Metadata(b.deviceID)
	return ok
}

// metadata returns the device's current metadata, zero if it left the snapshot.
func (b *base) metadata() device.Metadata {
	m, _ := b.up.Metadata(b.deviceID)
	return m
}

func (b *base) live() device.LiveState {
	return b.up.LiveState(b.deviceID)
}

func (b *base) send(ctx context.Context, partial map[string]any) error {
	return b.up.SendCommand(ctx, b.deviceID, partial)
}

// project fills the shared fields of a State.
func (b *base) project(value *float64, attrs map[string]any) State {
	if attrs == nil {
		attrs = map[string]any{}
	}
	return State{
		EntityID:   b.uniqueID,
		Kind:       b.kind,
		DeviceID:   b.deviceID,
		Name:       b.name,
		Available:  b.Available(),
		Value:      value,
		Attributes: attrs,
	}
}

func unknownAction(e Entity, action string) error {
	return fmt.Errorf("%w: %q on %s %s", ErrUnknownAction, action, e.Kind(), e.ID())
}

func boolValue(on bool) *float64 {
	v := 0.0
	if on {
		v = 1
	}
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}
