package entity

import (
	"github.com/nerrad567/smarthome-bridge/internal/device"
)

// Pushbutton modes.
const (
	PushbuttonSwitch = "switch"
	PushbuttonButton = "button"
)

// Options tunes entity construction.
type Options struct {
	// PushbuttonMode selects Switch (default) or Button entities for pushbuttons.
	PushbuttonMode string

	// Effects maps hub animation names to display names for lights.
	// A nil map builds lights with an empty effect list.
	Effects map[string]string
}

// builderFunc builds the entities of one device.
type builderFunc func(up Upstream, m device.Metadata, opts Options) []Entity

// builders is the device_type dispatch table.
var builders = map[string]builderFunc{
	device.TypeSwitch:       buildSwitch,
	device.TypePushbutton:   buildPushbutton,
	device.TypeRGBLED:       buildLight,
	device.TypeDimmer:       buildDimmer,
	device.TypeBlind:        buildCover,
	device.TypeSensor:       buildSensor,
	device.TypeBinarySensor: buildBinarySensor,
}

// KindOf returns the entity kind a device type maps to.
func KindOf(m device.Metadata, opts Options) (Kind, bool) {
	switch m.DeviceType {
	case device.TypeSwitch:
		return KindSwitch, true
	case device.TypePushbutton:
		if opts.PushbuttonMode == PushbuttonButton {
			return KindButton, true
		}
		return KindSwitch, true
	case device.TypeRGBLED, device.TypeDimmer:
		return KindLight, true
	case device.TypeBlind:
		return KindCover, true
	case device.TypeSensor:
		return KindSensor, true
	case device.TypeBinarySensor:
		return KindBinarySensor, true
	default:
		return "", false
	}
}

// Build creates the entities of one device.
//
// Returns:
//   - []Entity: One entity, two for dual-port digital modules
//   - bool: false if the device type has no entity mapping
func Build(up Upstream, m device.Metadata, opts Options) ([]Entity, bool) {
	build, ok := builders[m.DeviceType]
	if !ok {
		return nil, false
	}
	return build(up, m, opts), true
}

func buildSwitch(up Upstream, m device.Metadata, _ Options) []Entity {
	if m.IsDigital() {
		return newPorts(up, KindSwitch, m, true)
	}
	return []Entity{&Switch{base: newBase(up, KindSwitch, m, "")}}
}

func buildPushbutton(up Upstream, m device.Metadata, opts Options) []Entity {
	if opts.PushbuttonMode == PushbuttonButton {
		return []Entity{&Button{base: newBase(up, KindButton, m, "")}}
	}
	return []Entity{&Switch{base: newBase(up, KindSwitch, m, "")}}
}

func buildLight(up Upstream, m device.Metadata, opts Options) []Entity {
	effects := opts.Effects
	if effects == nil {
		effects = map[string]string{}
	}
	return []Entity{&Light{base: newBase(up, KindLight, m, ""), effects: effects}}
}

func buildDimmer(up Upstream, m device.Metadata, _ Options) []Entity {
	return []Entity{&Dimmer{base: newBase(up, KindLight, m, "")}}
}

func buildCover(up Upstream, m device.Metadata, _ Options) []Entity {
	return []Entity{&Cover{base: newBase(up, KindCover, m, "")}}
}

func buildSensor(up Upstream, m device.Metadata, _ Options) []Entity {
	class, unit := classifySensor(m)
	return []Entity{&Sensor{base: newBase(up, KindSensor, m, ""), class: class, unit: unit}}
}

func buildBinarySensor(up Upstream, m device.Metadata, _ Options) []Entity {
	if m.IsDigital() {
		return newPorts(up, KindBinarySensor, m, false)
	}
	return []Entity{&BinarySensor{base: newBase(up, KindBinarySensor, m, "")}}
}
