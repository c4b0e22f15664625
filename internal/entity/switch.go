package entity

import (
	"context"

	"github.com/nerrad567/smarthome-bridge/internal/device"
)

// Dual-port keys on digital modules.
const (
	PortA = "port_a"
	PortB = "port_b"
)

// Switch is an on/off output reading and commanding the "state" field.
type Switch struct {
	base
}

func (s *Switch) isOn() bool {
	on, _ := s.live().Bool("state")
	return on
}

// State reports is_on.
func (s *Switch) State() State {
	on := s.isOn()
	return s.project(boolValue(on), map[string]any{"is_on": on})
}

// Actions returns turn_on and turn_off.
func (s *Switch) Actions() []string {
	return []string{ActionTurnOn, ActionTurnOff}
}

// Do sends {"state": true|false}.
func (s *Switch) Do(ctx context.Context, action string, _ map[string]any) error {
	switch action {
	case ActionTurnOn:
		return s.send(ctx, map[string]any{"state": true})
	case ActionTurnOff:
		return s.send(ctx, map[string]any{"state": false})
	default:
		return unknownAction(s, action)
	}
}

// Port is one port of a dual-port digital module. Its value lives in
// multistate.{port}; a writable port is commanded with {"{port}": bool}.
type Port struct {
	base
	port     string
	writable bool
}

func (p *Port) isOn() bool {
	multistate, ok := p.live().Object("multistate")
	if !ok {
		return false
	}
	on, _ := multistate.Bool(p.port)
	return on
}

// State reports is_on and the port name.
func (p *Port) State() State {
	on := p.isOn()
	return p.project(boolValue(on), map[string]any{"is_on": on, "port": p.port})
}

// Actions returns turn_on and turn_off for output ports, nothing for inputs.
func (p *Port) Actions() []string {
	if !p.writable {
		return nil
	}
	return []string{ActionTurnOn, ActionTurnOff}
}

// Do sends {"port_a": bool} or {"port_b": bool}.
func (p *Port) Do(ctx context.Context, action string, _ map[string]any) error {
	if !p.writable {
		return unknownAction(p, action)
	}
	switch action {
	case ActionTurnOn:
		return p.send(ctx, map[string]any{p.port: true})
	case ActionTurnOff:
		return p.send(ctx, map[string]any{p.port: false})
	default:
		return unknownAction(p, action)
	}
}

// Button is a momentary pushbutton. Pressing it sends {"state": true}.
type Button struct {
	base
}

// State carries no reading; a button is stateless.
func (b *Button) State() State {
	return b.project(nil, nil)
}

// Actions returns press.
func (b *Button) Actions() []string {
	return []string{ActionPress}
}

// Do presses the button.
func (b *Button) Do(ctx context.Context, action string, _ map[string]any) error {
	if action != ActionPress {
		return unknownAction(b, action)
	}
	return b.send(ctx, map[string]any{"state": true})
}

// BinarySensor is a read-only on/off input.
type BinarySensor struct {
	base
}

// State reports is_on.
func (s *BinarySensor) State() State {
	on, _ := s.live().Bool("state")
	return s.project(boolValue(on), map[string]any{"is_on": on})
}

// Actions returns nothing.
func (s *BinarySensor) Actions() []string { return nil }

// Do always fails; binary sensors accept no actions.
func (s *BinarySensor) Do(_ context.Context, action string, _ map[string]any) error {
	return unknownAction(s, action)
}

func newPorts(up Upstream, kind Kind, m device.Metadata, writable bool) []Entity {
	return []Entity{
		&Port{base: newBase(up, kind, m, PortA), port: PortA, writable: writable},
		&Port{base: newBase(up, kind, m, PortB), port: PortB, writable: writable},
	}
}
