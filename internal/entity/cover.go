package entity

import (
	"context"
	"fmt"
)

// Cover actions.
const (
	ActionOpen        = "open"
	ActionClose       = "close"
	ActionStop        = "stop"
	ActionSetPosition = "set_position"
)

// Cover positions understood by the hub.
const (
	PositionClosed  = 0
	PositionOpen    = 100
	PositionStopped = -1
)

// Cover is a blind. Position is 0 (closed) to 100 (open); -1 means stopped
// at an unknown position.
type Cover struct {
	base
}

// position returns the reported position, false when unknown.
func (c *Cover) position() (int, bool) {
	pos, ok := c.live().Int("position")
	if !ok || pos == PositionStopped {
		return 0, false
	}
	return pos, true
}

// canUsePositions reads the capability from the current metadata.
func (c *Cover) canUsePositions() bool {
	return c.metadata().CanUsePositions
}

// movement reports opening and closing from the metadata's moving flag.
//
// For position-capable blinds the target position (live state) is compared
// with metadata current_position; otherwise a target of 100 means opening
// and 0 means closing.
func (c *Cover) movement() (opening, closing bool) {
	m := c.metadata()
	moving, _ := m.Attributes.Bool("moving")
	if !moving {
		return false, false
	}

	target, _ := c.live().Int("position")
	if m.CanUsePositions {
		current, _ := m.Attributes.Int("current_position")
		return target > current, target < current
	}
	return target == PositionOpen, target == PositionClosed
}

// State reports position, is_closed, is_opening, is_closing and supported features.
func (c *Cover) State() State {
	opening, closing := c.movement()
	attrs := map[string]any{
		"position":   nil,
		"is_closed":  nil,
		"is_opening": opening,
		"is_closing": closing,
		"features":   c.Actions(),
	}

	pos, ok := c.position()
	if !ok {
		return c.project(nil, attrs)
	}
	attrs["position"] = pos
	attrs["is_closed"] = pos == PositionClosed
	return c.project(floatPtr(float64(pos)), attrs)
}

// Actions returns set_position for position-capable blinds, open/close/stop
// otherwise. Do still accepts open and close on either kind.
func (c *Cover) Actions() []string {
	if c.canUsePositions() {
		return []string{ActionSetPosition}
	}
	return []string{ActionOpen, ActionClose, ActionStop}
}

// Do moves the blind. open, close and stop send positions 100, 0 and -1.
func (c *Cover) Do(ctx context.Context, action string, params map[string]any) error {
	switch action {
	case ActionOpen:
		return c.sendPosition(ctx, PositionOpen)
	case ActionClose:
		return c.sendPosition(ctx, PositionClosed)
	case ActionStop:
		return c.sendPosition(ctx, PositionStopped)
	case ActionSetPosition:
		if !c.canUsePositions() {
			return fmt.Errorf("%w: %s has no position control", ErrUnsupported, c.ID())
		}
		pos, ok, err := intParam(params, "position", PositionClosed, PositionOpen)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: position is required", ErrInvalidParams)
		}
		return c.sendPosition(ctx, pos)
	default:
		return unknownAction(c, action)
	}
}

func (c *Cover) sendPosition(ctx context.Context, pos int) error {
	return c.send(ctx, map[string]any{"position": pos})
}
