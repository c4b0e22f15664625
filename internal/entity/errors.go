package entity

import "errors"

// Domain errors for the entity package.
var (
	// ErrNotFound is returned when an entity id is not registered.
	ErrNotFound = errors.New("entity: not found")

	// ErrUnknownAction is returned when an entity does not implement an action.
	ErrUnknownAction = errors.New("entity: unknown action")

	// ErrInvalidParams is returned when action parameters fail validation.
	ErrInvalidParams = errors.New("entity: invalid parameters")

	// ErrUnsupported is returned for an action the device cannot perform,
	// e.g. set_position on a blind without position control.
	ErrUnsupported = errors.New("entity: not supported by device")
)
