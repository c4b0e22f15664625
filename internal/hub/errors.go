package hub

import (
	"errors"
	"fmt"
)

// Sentinel errors for hub transport operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, hub.ErrUnreachable) {
//	    // network-level failure, the hub never answered
//	}
var (
	// ErrUnreachable indicates the hub could not be reached (refused, DNS, timeout).
	ErrUnreachable = errors.New("hub: unreachable")

	// ErrBadStatus indicates the hub answered with an unexpected HTTP status.
	ErrBadStatus = errors.New("hub: unexpected status")

	// ErrDecode indicates the hub answered with a body that could not be decoded.
	ErrDecode = errors.New("hub: malformed response body")

	// ErrCommand indicates a state command was not accepted by the hub.
	ErrCommand = errors.New("hub: command failed")

	// ErrInvalidURL indicates a configured hub URL could not be parsed.
	ErrInvalidURL = errors.New("hub: invalid url")

	// ErrDial indicates the stream connection could not be opened.
	ErrDial = errors.New("hub: stream dial failed")

	// ErrStreamClosed indicates the stream terminated, either by the peer,
	// by a read error, or by a local Close.
	ErrStreamClosed = errors.New("hub: stream closed")
)

// StatusError carries the HTTP status of a rejected request.
//
// It is always wrapped together with ErrBadStatus or ErrCommand, so callers
// can use errors.As to recover the status code.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.StatusCode)
}
