package coordinator

import "errors"

// Errors returned by the coordinator.
//
// Only ErrConnect and ErrFetch ever leave Start; after startup, fetch and
// stream failures are logged and reflected in LastUpdateSuccess instead.
var (
	// ErrConnect is returned by Start when the hub could not be reached.
	ErrConnect = errors.New("coordinator: cannot connect to hub")

	// ErrFetch is returned by Start when the hub answered with an unusable snapshot.
	ErrFetch = errors.New("coordinator: snapshot fetch failed")

	// ErrMalformedMessage marks a stream frame that could not be decoded.
	ErrMalformedMessage = errors.New("coordinator: malformed stream message")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("coordinator: already started")

	// ErrNotRunning is returned by Refresh before Start or after Stop.
	ErrNotRunning = errors.New("coordinator: not running")
)
