package supervisor

import "errors"

// ErrShuttingDown is returned by Start once Stop has been called.
var ErrShuttingDown = errors.New("supervisor: shutting down")
