package influxdb

import "errors"

// Errors returned by the telemetry client.
var (
	// ErrNotConnected is returned by HealthCheck once the client is closed.
	ErrNotConnected = errors.New("influxdb: telemetry client closed")

	// ErrConnectionFailed is returned by Connect when the server did not pass
	// its startup health check.
	ErrConnectionFailed = errors.New("influxdb: telemetry server unreachable")

	// ErrWriteFailed wraps batch errors passed to the SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: entity value batch rejected")

	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: telemetry disabled")
)
