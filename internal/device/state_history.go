package device

import (
	"context"
	"time"
)

// State history source values.
const (
	// StateHistorySourceStream marks a state reported by the hub stream.
	StateHistorySourceStream = "stream"

	// StateHistorySourceCommand marks a partial state sent to the hub by this bridge.
	StateHistorySourceCommand = "command"
)

// StateHistoryEntry is one recorded live-state change.
//
// Entries are an audit trail only. The cache is never reloaded from them.
type StateHistoryEntry struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"device_id"`
	State     LiveState `json:"state"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// StateHistoryRepository stores and retrieves device state change history.
//
// Implementations must be safe for concurrent use and store UTC timestamps.
type StateHistoryRepository interface {
	// RecordStateChange records a device state change.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - deviceID: Stringified hub device id
	//   - state: State object to persist
	//   - source: Origin of the change (stream, command)
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordStateChange(ctx context.Context, deviceID string, state LiveState, source string) error

	// GetHistory returns recent state changes for the device, newest first.
	GetHistory(ctx context.Context, deviceID string, limit int) ([]StateHistoryEntry, error)

	// PruneHistory deletes entries older than olderThan and returns the count removed.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}
