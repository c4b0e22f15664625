package fanout

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nerrad567/smarthome-bridge/internal/entity"
)

// Logger defines the logging interface used by the mirrors.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Notifier delivers change signals. *coordinator.Coordinator satisfies it.
type Notifier interface {
	Subscribe(fn func()) (unsubscribe func())
}

// StateLister projects every entity. *entity.Registry satisfies it.
type StateLister interface {
	States() []entity.State
}

// Sink reacts to one change signal by re-reading what it mirrors.
type Sink interface {
	Sync(ctx context.Context)
}

// Attach subscribes sink to n. Signals are coalesced by the notifier, so a
// slow sink sees fewer, later passes rather than a backlog.
//
// The returned function unsubscribes.
func Attach(ctx context.Context, n Notifier, sink Sink) func() {
	return n.Subscribe(func() {
		if ctx.Err() != nil {
			return
		}
		sink.Sync(ctx)
	})
}

// tracker remembers the last serialized form of each key and reports
// which keys changed since the previous pass.
type tracker struct {
	mu   sync.Mutex
	last map[string]string
}

func newTracker() *tracker {
	return &tracker{last: make(map[string]string)}
}

// changed reports whether v differs from the value last seen for key and
// records it. Values that fail to marshal count as changed.
func (t *tracker) changed(key string, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return true
	}
	s := string(b)

	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.last[key]; ok && prev == s {
		return false
	}
	t.last[key] = s
	return true
}

// forget drops key so the next pass treats it as changed.
func (t *tracker) forget(key string) {
	t.mu.Lock()
	delete(t.last, key)
	t.mu.Unlock()
}

// reset drops every key.
func (t *tracker) reset() {
	t.mu.Lock()
	t.last = make(map[string]string)
	t.mu.Unlock()
}
