package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/smarthome-bridge/internal/device"
)

// DefaultPruneInterval is how often old history rows are deleted.
const DefaultPruneInterval = time.Hour

// DeviceSource exposes the cache. *coordinator.Coordinator satisfies it.
type DeviceSource interface {
	Devices() []device.Metadata
	LiveState(id string) device.LiveState
}

// HistoryRecorder writes a state_history row for every observed change of
// a device's live state. Devices that have not reported any state yet are
// skipped.
type HistoryRecorder struct {
	repo      device.StateHistoryRepository
	devices   DeviceSource
	retention time.Duration
	seen      *tracker
	logger    Logger

	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

// NewHistoryRecorder creates a recorder. A non-positive retention disables pruning.
func NewHistoryRecorder(repo device.StateHistoryRepository, devices DeviceSource, retention time.Duration) *HistoryRecorder {
	return &HistoryRecorder{
		repo:      repo,
		devices:   devices,
		retention: retention,
		seen:      newTracker(),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the recorder.
func (r *HistoryRecorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Sync records every device whose live state changed since the last pass.
// A failed write is retried on the next pass.
func (r *HistoryRecorder) Sync(ctx context.Context) {
	for _, m := range r.devices.Devices() {
		st := r.devices.LiveState(m.ID)
		if len(st) == 0 {
			continue
		}
		if !r.seen.changed(m.ID, st) {
			continue
		}
		if err := r.repo.RecordStateChange(ctx, m.ID, st, device.StateHistorySourceStream); err != nil {
			r.seen.forget(m.ID)
			r.logger.Warn("recording state history", "device_id", m.ID, "error", err)
		}
	}
}

// StartPruning deletes rows older than the retention every interval until
// StopPruning. It returns immediately; calling it twice is a no-op.
func (r *HistoryRecorder) StartPruning(interval time.Duration) {
	if r.retention <= 0 {
		return
	}
	if interval <= 0 {
		interval = DefaultPruneInterval
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		return
	}
	r.stop = make(chan struct{})
	r.stopped = make(chan struct{})

	go r.pruneLoop(interval, r.stop, r.stopped)
}

// StopPruning stops the pruning loop and waits for it to exit.
func (r *HistoryRecorder) StopPruning() {
	r.mu.Lock()
	stop, stopped := r.stop, r.stopped
	r.stop, r.stopped = nil, nil
	r.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped
}

func (r *HistoryRecorder) pruneLoop(interval time.Duration, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.Prune(context.Background())
		}
	}
}

// Prune deletes rows older than the retention once.
func (r *HistoryRecorder) Prune(ctx context.Context) {
	if r.retention <= 0 {
		return
	}
	n, err := r.repo.PruneHistory(ctx, r.retention)
	if err != nil {
		r.logger.Warn("pruning state history", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("state history pruned", "rows", n, "retention", r.retention.String())
	}
}
