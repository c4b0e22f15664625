package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/smarthome-bridge/internal/device"
	"github.com/nerrad567/smarthome-bridge/internal/hub"
	"github.com/nerrad567/smarthome-bridge/internal/supervisor"
)

// Default timings.
const (
	defaultPollInterval   = 30 * time.Second
	defaultReconnectDelay = 30 * time.Second
	defaultFetchTimeout   = 10 * time.Second
	defaultStreamBuffer   = 256
)

// HubClient is the REST side of the hub used by the coordinator.
// *hub.Client satisfies it.
type HubClient interface {
	FetchDevices(ctx context.Context) ([]byte, error)
	SendCommand(ctx context.Context, deviceID string, partial map[string]any) error
}

// Config holds coordinator timings.
type Config struct {
	// PollInterval is the period of the snapshot fetch.
	PollInterval time.Duration

	// ReconnectDelay is the fixed wait before re-dialling a dropped stream.
	ReconnectDelay time.Duration

	// FetchTimeout bounds a single snapshot fetch.
	FetchTimeout time.Duration

	// StreamBuffer is the capacity of the frame hand-off channel.
	StreamBuffer int
}

// Logger defines the logging interface for the coordinator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Stats is a point-in-time view of the coordinator for status endpoints.
type Stats struct {
	InstanceID        string           `json:"instance_id"`
	Running           bool             `json:"running"`
	LastUpdateSuccess bool             `json:"last_update_success"`
	Devices           int              `json:"devices"`
	Subscribers       int              `json:"subscribers"`
	LastFetch         time.Time        `json:"last_fetch,omitzero"`
	LastFetchError    string           `json:"last_fetch_error,omitempty"`
	Stream            supervisor.Stats `json:"stream"`
}

// fetchResult carries a completed snapshot fetch to the apply loop.
type fetchResult struct {
	devices  map[string]device.Metadata
	err      error
	duration time.Duration
}

// Coordinator keeps the device Cache in sync with the hub.
//
// Every cache mutation happens on one goroutine, the apply loop. Stream
// frames arrive on the stream's read goroutine and are handed to the loop
// over a channel; snapshot fetches run on their own goroutine and hand their
// result back the same way. Readers use the Cache directly.
type Coordinator struct {
	cfg        Config
	client     HubClient
	cache      *device.Cache
	notifier   *Notifier
	supervisor *supervisor.Supervisor
	metrics    *Metrics
	logger     Logger
	instanceID string

	frames       chan []byte
	refreshReq   chan chan error
	fetchResults chan fetchResult
	stopping     chan struct{}
	loopDone     chan struct{}

	// Owned by the apply loop.
	fetching bool
	waiters  []chan error

	mu           sync.Mutex
	started      bool
	running      bool
	cancel       context.CancelFunc
	lastFetch    time.Time
	lastFetchErr error
	stopOnce     sync.Once
}

// New creates a coordinator. Nothing touches the network until Start.
//
// Parameters:
//   - cfg: Timings; zero values take the defaults (30s poll, 30s reconnect, 10s fetch)
//   - client: REST client for snapshots and commands
//   - dialer: Opens the hub stream
//
// Returns:
//   - *Coordinator: Idle coordinator with an empty cache
func New(cfg Config, client HubClient, dialer supervisor.Dialer) *Coordinator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.StreamBuffer <= 0 {
		cfg.StreamBuffer = defaultStreamBuffer
	}

	c := &Coordinator{
		cfg:          cfg,
		client:       client,
		cache:        device.NewCache(),
		notifier:     NewNotifier(),
		logger:       noopLogger{},
		instanceID:   uuid.NewString(),
		frames:       make(chan []byte, cfg.StreamBuffer),
		refreshReq:   make(chan chan error),
		fetchResults: make(chan fetchResult, 1),
		stopping:     make(chan struct{}),
		loopDone:     make(chan struct{}),
	}
	c.supervisor = supervisor.New(supervisor.Config{
		Name:           "hub-stream",
		ReconnectDelay: cfg.ReconnectDelay,
		OnFrame:        c.handleFrame,
		OnStateChange:  c.handleStreamState,
	}, dialer)
	return c
}

// SetLogger sets the logger for the coordinator and its stream supervisor.
func (c *Coordinator) SetLogger(logger Logger) {
	c.logger = logger
	c.supervisor.SetLogger(logger)
}

// SetMetrics attaches prometheus collectors.
func (c *Coordinator) SetMetrics(m *Metrics) {
	c.metrics = m
}

// Start performs the first snapshot fetch, then starts the poll loop and
// the stream.
//
// The first fetch gates startup: if it fails nothing is started and the
// error is returned. Later fetch failures are only logged.
//
// Parameters:
//   - ctx: Bounds the first fetch only
//
// Returns:
//   - error: ErrConnect if the hub is unreachable, ErrFetch for a bad
//     answer, ErrAlreadyStarted on a second call, ErrNotRunning if Stop
//     was called before the first fetch returned
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	c.logger.Info("starting coordinator", "instance_id", c.instanceID)

	// The loop is not running yet, so applying here keeps a single writer.
	res := c.fetch(ctx)
	c.applyFetch(res)
	if res.err != nil {
		if errors.Is(res.err, hub.ErrUnreachable) {
			return fmt.Errorf("%w: %w", ErrConnect, res.err)
		}
		return fmt.Errorf("%w: %w", ErrFetch, res.err)
	}

	c.mu.Lock()
	select {
	case <-c.stopping:
		c.mu.Unlock()
		c.logger.Info("coordinator stopped during startup")
		return ErrNotRunning
	default:
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.running = true
	c.mu.Unlock()

	go c.run(loopCtx)

	if err := c.supervisor.Start(loopCtx); err != nil && !errors.Is(err, supervisor.ErrShuttingDown) {
		c.logger.Error("starting stream supervisor", "error", err)
	}

	c.logger.Info("coordinator started",
		"devices", c.cache.Len(),
		"poll_interval", c.cfg.PollInterval,
		"reconnect_delay", c.cfg.ReconnectDelay,
	)
	return nil
}

// Stop shuts the coordinator down.
//
// The stream supervisor is stopped first (no reconnect is ever scheduled
// afterwards and the open stream is closed), then the apply loop exits. A
// fetch already in flight is allowed to complete and is applied before the
// loop returns. Safe to call more than once, and before Start.
func (c *Coordinator) Stop() error {
	c.stopOnce.Do(func() {
		c.logger.Info("stopping coordinator")

		if err := c.supervisor.Stop(); err != nil {
			c.logger.Warn("stopping stream supervisor", "error", err)
		}
		c.mu.Lock()
		close(c.stopping)
		cancel := c.cancel
		c.mu.Unlock()
		if cancel != nil {
			cancel()
			<-c.loopDone
		}

		c.mu.Lock()
		c.running = false
		c.mu.Unlock()

		c.notifier.Close()
		c.logger.Info("coordinator stopped")
	})
	return nil
}

// run is the apply loop: the only goroutine that mutates the cache after Start.
func (c *Coordinator) run(ctx context.Context) {
	defer close(c.loopDone)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if c.fetching {
				c.logger.Debug("waiting for in-flight snapshot fetch")
				c.applyFetch(<-c.fetchResults)
			}
			return

		case <-ticker.C:
			c.startFetch(nil)

		case reply := <-c.refreshReq:
			c.startFetch(reply)

		case res := <-c.fetchResults:
			c.applyFetch(res)

		case frame := <-c.frames:
			c.applyFrame(frame)
		}
	}
}

// startFetch launches a snapshot fetch unless one is already in flight, in
// which case reply joins the pending one.
func (c *Coordinator) startFetch(reply chan error) {
	if reply != nil {
		c.waiters = append(c.waiters, reply)
	}
	if c.fetching {
		return
	}
	c.fetching = true

	// Detached from the loop context so shutdown lets it finish.
	go func() {
		c.fetchResults <- c.fetch(context.Background())
	}()
}

// fetch performs one snapshot fetch and decode. It never touches the cache.
func (c *Coordinator) fetch(ctx context.Context) fetchResult {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	body, err := c.client.FetchDevices(ctx)
	if err != nil {
		return fetchResult{err: err, duration: time.Since(start)}
	}
	devices, err := device.DecodeDevices(body)
	return fetchResult{devices: devices, err: err, duration: time.Since(start)}
}

// applyFetch installs a fetch result and notifies subscribers whatever the
// outcome, so they can re-evaluate availability.
func (c *Coordinator) applyFetch(res fetchResult) {
	c.fetching = false

	if res.err != nil {
		// Keep the previous metadata; stale beats empty.
		c.cache.SetLastUpdateSuccess(false)
		c.logger.Warn("device snapshot fetch failed", "error", res.err, "duration", res.duration)
	} else {
		c.cache.ReplaceMetadata(res.devices)
		c.cache.SetLastUpdateSuccess(true)
		c.logger.Debug("device snapshot applied", "devices", len(res.devices), "duration", res.duration)
	}
	c.metrics.observeFetch(res.err == nil, res.duration.Seconds(), len(res.devices))

	c.mu.Lock()
	c.lastFetch = time.Now()
	c.lastFetchErr = res.err
	c.mu.Unlock()

	c.notify()

	for _, w := range c.waiters {
		w <- res.err
	}
	c.waiters = nil
}

// applyFrame decodes one stream frame and applies its state entries.
func (c *Coordinator) applyFrame(frame []byte) {
	msg, err := decodeMessage(frame)
	if err != nil {
		c.metrics.observeFrame("malformed")
		c.logger.Warn("dropping stream message", "error", err, "size", len(frame))
		return
	}
	c.metrics.observeFrame(msg.Type)

	switch msg.Type {
	case MessageDeviceUpdate, MessageInitialStates:
	default:
		c.logger.Debug("ignoring stream message", "type", msg.Type)
		return
	}

	applied, dropped := 0, 0
	for _, e := range msg.Entries {
		if c.cache.ApplyState(e.DeviceID, e.State) {
			applied++
		} else {
			dropped++
		}
	}
	c.metrics.observeStates(applied, dropped)

	if msg.Skipped > 0 {
		c.logger.Warn("skipped malformed initial_states entries", "skipped", msg.Skipped)
	}
	if dropped > 0 {
		c.logger.Debug("dropped state for unknown devices", "type", msg.Type, "dropped", dropped)
	}

	c.notify()
}

func (c *Coordinator) notify() {
	c.metrics.observeNotify()
	c.notifier.Notify()
}

// handleFrame runs on the stream's read goroutine. It only hands the frame
// to the apply loop and never touches the cache.
func (c *Coordinator) handleFrame(frame []byte) {
	select {
	case c.frames <- frame:
	case <-c.stopping:
	}
}

// handleStreamState mirrors supervisor transitions into metrics.
func (c *Coordinator) handleStreamState(state supervisor.State) {
	c.metrics.observeStream(state == supervisor.StateConnected, state == supervisor.StateDisconnected)
}

// Refresh requests an immediate snapshot fetch and waits for its outcome.
//
// If a fetch is already in flight the caller shares its result instead of
// starting another one.
//
// Returns:
//   - error: The fetch error, ctx.Err(), or ErrNotRunning
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	reply := make(chan error, 1)
	select {
	case c.refreshReq <- reply:
	case <-c.stopping:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Metadata returns the current metadata for a device.
func (c *Coordinator) Metadata(id string) (device.Metadata, bool) {
	return c.cache.Metadata(id)
}

// LiveState returns the device's current live state, empty if none.
// The returned map must not be modified.
func (c *Coordinator) LiveState(id string) device.LiveState {
	return c.cache.LiveState(id)
}

// Devices returns the current metadata ordered by id.
func (c *Coordinator) Devices() []device.Metadata {
	return c.cache.Devices()
}

// LastUpdateSuccess reports whether the latest snapshot fetch succeeded.
func (c *Coordinator) LastUpdateSuccess() bool {
	return c.cache.LastUpdateSuccess()
}

// Subscribe registers fn to be called after every cache change.
// See Notifier.Subscribe.
func (c *Coordinator) Subscribe(fn func()) func() {
	return c.notifier.Subscribe(fn)
}

// SendCommand forwards a partial state to the hub.
//
// The cache is not touched; the new state arrives later over the stream.
// Failures are returned to the caller only.
func (c *Coordinator) SendCommand(ctx context.Context, id string, partial map[string]any) error {
	err := c.client.SendCommand(ctx, id, partial)
	c.metrics.observeCommand(err == nil)
	if err != nil {
		c.logger.Error("command failed", "device_id", id, "error", err)
		return err
	}
	c.logger.Debug("command sent", "device_id", id, "fields", len(partial))
	return nil
}

// StreamConnected reports whether the hub stream is currently open.
func (c *Coordinator) StreamConnected() bool {
	return c.supervisor.IsConnected()
}

// Stats returns a snapshot of the coordinator's state.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	stats := Stats{
		InstanceID: c.instanceID,
		Running:    c.running,
		LastFetch:  c.lastFetch,
	}
	if c.lastFetchErr != nil {
		stats.LastFetchError = c.lastFetchErr.Error()
	}
	c.mu.Unlock()

	stats.LastUpdateSuccess = c.cache.LastUpdateSuccess()
	stats.Devices = c.cache.Len()
	stats.Subscribers = c.notifier.Len()
	stats.Stream = c.supervisor.Stats()
	return stats
}
