package supervisor

import (
	"context"
	"sync"
	"time"
)

// State represents the current state of the supervised stream.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateShuttingDown State = "shutting_down"
)

// Default timings.
const (
	defaultReconnectDelay = 30 * time.Second
	defaultDialTimeout    = 10 * time.Second
)

// Stream is an open connection whose termination is signalled by Done.
type Stream interface {
	// Done is closed exactly once when the stream terminates.
	Done() <-chan struct{}

	// Err reports why the stream terminated.
	Err() error

	// Close requests termination. It must be idempotent.
	Close() error
}

// Dialer opens a new Stream that delivers frames to onFrame.
type Dialer interface {
	Dial(ctx context.Context, onFrame func(frame []byte)) (Stream, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, onFrame func(frame []byte)) (Stream, error)

// Dial calls f(ctx, onFrame).
func (f DialerFunc) Dial(ctx context.Context, onFrame func(frame []byte)) (Stream, error) {
	return f(ctx, onFrame)
}

// Config holds configuration for a Supervisor.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// ReconnectDelay is the fixed wait between a disconnect and the next attempt.
	ReconnectDelay time.Duration

	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration

	// OnFrame receives every frame from the current stream.
	OnFrame func(frame []byte)

	// OnStateChange is called after every state transition.
	OnStateChange func(State)
}

// Logger defines the logging interface for the supervisor.
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

// Stats is a point-in-time view of the supervisor.
type Stats struct {
	State          State     `json:"state"`
	Connects       int       `json:"connects"`
	Reconnects     int       `json:"reconnects"`
	LastError      string    `json:"last_error,omitempty"`
	ConnectedSince time.Time `json:"connected_since,omitzero"`
}

// Supervisor keeps one stream open and reconnects it after a fixed delay.
type Supervisor struct {
	config Config
	dialer Dialer
	logger Logger

	mu             sync.RWMutex
	state          State
	stream         Stream
	connects       int
	reconnects     int
	lastError      error
	connectedSince time.Time
	cancel         context.CancelFunc
	done           chan struct{}
}

// New creates a supervisor in the Idle state. Nothing is dialled until Start.
func New(cfg Config, dialer Dialer) *Supervisor {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.Name == "" {
		cfg.Name = "stream"
	}

	return &Supervisor{
		config: cfg,
		dialer: dialer,
		logger: noopLogger{},
		state:  StateIdle,
	}
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
}

// Start launches the monitor goroutine, which connects immediately.
//
// Calling Start while a connection attempt is in flight, a stream is open, or
// a reconnect is already scheduled is a logged no-op.
//
// Parameters:
//   - ctx: Parent context; cancelling it closes the stream and moves the
//     supervisor to ShuttingDown, as Stop does
//
// Returns:
//   - error: ErrShuttingDown after Stop, nil otherwise
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateShuttingDown:
		s.mu.Unlock()
		return ErrShuttingDown
	case StateIdle:
	default:
		state := s.state
		s.mu.Unlock()
		s.logger.Warn("stream client already running", "name", s.config.Name, "state", state)
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateConnecting
	done := s.done
	s.mu.Unlock()

	if s.config.OnStateChange != nil {
		s.config.OnStateChange(StateConnecting)
	}
	s.logger.Info("starting stream client", "name", s.config.Name)
	go s.monitor(runCtx, done)

	return nil
}

// monitor connects, waits for the stream to end, and reconnects after the delay.
func (s *Supervisor) monitor(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer s.exited(ctx)

	for {
		stream, err := s.connect(ctx)
		if err == nil {
			select {
			case <-stream.Done():
				err = stream.Err()
			case <-ctx.Done():
				stream.Close() //nolint:errcheck // Shutting down
				return
			}
		}

		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		if s.state == StateShuttingDown {
			s.mu.Unlock()
			return
		}
		s.stream = nil
		s.lastError = err
		s.connectedSince = time.Time{}
		s.reconnects++
		attempt := s.reconnects
		s.mu.Unlock()

		s.setState(StateDisconnected)
		s.logger.Warn("stream disconnected, reconnect scheduled",
			"name", s.config.Name,
			"error", err,
			"attempt", attempt,
			"delay", s.config.ReconnectDelay,
		)

		timer := time.NewTimer(s.config.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Debug("reconnect cancelled", "name", s.config.Name)
			return
		case <-timer.C:
		}

		s.setState(StateConnecting)
	}
}

// exited moves to ShuttingDown when the parent context ended the monitor
// without a call to Stop.
func (s *Supervisor) exited(ctx context.Context) {
	if ctx.Err() == nil {
		return
	}
	s.mu.Lock()
	if s.state == StateShuttingDown {
		s.mu.Unlock()
		return
	}
	s.state = StateShuttingDown
	s.stream = nil
	s.connectedSince = time.Time{}
	s.mu.Unlock()

	if s.config.OnStateChange != nil {
		s.config.OnStateChange(StateShuttingDown)
	}
	s.logger.Info("stream client stopped by context", "name", s.config.Name)
}

// connect performs one dial attempt and records the result.
func (s *Supervisor) connect(ctx context.Context) (Stream, error) {
	dialCtx, cancel := context.WithTimeout(ctx, s.config.DialTimeout)
	defer cancel()

	stream, err := s.dialer.Dial(dialCtx, s.config.OnFrame)
	if err != nil {
		s.logger.Error("stream connect failed", "name", s.config.Name, "error", err)
		return nil, err
	}

	s.mu.Lock()
	if s.state == StateShuttingDown {
		s.mu.Unlock()
		stream.Close() //nolint:errcheck // Raced with Stop
		return nil, ErrShuttingDown
	}
	s.stream = stream
	s.connects++
	s.connectedSince = time.Now()
	s.mu.Unlock()

	s.setState(StateConnected)
	s.logger.Info("stream connected", "name", s.config.Name)
	return stream, nil
}

// Stop moves to ShuttingDown, cancels any pending reconnect, closes the open
// stream, and waits for the monitor goroutine to exit. No reconnect is ever
// scheduled afterwards. Safe to call more than once.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if s.state == StateShuttingDown {
		s.mu.Unlock()
		return nil
	}
	s.state = StateShuttingDown
	cancel := s.cancel
	stream := s.stream
	done := s.done
	s.mu.Unlock()

	if s.config.OnStateChange != nil {
		s.config.OnStateChange(StateShuttingDown)
	}
	s.logger.Info("stopping stream client", "name", s.config.Name)

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		if err := stream.Close(); err != nil {
			s.logger.Debug("closing stream", "name", s.config.Name, "error", err)
		}
	}
	if done != nil {
		<-done
	}
	return nil
}

// setState records a transition and notifies the OnStateChange hook.
func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	if s.state == StateShuttingDown && state != StateShuttingDown {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()

	if s.config.OnStateChange != nil {
		s.config.OnStateChange(state)
	}
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsConnected returns true if a stream is currently open.
func (s *Supervisor) IsConnected() bool {
	return s.State() == StateConnected
}

// Stats returns a snapshot of connection counters.
func (s *Supervisor) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		State:          s.state,
		Connects:       s.connects,
		Reconnects:     s.reconnects,
		ConnectedSince: s.connectedSince,
	}
	if s.lastError != nil {
		stats.LastError = s.lastError.Error()
	}
	return stats
}
