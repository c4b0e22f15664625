package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/smarthome-bridge/internal/coordinator"
	"github.com/nerrad567/smarthome-bridge/internal/device"
	"github.com/nerrad567/smarthome-bridge/internal/entity"
	"github.com/nerrad567/smarthome-bridge/internal/infrastructure/config"
	"github.com/nerrad567/smarthome-bridge/internal/infrastructure/database"
	"github.com/nerrad567/smarthome-bridge/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Coordinator is the device-state surface the API reads and commands.
// *coordinator.Coordinator satisfies it.
type Coordinator interface {
	entity.Upstream
	Devices() []device.Metadata
	StreamConnected() bool
	Subscribe(fn func()) func()
	Refresh(ctx context.Context) error
	Stats() coordinator.Stats
}

// HubPinger checks hub reachability. *hub.Client satisfies it.
type HubPinger interface {
	Ping(ctx context.Context) error
}

// ConnectionChecker reports a connection's liveness. *mqtt.Client satisfies it.
type ConnectionChecker interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	Logger      *logging.Logger
	Coordinator Coordinator
	Entities    *entity.Registry
	Hub         HubPinger                     // optional: health falls back to the last fetch result
	History     device.StateHistoryRepository // optional: history endpoints answer 503 without it
	MQTT        ConnectionChecker             // optional
	DB          *database.DB                  // optional
	Gatherer    prometheus.Gatherer           // optional: defaults to prometheus.DefaultGatherer
	Version     string
}

// Server is the local HTTP API and WebSocket server.
//
// It is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	logger      *logging.Logger
	coord       Coordinator
	entities    *entity.Registry
	hubClient   HubPinger
	history     device.StateHistoryRepository
	mqtt        ConnectionChecker
	db          *database.DB
	gatherer    prometheus.Gatherer
	version     string
	startedAt   time.Time
	server      *http.Server
	hub         *Hub
	cancel      context.CancelFunc // cancels background goroutines on Close()
	unsubscribe func()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, coordinator, entities)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	if deps.Entities == nil {
		return nil, fmt.Errorf("entity registry is required")
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		coord:     deps.Coordinator,
		entities:  deps.Entities,
		hubClient: deps.Hub,
		history:   deps.History,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		gatherer:  gatherer,
		version:   deps.Version,
		startedAt: time.Now(),
		hub:       NewHub(deps.Config.WebSocket, deps.Logger),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, subscribes it to coordinator notifications,
// and launches the HTTP listener in a background goroutine. The server can
// be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for background goroutines
//
// Returns:
//   - error: Always nil; listener errors are logged
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	s.subscribeStateUpdates()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// Handler returns the routed HTTP handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// subscribeStateUpdates pushes changed entity states to WebSocket clients
// after every coordinator notification.
func (s *Server) subscribeStateUpdates() {
	if s.unsubscribe != nil {
		return
	}
	s.unsubscribe = s.coord.Subscribe(func() {
		s.hub.PublishStates(s.entities.States())
	})
}
