// smarthome-bridge keeps a local, typed view of a home-automation hub's
// devices and mirrors it to a REST/WebSocket API, MQTT, InfluxDB and a
// SQLite state history.
//
// The hub is read two ways: a periodic GET /api/devices snapshot, and a
// WebSocket stream of state changes. Both feed one coordinator; everything
// else subscribes to it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/smarthome-bridge/internal/api"
	"github.com/nerrad567/smarthome-bridge/internal/coordinator"
	"github.com/nerrad567/smarthome-bridge/internal/device"
	"github.com/nerrad567/smarthome-bridge/internal/entity"
	"github.com/nerrad567/smarthome-bridge/internal/fanout"
	"github.com/nerrad567/smarthome-bridge/internal/hub"
	"github.com/nerrad567/smarthome-bridge/internal/infrastructure/config"
	"github.com/nerrad567/smarthome-bridge/internal/infrastructure/database"
	"github.com/nerrad567/smarthome-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/smarthome-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/smarthome-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/smarthome-bridge/internal/supervisor"
	"github.com/nerrad567/smarthome-bridge/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting smarthome-bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // nothing left to report to
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// State history store
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	applied, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path(), "migrations_applied", applied)
	history := device.NewSQLiteStateHistoryRepository(db.DB)

	// Hub transport
	hubClient, err := hub.NewClient(hub.ClientConfig{
		BaseURL:        cfg.Hub.BaseURL(),
		FetchTimeout:   cfg.Hub.GetFetchTimeout(),
		CommandTimeout: cfg.Hub.GetCommandTimeout(),
	})
	if err != nil {
		return fmt.Errorf("creating hub client: %w", err)
	}
	streamDialer, err := hub.NewStreamDialer(cfg.Hub.StreamURL())
	if err != nil {
		return fmt.Errorf("creating hub stream dialer: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	coord := coordinator.New(coordinator.Config{
		PollInterval:   cfg.Hub.GetPollInterval(),
		ReconnectDelay: cfg.Hub.GetReconnectDelay(),
		FetchTimeout:   cfg.Hub.GetFetchTimeout(),
		StreamBuffer:   cfg.Hub.StreamBuffer,
	}, hubClient, dialerFor(streamDialer))
	coord.SetLogger(log.With("component", "coordinator"))
	coord.SetMetrics(coordinator.NewMetrics(reg))

	// The first snapshot gates startup; the effect list is best effort.
	var effects map[string]string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return coord.Start(gctx)
	})
	g.Go(func() error {
		fetched, fetchErr := hubClient.FetchEffects(gctx)
		if fetchErr != nil {
			log.Warn("fetching light effects failed, effect lists will be empty", "error", fetchErr)
			return nil
		}
		effects = fetched
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("starting coordinator: %w", err)
	}
	defer func() {
		if stopErr := coord.Stop(); stopErr != nil {
			log.Error("error stopping coordinator", "error", stopErr)
		}
	}()
	log.Info("hub connected", "url", hubClient.BaseURL(), "stream", streamDialer.URL())

	entities := entity.NewRegistry(coord, entity.Options{
		PushbuttonMode: cfg.Entities.PushbuttonMode,
		Effects:        effects,
	})
	entities.SetLogger(log.With("component", "entities"))
	log.Info("entities built", "count", entities.Reload(coord.Devices()))

	// Mirrors
	recorder := fanout.NewHistoryRecorder(history, coord, cfg.Database.GetHistoryRetention())
	recorder.SetLogger(log.With("component", "history"))
	recorder.StartPruning(fanout.DefaultPruneInterval)
	defer recorder.StopPruning()

	sinks := []fanout.Sink{recorder}

	mqttClient, mirror, err := startMQTT(cfg.MQTT, entities, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	if mirror != nil {
		sinks = append(sinks, mirror)
	}

	influxClient, err := startInflux(cfg.InfluxDB, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := influxClient.Close(); closeErr != nil {
			log.Error("error closing InfluxDB", "error", closeErr)
		}
	}()
	if influxClient != nil {
		telemetry := fanout.NewTelemetry(influxClient, entities)
		telemetry.SetLogger(log.With("component", "telemetry"))
		sinks = append(sinks, telemetry)
	}

	for _, sink := range sinks {
		unsubscribe := fanout.Attach(ctx, coord, sink)
		defer unsubscribe()
		sink.Sync(ctx)
	}

	// Local API
	var mqttStatus api.ConnectionChecker
	if mqttClient != nil {
		mqttStatus = mqttClient
	}
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		Logger:      log,
		Coordinator: coord,
		Entities:    entities,
		Hub:         hubClient,
		History:     history,
		MQTT:        mqttStatus,
		DB:          db,
		Gatherer:    reg,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal",
		"devices", len(coord.Devices()),
		"entities", entities.Len(),
		"api", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

func getConfigPath() string {
	if path := os.Getenv("SMARTHOME_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// dialerFor adapts the hub stream dialer to the supervisor.
func dialerFor(d *hub.StreamDialer) supervisor.Dialer {
	return supervisor.DialerFunc(func(ctx context.Context, onFrame func([]byte)) (supervisor.Stream, error) {
		stream, err := d.Dial(ctx, onFrame)
		if err != nil {
			return nil, err
		}
		return stream, nil
	})
}

// startMQTT connects the MQTT mirror when enabled. Both results are nil
// when it is disabled.
func startMQTT(cfg config.MQTTConfig, entities *entity.Registry, log *logging.Logger) (*mqtt.Client, *fanout.MQTTMirror, error) {
	if !cfg.Enabled {
		log.Info("MQTT disabled")
		return nil, nil, nil
	}

	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.With("component", "mqtt"))

	mirror := fanout.NewMQTTMirror(client, entities)
	mirror.SetLogger(log.With("component", "mqtt_mirror"))
	if err := mirror.Start(); err != nil {
		client.Close() //nolint:errcheck // already failing
		return nil, nil, err
	}

	// Retained state may have been lost while disconnected.
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		mirror.Resync()
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
		"topic_prefix", client.Topics().Prefix,
	)
	return client, mirror, nil
}

// startInflux connects the telemetry writer when enabled, returning nil when disabled.
func startInflux(cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.Enabled {
		log.Info("InfluxDB disabled")
		return nil, nil
	}

	client, err := influxdb.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})

	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client, nil
}
