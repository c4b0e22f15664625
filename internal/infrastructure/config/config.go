package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the smarthome bridge.
// Configuration is loaded from YAML (or TOML) and can be overridden by environment variables.
type Config struct {
	Hub      HubConfig      `yaml:"hub" toml:"hub"`
	Entities EntitiesConfig `yaml:"entities" toml:"entities"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt" toml:"mqtt"`
	API      APIConfig      `yaml:"api" toml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb" toml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// HubConfig describes the remote device hub and the synchronisation cadence.
//
// All durations are whole seconds.
type HubConfig struct {
	Host           string `yaml:"host" toml:"host"`
	Port           int    `yaml:"port" toml:"port"`
	PollInterval   int    `yaml:"poll_interval" toml:"poll_interval"`
	ReconnectDelay int    `yaml:"reconnect_delay" toml:"reconnect_delay"`
	FetchTimeout   int    `yaml:"fetch_timeout" toml:"fetch_timeout"`
	CommandTimeout int    `yaml:"command_timeout" toml:"command_timeout"`

	// StreamBuffer is the capacity of the channel carrying stream frames
	// into the coordinator's apply loop.
	StreamBuffer int `yaml:"stream_buffer" toml:"stream_buffer"`
}

// EntitiesConfig controls how hub devices are projected into entities.
type EntitiesConfig struct {
	// PushbuttonMode is "switch" (default) or "button".
	PushbuttonMode string `yaml:"pushbutton_mode" toml:"pushbutton_mode"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path" toml:"path"`
	WALMode     bool   `yaml:"wal_mode" toml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout" toml:"busy_timeout"`

	// HistoryRetention is how long state history rows are kept, in hours.
	// Zero disables pruning.
	HistoryRetention int `yaml:"history_retention" toml:"history_retention"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled" toml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker" toml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth" toml:"auth"`
	QoS         int                 `yaml:"qos" toml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix" toml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect" toml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	TLS      bool   `yaml:"tls" toml:"tls"`
	ClientID string `yaml:"client_id" toml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay" toml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay" toml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host      string           `yaml:"host" toml:"host"`
	Port      int              `yaml:"port" toml:"port"`
	Timeouts  APITimeoutConfig `yaml:"timeouts" toml:"timeouts"`
	CORS      CORSConfig       `yaml:"cors" toml:"cors"`
	WebSocket WebSocketConfig  `yaml:"websocket" toml:"websocket"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read" toml:"read"`
	Write int `yaml:"write" toml:"write"`
	Idle  int `yaml:"idle" toml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" toml:"allowed_headers"`
}

// WebSocketConfig contains settings for the local WebSocket push channel.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size" toml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval" toml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout" toml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" toml:"enabled"`
	URL           string `yaml:"url" toml:"url"`
	Token         string `yaml:"token" toml:"token"`
	Org           string `yaml:"org" toml:"org"`
	Bucket        string `yaml:"bucket" toml:"bucket"`
	BatchSize     int    `yaml:"batch_size" toml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval" toml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level" toml:"level"`
	Format string            `yaml:"format" toml:"format"`
	Output string            `yaml:"output" toml:"output"`
	File   FileLoggingConfig `yaml:"file" toml:"file"`
}

// FileLoggingConfig contains file-based logging settings, used when Output is "file".
type FileLoggingConfig struct {
	Path       string `yaml:"path" toml:"path"`
	MaxSize    int    `yaml:"max_size" toml:"max_size"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAge     int    `yaml:"max_age" toml:"max_age"`
	Compress   bool   `yaml:"compress" toml:"compress"`
}

// Load reads configuration from a file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. File values (override defaults); ".toml" files are parsed as TOML, anything else as YAML
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SMARTHOME_SECTION_KEY
// For example: SMARTHOME_HUB_HOST, SMARTHOME_API_PORT
//
// Parameters:
//   - path: Path to the configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			Port:           5000,
			PollInterval:   30,
			ReconnectDelay: 30,
			FetchTimeout:   10,
			CommandTimeout: 10,
			StreamBuffer:   256,
		},
		Entities: EntitiesConfig{
			PushbuttonMode: "switch",
		},
		Database: DatabaseConfig{
			Path:             "./data/smarthome.db",
			WALMode:          true,
			BusyTimeout:      5,
			HistoryRetention: 24 * 7,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "smarthome-bridge",
			},
			QoS:         1,
			TopicPrefix: "smarthome",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				MaxMessageSize: 8192,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/smarthome-bridge.log",
				MaxSize:    50,
				MaxBackups: 5,
				MaxAge:     28,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SMARTHOME_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Hub
	if v := os.Getenv("SMARTHOME_HUB_HOST"); v != "" {
		cfg.Hub.Host = v
	}
	if v := os.Getenv("SMARTHOME_HUB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Hub.Port = port
		}
	}

	// Database
	if v := os.Getenv("SMARTHOME_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SMARTHOME_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SMARTHOME_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SMARTHOME_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("SMARTHOME_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SMARTHOME_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("SMARTHOME_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("SMARTHOME_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Hub validation
	if c.Hub.Host == "" {
		errs = append(errs, "hub.host is required (set SMARTHOME_HUB_HOST environment variable)")
	}
	if c.Hub.Port < 1 || c.Hub.Port > 65535 {
		errs = append(errs, "hub.port must be between 1 and 65535")
	}
	if c.Hub.PollInterval < 1 {
		errs = append(errs, "hub.poll_interval must be at least 1 second")
	}
	if c.Hub.ReconnectDelay < 1 {
		errs = append(errs, "hub.reconnect_delay must be at least 1 second")
	}
	if c.Hub.FetchTimeout < 1 {
		errs = append(errs, "hub.fetch_timeout must be at least 1 second")
	}
	if c.Hub.CommandTimeout < 1 {
		errs = append(errs, "hub.command_timeout must be at least 1 second")
	}
	if c.Hub.StreamBuffer < 1 {
		errs = append(errs, "hub.stream_buffer must be at least 1")
	}

	// Entities validation
	switch c.Entities.PushbuttonMode {
	case "switch", "button":
	default:
		errs = append(errs, `entities.pushbutton_mode must be "switch" or "button"`)
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.HistoryRetention < 0 {
		errs = append(errs, "database.history_retention must not be negative")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Logging validation
	if strings.EqualFold(c.Logging.Output, "file") && c.Logging.File.Path == "" {
		errs = append(errs, "logging.file.path is required when logging.output is file")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BaseURL returns the hub REST base URL, e.g. "http://192.168.1.20:5000".
func (h HubConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", h.Host, h.Port)
}

// StreamURL returns the hub WebSocket URL, e.g. "ws://192.168.1.20:5000/ws".
func (h HubConfig) StreamURL() string {
	return fmt.Sprintf("ws://%s:%d/ws", h.Host, h.Port)
}

// GetPollInterval returns the snapshot poll interval as a Duration.
func (h HubConfig) GetPollInterval() time.Duration {
	return time.Duration(h.PollInterval) * time.Second
}

// GetReconnectDelay returns the fixed stream reconnect delay as a Duration.
func (h HubConfig) GetReconnectDelay() time.Duration {
	return time.Duration(h.ReconnectDelay) * time.Second
}

// GetFetchTimeout returns the per-request snapshot timeout as a Duration.
func (h HubConfig) GetFetchTimeout() time.Duration {
	return time.Duration(h.FetchTimeout) * time.Second
}

// GetCommandTimeout returns the per-request command timeout as a Duration.
func (h HubConfig) GetCommandTimeout() time.Duration {
	return time.Duration(h.CommandTimeout) * time.Second
}

// GetHistoryRetention returns the state history retention as a Duration.
func (d DatabaseConfig) GetHistoryRetention() time.Duration {
	return time.Duration(d.HistoryRetention) * time.Hour
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
