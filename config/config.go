// Package config defines the immutable application configuration and its
// loader. The configuration is built once before any plugin is loaded and is
// treated as read-only afterwards: there are no setters, and plugins receive
// it through the application shell's accessor only.
package config

import (
	"errors"
	"fmt"

	golobby "github.com/golobby/config/v3"

	"github.com/DeerHide/go-factory-utilities/feeders"
)

// Configuration errors
var (
	ErrServiceNameEmpty   = errors.New("service name cannot be empty")
	ErrInvalidEnvironment = errors.New("invalid environment")
	ErrInvalidPort        = errors.New("invalid port")
)

// Feeder populates config structs from a source. Alias of the golobby
// feeder contract so custom feeders can be supplied.
type Feeder = golobby.Feeder

// Environment identifies the deployment environment of the service.
type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentTesting     Environment = "testing"
	EnvironmentProduction  Environment = "production"
)

// valid reports whether the environment is one of the known values.
func (e Environment) valid() bool {
	switch e {
	case EnvironmentDevelopment, EnvironmentTesting, EnvironmentProduction:
		return true
	}
	return false
}

// RootConfig is the application configuration. Fields carry both yaml tags
// (file feeder) and env tags (environment feeder); the environment feeder
// runs last and wins.
type RootConfig struct {
	Service ServiceConfig `yaml:"service"`

	Database   DatabaseConfig   `yaml:"database"`
	EventBus   EventBusConfig   `yaml:"eventbus"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	HTTPClient HTTPClientConfig `yaml:"httpclient"`
	Cache      CacheConfig      `yaml:"cache"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Server     ServerConfig     `yaml:"server"`
}

// ServiceConfig identifies the service itself.
type ServiceConfig struct {
	Name        string      `yaml:"name" env:"SERVICE_NAME"`
	Version     string      `yaml:"version" env:"SERVICE_VERSION"`
	Environment Environment `yaml:"environment" env:"SERVICE_ENVIRONMENT"`
}

// DatabaseConfig configures the database plugin.
type DatabaseConfig struct {
	Driver             string `yaml:"driver" env:"DATABASE_DRIVER"`
	DSN                string `yaml:"dsn" env:"DATABASE_DSN"`
	MaxOpenConnections int    `yaml:"max_open_connections" env:"DATABASE_MAX_OPEN_CONNECTIONS"`
	MaxIdleConnections int    `yaml:"max_idle_connections" env:"DATABASE_MAX_IDLE_CONNECTIONS"`
}

// EventBusConfig configures the message broker plugin.
type EventBusConfig struct {
	URL           string `yaml:"url" env:"EVENTBUS_URL"`
	ClientName    string `yaml:"client_name" env:"EVENTBUS_CLIENT_NAME"`
	MaxReconnects int    `yaml:"max_reconnects" env:"EVENTBUS_MAX_RECONNECTS"`
}

// SchedulerConfig configures the task scheduler plugin.
type SchedulerConfig struct {
	WorkerCount int `yaml:"worker_count" env:"SCHEDULER_WORKER_COUNT"`
	QueueSize   int `yaml:"queue_size" env:"SCHEDULER_QUEUE_SIZE"`
}

// HTTPClientConfig configures the outbound HTTP client plugin.
type HTTPClientConfig struct {
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" env:"HTTPCLIENT_REQUEST_TIMEOUT_SECONDS"`
	MaxIdleConns          int `yaml:"max_idle_conns" env:"HTTPCLIENT_MAX_IDLE_CONNS"`
	MaxIdleConnsPerHost   int `yaml:"max_idle_conns_per_host" env:"HTTPCLIENT_MAX_IDLE_CONNS_PER_HOST"`
	IdleConnTimeoutSecs   int `yaml:"idle_conn_timeout_seconds" env:"HTTPCLIENT_IDLE_CONN_TIMEOUT_SECONDS"`
}

// CacheConfig configures the cache plugin.
type CacheConfig struct {
	URL      string `yaml:"url" env:"CACHE_URL"`
	DB       int    `yaml:"db" env:"CACHE_DB"`
	PoolSize int    `yaml:"pool_size" env:"CACHE_POOL_SIZE"`
}

// MetricsConfig configures the metrics plugin.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED"`
	Path    string `yaml:"path" env:"METRICS_PATH"`
}

// TracingConfig configures the tracing plugin.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled" env:"TRACING_ENABLED"`
	Endpoint string `yaml:"endpoint" env:"TRACING_ENDPOINT"`
	Insecure bool   `yaml:"insecure" env:"TRACING_INSECURE"`
}

// ServerConfig configures the HTTP server plugin.
type ServerConfig struct {
	Host                   string `yaml:"host" env:"SERVER_HOST"`
	Port                   int    `yaml:"port" env:"SERVER_PORT"`
	ReadTimeoutSeconds     int    `yaml:"read_timeout_seconds" env:"SERVER_READ_TIMEOUT_SECONDS"`
	WriteTimeoutSeconds    int    `yaml:"write_timeout_seconds" env:"SERVER_WRITE_TIMEOUT_SECONDS"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds" env:"SERVER_SHUTDOWN_TIMEOUT_SECONDS"`
}

// Default returns a RootConfig with development defaults. Load starts from
// these before applying feeders.
func Default() *RootConfig {
	return &RootConfig{
		Service: ServiceConfig{
			Name:        "",
			Version:     "0.0.0",
			Environment: EnvironmentDevelopment,
		},
		Database: DatabaseConfig{
			Driver:             "sqlite",
			DSN:                "file::memory:?cache=shared",
			MaxOpenConnections: 10,
			MaxIdleConnections: 5,
		},
		EventBus: EventBusConfig{
			URL:           "nats://127.0.0.1:4222",
			MaxReconnects: 10,
		},
		Scheduler: SchedulerConfig{
			WorkerCount: 5,
			QueueSize:   100,
		},
		HTTPClient: HTTPClientConfig{
			RequestTimeoutSeconds: 30,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeoutSecs:   90,
		},
		Cache: CacheConfig{
			URL:      "redis://127.0.0.1:6379",
			PoolSize: 10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/sys/metrics",
		},
		Tracing: TracingConfig{
			Endpoint: "127.0.0.1:4318",
			Insecure: true,
		},
		Server: ServerConfig{
			Host:                   "0.0.0.0",
			Port:                   8000,
			ReadTimeoutSeconds:     15,
			WriteTimeoutSeconds:    15,
			ShutdownTimeoutSeconds: 15,
		},
	}
}

// Load builds the configuration from the given YAML file (optional, empty
// path skips it), then the environment, then validates. The returned config
// must be treated as immutable.
func Load(yamlPath string) (*RootConfig, error) {
	cfg := Default()

	loader := golobby.New()
	if yamlPath != "" {
		loader.AddFeeder(feeders.NewYamlFeeder(yamlPath))
	}
	loader.AddFeeder(feeders.NewEnvFeeder())
	loader.AddStruct(cfg)

	if err := loader.Feed(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSection extracts one top-level key from the YAML file into target.
// Services use it for sections of their own that live alongside RootConfig
// in the same file. A missing key, or an empty path, leaves target at its
// defaults.
func LoadSection(yamlPath, key string, target any) error {
	if yamlPath == "" {
		return nil
	}
	if err := feeders.NewYamlFeeder(yamlPath).FeedKey(key, target); err != nil {
		return fmt.Errorf("failed to load config section %q: %w", key, err)
	}
	return nil
}

// Validate checks that the static configuration is self-consistent.
// Validation failures abort process startup.
func (c *RootConfig) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("config: %w", ErrServiceNameEmpty)
	}
	if !c.Service.Environment.valid() {
		return fmt.Errorf("config: %w: %q", ErrInvalidEnvironment, c.Service.Environment)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: %w: %d", ErrInvalidPort, c.Server.Port)
	}
	return nil
}
