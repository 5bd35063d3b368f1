// Package config handles loading and parsing of GroundStore configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for GroundStore.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Fetch         FetchConfig         `yaml:"fetch"`
	Cache         CacheConfig         `yaml:"cache"`
	Assets        []AssetConfig       `yaml:"assets"`
	Identity      IdentityConfig      `yaml:"identity"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ShutdownTimeout int    `yaml:"shutdown_timeout"` // Graceful shutdown timeout in seconds (default: 30).
}

// FetchConfig holds object store transfer tunables.
type FetchConfig struct {
	// ConnectTimeout bounds connection establishment, in seconds.
	ConnectTimeout int `yaml:"connect_timeout"`
	// ReadTimeout bounds the whole transfer, in seconds.
	ReadTimeout int `yaml:"read_timeout"`
	// LowSpeedLimit is the stall floor in bytes per second.
	LowSpeedLimit int64 `yaml:"low_speed_limit"`
	// LowSpeedTime is the stall window, in seconds.
	LowSpeedTime int `yaml:"low_speed_time"`
	// Attempts is the retry budget per fetch.
	Attempts int `yaml:"attempts"`
	// TLSVerify enables TLS peer and host verification.
	TLSVerify bool `yaml:"tls_verify"`
	// RetryWait is the pause before retrying after a zero-byte transport
	// failure, in seconds. HTTP error responses retry without a pause.
	RetryWait int `yaml:"retry_wait"`
	// DefaultRegion is used when a caller omits the region.
	DefaultRegion string `yaml:"default_region"`
	// DefaultAsset is used when a caller omits the asset name.
	DefaultAsset string `yaml:"default_asset"`
}

// CacheConfig holds the disk cache settings.
type CacheConfig struct {
	// Root is the cache directory, relative to the process working
	// directory unless absolute.
	Root string `yaml:"root"`
	// MaxFiles bounds the number of cached objects.
	MaxFiles int `yaml:"max_files"`
	// CreateOnStartup initializes the cache during boot instead of
	// waiting for the first s3cache call.
	CreateOnStartup bool `yaml:"create_on_startup"`
}

// AssetConfig describes one named data origin.
type AssetConfig struct {
	Name     string `yaml:"name"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Path     string `yaml:"path"`
}

// IdentityConfig holds the credential refresh loop settings.
type IdentityConfig struct {
	// Enabled starts the background refresher.
	Enabled bool `yaml:"enabled"`
	// Host is the credential store entry the refresher maintains.
	Host string `yaml:"host"`
	// Interval is the refresh period in seconds.
	Interval int `yaml:"interval"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `yaml:"level"`
	// Format is the log output format: "text" or "json".
	Format string `yaml:"format"`
}

// ObservabilityConfig holds settings for metrics and health check endpoints.
type ObservabilityConfig struct {
	// Metrics enables the /metrics Prometheus endpoint.
	Metrics bool `yaml:"metrics"`
	// HealthCheck enables the /health liveness probe.
	HealthCheck bool `yaml:"health_check"`
}

// Load reads a YAML configuration file from the given path and returns a
// parsed Config with defaults applied. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

// defaultConfig returns a Config with the production defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            9081,
			ShutdownTimeout: 30,
		},
		Fetch: FetchConfig{
			ConnectTimeout: 5,
			ReadTimeout:    600,
			LowSpeedLimit:  32 * 1024,
			LowSpeedTime:   5,
			Attempts:       3,
			TLSVerify:      false,
			RetryWait:      1,
			DefaultRegion:  "us-west-2",
			DefaultAsset:   "iam-role",
		},
		Cache: CacheConfig{
			Root:     ".cache",
			MaxFiles: 16,
		},
		Identity: IdentityConfig{
			Host:     "iam-role",
			Interval: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics:     true,
			HealthCheck: true,
		},
	}
}

// applyDefaults fills in any fields that are still at their zero value
// after YAML unmarshaling.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9081
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30
	}
	if cfg.Fetch.ConnectTimeout == 0 {
		cfg.Fetch.ConnectTimeout = 5
	}
	if cfg.Fetch.ReadTimeout == 0 {
		cfg.Fetch.ReadTimeout = 600
	}
	if cfg.Fetch.LowSpeedLimit == 0 {
		cfg.Fetch.LowSpeedLimit = 32 * 1024
	}
	if cfg.Fetch.LowSpeedTime == 0 {
		cfg.Fetch.LowSpeedTime = 5
	}
	if cfg.Fetch.Attempts == 0 {
		cfg.Fetch.Attempts = 3
	}
	if cfg.Fetch.RetryWait == 0 {
		cfg.Fetch.RetryWait = 1
	}
	if cfg.Fetch.DefaultRegion == "" {
		cfg.Fetch.DefaultRegion = "us-west-2"
	}
	if cfg.Fetch.DefaultAsset == "" {
		cfg.Fetch.DefaultAsset = "iam-role"
	}
	if cfg.Cache.Root == "" {
		cfg.Cache.Root = ".cache"
	}
	if cfg.Cache.MaxFiles == 0 {
		cfg.Cache.MaxFiles = 16
	}
	if cfg.Identity.Host == "" {
		cfg.Identity.Host = "iam-role"
	}
	if cfg.Identity.Interval == 0 {
		cfg.Identity.Interval = 300
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// FetchDurations converts the second-valued fetch tunables to durations.
func (f FetchConfig) FetchDurations() (connect, read, lowSpeed, retryWait time.Duration) {
	return time.Duration(f.ConnectTimeout) * time.Second,
		time.Duration(f.ReadTimeout) * time.Second,
		time.Duration(f.LowSpeedTime) * time.Second,
		time.Duration(f.RetryWait) * time.Second
}
