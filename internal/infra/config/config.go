// Package config loads and validates the client configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable overrides. Applied after the file is read so a
// packaged config can be redirected without editing it.
const (
	EnvServerURL = "AGENTDESK_SERVER_URL"
	EnvToken     = "AGENTDESK_TOKEN"
	EnvStateKey  = "AGENTDESK_STATE_KEY"
)

// ServerConfig points the client at the platform backend.
type ServerConfig struct {
	BaseURL string `yaml:"base_url"` // REST endpoint root, e.g. http://localhost:8600
	WSURL   string `yaml:"ws_url"`   // streaming endpoint, e.g. ws://localhost:8600/ws/chat
	Token   string `yaml:"token"`    // bearer token; EnvToken overrides
}

// StreamConfig tunes the streaming transport's reconnect policy.
type StreamConfig struct {
	BackoffBase time.Duration `yaml:"backoff_base"` // default 1s
	BackoffMax  time.Duration `yaml:"backoff_max"`  // default 16s
	MaxAttempts int           `yaml:"max_attempts"` // default 5
}

// APIConfig tunes the REST client.
type APIConfig struct {
	Timeout            time.Duration `yaml:"timeout"`              // per-request, default 30s
	RateLimit          float64       `yaml:"rate_limit"`           // requests/sec, default 10
	RateBurst          int           `yaml:"rate_burst"`           // default 5
	BreakerMaxFailures uint32        `yaml:"breaker_max_failures"` // default 5
	BreakerTimeout     time.Duration `yaml:"breaker_timeout"`      // open duration, default 30s
}

// PreloadConfig drives the dependency-preload cache.
type PreloadConfig struct {
	Enabled  bool          `yaml:"enabled"`
	TTL      time.Duration `yaml:"ttl"`      // snapshot freshness, default 30s
	Schedule string        `yaml:"schedule"` // cron spec for background refresh, default "@every 5m"
}

// LoggerConfig controls slog construction.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// TracerConfig controls OpenTelemetry setup.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "noop"
}

// StorageConfig locates client-side persistent state.
type StorageConfig struct {
	Dir string `yaml:"dir"` // default ~/.agentdesk
}

// Config is the top-level client configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Stream  StreamConfig  `yaml:"stream"`
	API     APIConfig     `yaml:"api"`
	Preload PreloadConfig `yaml:"preload"`
	Logger  LoggerConfig  `yaml:"logger"`
	Tracer  TracerConfig  `yaml:"tracer"`
	Storage StorageConfig `yaml:"storage"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:8600",
			WSURL:   "ws://localhost:8600/ws/chat",
		},
		Stream: StreamConfig{
			BackoffBase: 1 * time.Second,
			BackoffMax:  16 * time.Second,
			MaxAttempts: 5,
		},
		API: APIConfig{
			Timeout:            30 * time.Second,
			RateLimit:          10,
			RateBurst:          5,
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
		},
		Preload: PreloadConfig{
			Enabled:  true,
			TTL:      30 * time.Second,
			Schedule: "@every 5m",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer:  TracerConfig{Exporter: "noop"},
		Storage: StorageConfig{Dir: filepath.Join(home, ".agentdesk")},
	}
}

// Load reads the YAML config at path, fills defaults, applies environment
// overrides, and validates. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to defaults
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvServerURL); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		c.Server.Token = v
	}
}

// fillDefaults backfills zero values so a partial YAML file stays usable.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Stream.BackoffBase <= 0 {
		c.Stream.BackoffBase = def.Stream.BackoffBase
	}
	if c.Stream.BackoffMax <= 0 {
		c.Stream.BackoffMax = def.Stream.BackoffMax
	}
	if c.Stream.MaxAttempts <= 0 {
		c.Stream.MaxAttempts = def.Stream.MaxAttempts
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = def.API.Timeout
	}
	if c.API.RateLimit <= 0 {
		c.API.RateLimit = def.API.RateLimit
	}
	if c.API.RateBurst <= 0 {
		c.API.RateBurst = def.API.RateBurst
	}
	if c.API.BreakerMaxFailures == 0 {
		c.API.BreakerMaxFailures = def.API.BreakerMaxFailures
	}
	if c.API.BreakerTimeout <= 0 {
		c.API.BreakerTimeout = def.API.BreakerTimeout
	}
	if c.Preload.TTL <= 0 {
		c.Preload.TTL = def.Preload.TTL
	}
	if c.Preload.Schedule == "" {
		c.Preload.Schedule = def.Preload.Schedule
	}
	if c.Logger.Level == "" {
		c.Logger.Level = def.Logger.Level
	}
	if c.Logger.Output == "" {
		c.Logger.Output = def.Logger.Output
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = def.Storage.Dir
	}
}

// Validate rejects configurations the client cannot run with.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if c.Server.WSURL == "" {
		return fmt.Errorf("server.ws_url is required")
	}
	if c.Stream.BackoffMax < c.Stream.BackoffBase {
		return fmt.Errorf("stream.backoff_max (%v) must be >= backoff_base (%v)",
			c.Stream.BackoffMax, c.Stream.BackoffBase)
	}
	switch c.Logger.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logger.format must be text or json, got %q", c.Logger.Format)
	}
	switch c.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		return fmt.Errorf("tracer.exporter must be noop or stdout, got %q", c.Tracer.Exporter)
	}
	return nil
}

// StateKey returns the passphrase for encrypting the persisted app state.
// Falls back to the API token so a keyless setup still gets at-rest
// encryption tied to a secret the user already holds.
func (c *Config) StateKey() string {
	if v := os.Getenv(EnvStateKey); v != "" {
		return v
	}
	return c.Server.Token
}
