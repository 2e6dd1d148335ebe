package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the Synapse server
type Config struct {
	// Server configuration
	HTTPPort int    `env:"SYNAPSE_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"SYNAPSE_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Backend selection
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"memory"`
	EventsBackend  string `env:"EVENTS_BACKEND" envDefault:"memory"`

	// Finished run records older than this are dropped. Zero keeps them forever.
	RunRetention time.Duration `env:"RUN_RETENTION" envDefault:"24h"`

	// Redis configuration
	Redis RedisConfig

	// SQLite configuration
	SQLite SQLiteConfig

	// LLM configuration
	LLM LLMConfig

	// Worker configuration
	Workers WorkerConfig

	// Executor configuration
	Executor ExecutorConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// SQLiteConfig holds the SQLite run store configuration
type SQLiteConfig struct {
	Path string `env:"SQLITE_PATH" envDefault:"synapse.db"`
}

// LLMConfig holds LLM provider configuration.
// The agent step reports AgentUnavailable when no API key is set.
type LLMConfig struct {
	Provider string `env:"LLM_PROVIDER" envDefault:"anthropic"`
	APIKey   string `env:"LLM_API_KEY"`

	RequestTimeout time.Duration `env:"LLM_REQUEST_TIMEOUT" envDefault:"120s"`

	// Default model settings
	DefaultModel       string  `env:"LLM_DEFAULT_MODEL" envDefault:"claude-3-5-sonnet-20241022"`
	DefaultTemperature float64 `env:"LLM_DEFAULT_TEMPERATURE" envDefault:"0.7"`
	DefaultMaxTokens   int     `env:"LLM_DEFAULT_MAX_TOKENS" envDefault:"1024"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"5"`
	QueueSize           int           `env:"WORKER_QUEUE_SIZE" envDefault:"100"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// ExecutorConfig holds executor settings
type ExecutorConfig struct {
	// MaxParallel caps concurrent nodes per stage. Zero means unbounded.
	MaxParallel int `env:"EXECUTOR_MAX_PARALLEL" envDefault:"0"`
	// FileRoot confines the file steps to a directory. Empty means unconfined.
	FileRoot string `env:"FILE_ROOT"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	RunExecutionTimeout  time.Duration `env:"TIMEOUT_RUN_EXECUTION" envDefault:"3600s"` // 1 hour
	NodeExecutionTimeout time.Duration `env:"TIMEOUT_NODE_EXECUTION" envDefault:"300s"` // 5 minutes
	ShutdownTimeout      time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	// Validate backends
	switch c.StorageBackend {
	case "memory", "redis":
	case "sqlite":
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required for the sqlite storage backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s (must be memory, redis, or sqlite)", c.StorageBackend)
	}
	switch c.EventsBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported events backend: %s (must be memory or redis)", c.EventsBackend)
	}
	if c.UsesRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	// Validate LLM config
	if c.LLM.Provider != "anthropic" {
		return fmt.Errorf("unsupported LLM provider: %s (only 'anthropic' is supported)", c.LLM.Provider)
	}

	// Validate worker config
	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}
	if c.Workers.QueueSize < 1 {
		return fmt.Errorf("worker queue size must be at least 1")
	}
	if c.RunRetention < 0 {
		return fmt.Errorf("run retention must not be negative")
	}
	if c.Executor.MaxParallel < 0 {
		return fmt.Errorf("executor max parallel must not be negative")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// UsesRedis reports whether any backend needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.StorageBackend == "redis" || c.EventsBackend == "redis"
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
