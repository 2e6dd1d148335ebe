package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9090, cfg.GRPCPort)
	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.Equal(t, "memory", cfg.EventsBackend)
	assert.Equal(t, 5, cfg.Workers.PoolSize)
	assert.Equal(t, time.Hour, cfg.Timeouts.RunExecutionTimeout)
	assert.Equal(t, ":8080", cfg.GetHTTPAddr())
	assert.False(t, cfg.UsesRedis())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SYNAPSE_HTTP_PORT", "9000")
	t.Setenv("STORAGE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/runs.db")
	t.Setenv("EVENTS_BACKEND", "redis")
	t.Setenv("TIMEOUT_NODE_EXECUTION", "2s")
	t.Setenv("EXECUTOR_MAX_PARALLEL", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.StorageBackend)
	assert.Equal(t, "/tmp/runs.db", cfg.SQLite.Path)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.NodeExecutionTimeout)
	assert.Equal(t, 4, cfg.Executor.MaxParallel)
	assert.True(t, cfg.UsesRedis())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad http port", func(c *Config) { c.HTTPPort = 0 }},
		{"bad grpc port", func(c *Config) { c.GRPCPort = 70000 }},
		{"unknown storage", func(c *Config) { c.StorageBackend = "postgres" }},
		{"unknown events", func(c *Config) { c.EventsBackend = "kafka" }},
		{"sqlite without path", func(c *Config) { c.StorageBackend = "sqlite"; c.SQLite.Path = "" }},
		{"redis without addr", func(c *Config) { c.EventsBackend = "redis"; c.Redis.Addr = "" }},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "openai" }},
		{"no workers", func(c *Config) { c.Workers.PoolSize = 0 }},
		{"no queue", func(c *Config) { c.Workers.QueueSize = 0 }},
		{"negative parallelism", func(c *Config) { c.Executor.MaxParallel = -1 }},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
