package llm

import (
	"fmt"
	"time"

	"github.com/aescanero/synapse/pkg/adapters/llm/anthropic"
	"github.com/aescanero/synapse/pkg/ports"
	"go.uber.org/zap"
)

// Config holds LLM client configuration
type Config struct {
	Provider       string
	APIKey         string
	RequestTimeout time.Duration
	Metrics        ports.MetricsCollector
	Logger         *zap.Logger
}

// NewClient creates a new LLM client based on provider. It returns a nil
// client and no error when no API key is configured; agent nodes then fail
// with AgentUnavailable.
func NewClient(cfg *Config) (ports.LLMClient, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	switch cfg.Provider {
	case "anthropic":
		client, err := anthropic.NewClient(anthropic.Config{
			APIKey:         cfg.APIKey,
			RequestTimeout: cfg.RequestTimeout,
			MaxRetries:     -1,
		}, cfg.Metrics, cfg.Logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
