// Package ports declares the interfaces the application layer depends on.
// Adapters under pkg/adapters implement them.
package ports

import (
	"context"
	"time"

	"github.com/aescanero/synapse/pkg/domain"
)

// EventHandler receives events from a subscription.
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus publishes run and node events to subscribers.
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	// Subscribe delivers events until ctx is cancelled.
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}

// RunStorage persists run records.
type RunStorage interface {
	SaveRun(ctx context.Context, run *domain.RunRecord) error
	// GetRun returns domain.ErrRunNotFound for unknown ids.
	GetRun(ctx context.Context, runID string) (*domain.RunRecord, error)
	ListRuns(ctx context.Context) ([]*domain.RunRecord, error)
	DeleteRun(ctx context.Context, runID string) error
}

// MetricsCollector records engine metrics.
type MetricsCollector interface {
	RecordRunSubmitted(mode string)
	RecordRunCompleted(status string, duration time.Duration)
	RecordNodeExecuted(nodeType, status string, duration time.Duration)
	RecordWorkerPoolStatus(idle, busy, stopped int)
	RecordLLMCall(model string, inputTokens, outputTokens int64, latency time.Duration)
	SetActiveRuns(count int)
}

// LLMRequest is a single-turn completion request.
type LLMRequest struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// LLMResponse is the reply to an LLMRequest.
type LLMResponse struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// LLMClient is the external capability behind the agent step.
type LLMClient interface {
	GenerateCompletion(ctx context.Context, req *LLMRequest) (*LLMResponse, error)
}
