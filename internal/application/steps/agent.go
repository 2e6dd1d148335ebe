package steps

import (
	"context"
	"errors"
	"fmt"

	"github.com/aescanero/synapse/pkg/domain"
	"github.com/aescanero/synapse/pkg/ports"
	"go.uber.org/zap"
)

// AgentDefaults are applied to agent nodes that do not set them.
type AgentDefaults struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Agent implements the agent step on top of an LLM client.
type Agent struct {
	client   ports.LLMClient
	defaults AgentDefaults
	logger   *zap.Logger
}

// NewAgent creates an agent handler. client may be nil.
func NewAgent(client ports.LLMClient, defaults AgentDefaults, logger *zap.Logger) *Agent {
	if defaults.MaxTokens <= 0 {
		defaults.MaxTokens = 1024
	}
	return &Agent{client: client, defaults: defaults, logger: logger}
}

// Execute sends params.prompt, followed by any upstream text, to the client.
func (a *Agent) Execute(ctx context.Context, params map[string]interface{}, upstream Upstream) (Output, error) {
	prompt, err := requiredString(params, "prompt")
	if err != nil {
		return Output{}, err
	}
	model, err := stringParam(params, "model", a.defaults.Model)
	if err != nil {
		return Output{}, err
	}
	system, err := stringParam(params, "system", "")
	if err != nil {
		return Output{}, err
	}
	maxTokens, err := intParam(params, "max_tokens", int64(a.defaults.MaxTokens))
	if err != nil {
		return Output{}, err
	}
	if maxTokens <= 0 {
		return Output{}, domain.NewStepError(domain.StepErrInvalidParams, "\"max_tokens\" must be positive, got %d", maxTokens)
	}
	temperature, err := floatParam(params, "temperature", a.defaults.Temperature)
	if err != nil {
		return Output{}, err
	}

	if a.client == nil {
		return Output{}, domain.NewStepError(domain.StepErrAgentUnavailable, "no agent backend configured")
	}

	if extra := upstreamText(upstream); extra != "" {
		prompt = prompt + "\n\nContext:\n" + extra
	}

	resp, err := a.client.GenerateCompletion(ctx, &ports.LLMRequest{
		Model:       model,
		System:      system,
		Prompt:      prompt,
		MaxTokens:   int(maxTokens),
		Temperature: temperature,
	})
	if err != nil {
		a.logger.Warn("agent call failed", zap.String("model", model), zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			return Output{}, domain.WrapStepError(domain.StepErrTimedOut, err, "agent call")
		}
		return Output{}, domain.WrapStepError(domain.StepErrAgentUnavailable, err, "agent call")
	}

	return Output{
		Data: map[string]interface{}{
			"text":          resp.Text,
			"model":         resp.Model,
			"input_tokens":  resp.InputTokens,
			"output_tokens": resp.OutputTokens,
		},
		Logs: []string{fmt.Sprintf("agent %s replied with %d characters", resp.Model, len(resp.Text))},
	}, nil
}
