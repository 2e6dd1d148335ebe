package steps

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aescanero/synapse/pkg/domain"
)

const (
	// defaultDelayMs applies when a delay node carries no ms parameter.
	defaultDelayMs = 1000
	// maxDelayMs is the longest delay a time.Duration can hold.
	maxDelayMs = math.MaxInt64 / int64(time.Millisecond)
)

func trigger(ctx context.Context, params map[string]interface{}, upstream Upstream) (Output, error) {
	return Output{Logs: []string{"workflow triggered"}}, nil
}

func logMessage(ctx context.Context, params map[string]interface{}, upstream Upstream) (Output, error) {
	msg, err := stringParam(params, "message", "No message")
	if err != nil {
		return Output{}, err
	}
	return Output{Logs: []string{msg}}, nil
}

func delay(ctx context.Context, params map[string]interface{}, upstream Upstream) (Output, error) {
	ms, err := intParam(params, "ms", defaultDelayMs)
	if err != nil {
		return Output{}, err
	}
	if ms < 0 {
		return Output{}, domain.NewStepError(domain.StepErrInvalidParams, "\"ms\" must be non-negative, got %d", ms)
	}
	if ms > maxDelayMs {
		return Output{}, domain.NewStepError(domain.StepErrInvalidParams, "\"ms\" must be at most %d, got %d", maxDelayMs, ms)
	}

	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
		return Output{Logs: []string{fmt.Sprintf("waited %dms", ms)}}, nil
	case <-ctx.Done():
		se := domain.AsStepError(ctx.Err())
		se.Message = fmt.Sprintf("delay of %dms interrupted", ms)
		return Output{}, se
	}
}

func end(ctx context.Context, params map[string]interface{}, upstream Upstream) (Output, error) {
	ids := make([]interface{}, 0, len(upstream))
	keys := make([]string, 0, len(upstream))
	for id := range upstream {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	for _, id := range keys {
		ids = append(ids, id)
	}
	return Output{
		Data: map[string]interface{}{"upstream": ids},
		Logs: []string{"workflow finished"},
	}, nil
}
