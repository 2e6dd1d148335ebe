package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/synapse/internal/application/steps"
	"github.com/aescanero/synapse/pkg/domain"
	"go.uber.org/zap"
)

// Observer is notified as nodes change state. Calls arrive from the
// goroutine running the node, so implementations must be safe for concurrent use.
type Observer interface {
	NodeStarted(runID string, node domain.Node)
	NodeFinished(runID string, result *domain.StepResult)
}

// Executor walks an execution plan stage by stage.
type Executor struct {
	registry    *steps.Registry
	logger      *zap.Logger
	nodeTimeout time.Duration
	maxParallel int
	observer    Observer
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithNodeTimeout bounds every handler invocation. Zero disables the bound.
func WithNodeTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.nodeTimeout = d }
}

// WithMaxParallel caps how many members of a stage run at once. Zero means unbounded.
func WithMaxParallel(n int) ExecutorOption {
	return func(e *Executor) { e.maxParallel = n }
}

// WithObserver registers an observer for node events.
func WithObserver(o Observer) ExecutorOption {
	return func(e *Executor) { e.observer = o }
}

// NewExecutor creates a new executor
func NewExecutor(registry *steps.Registry, logger *zap.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{registry: registry, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Execute runs every stage of plan against g and returns the finished report.
//
// Stages run strictly in order. Members of a stage run concurrently, each
// writing only its own pre-allocated result slot. A node whose predecessor
// failed or was skipped is skipped without being invoked. Once ctx is done no
// further stage is dispatched and the remaining nodes are skipped.
func (e *Executor) Execute(ctx context.Context, runID string, g *domain.Graph, plan domain.ExecutionPlan) *domain.RunReport {
	logger := e.logger.With(zap.String("run_id", runID))
	startedAt := time.Now()

	nodes := make(map[string]domain.Node, len(g.Nodes))
	results := make(map[string]*domain.StepResult, len(g.Nodes))
	for _, node := range g.Nodes {
		nodes[node.ID] = node
		results[node.ID] = &domain.StepResult{
			NodeID: node.ID,
			Type:   node.Type,
			Status: domain.StepStatusPending,
		}
	}
	preds := g.Predecessors()

	report := &domain.RunReport{
		RunID:     runID,
		Logs:      []string{},
		Results:   results,
		Stages:    plan.Stages,
		StartedAt: startedAt,
	}

	var sem chan struct{}
	if e.maxParallel > 0 {
		sem = make(chan struct{}, e.maxParallel)
	}

	logger.Info("run started",
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("stages", len(plan.Stages)))

	var firstFailure *domain.StepResult
	cancelled := false

	for i, stage := range plan.Stages {
		if ctx.Err() != nil {
			cancelled = true
			for _, rest := range plan.Stages[i:] {
				for _, id := range rest {
					e.skip(runID, results[id], domain.SkippedByCancellation)
				}
			}
			logger.Warn("run cancelled before stage", zap.Int("stage", i), zap.Error(ctx.Err()))
			break
		}

		var wg sync.WaitGroup
		for _, id := range stage {
			res := results[id]
			if cause := skipCause(preds[id], results); cause != "" {
				e.skip(runID, res, cause)
				continue
			}

			upstream := make(steps.Upstream, len(preds[id]))
			for _, p := range preds[id] {
				upstream[p] = results[p].Output
			}

			wg.Add(1)
			go func(node domain.Node, upstream steps.Upstream, res *domain.StepResult) {
				defer wg.Done()
				if sem != nil {
					select {
					case sem <- struct{}{}:
						defer func() { <-sem }()
					case <-ctx.Done():
						e.skip(runID, res, domain.SkippedByCancellation)
						return
					}
				}
				e.runNode(ctx, runID, node, upstream, res)
			}(nodes[id], upstream, res)
		}
		wg.Wait()

		for _, id := range stage {
			res := results[id]
			report.Logs = append(report.Logs, res.Logs...)
			if res.Status == domain.StepStatusFailed && firstFailure == nil {
				firstFailure = res
			}
			if res.SkippedBy == domain.SkippedByCancellation {
				cancelled = true
			}
		}

		logger.Debug("stage completed", zap.Int("stage", i), zap.Strings("nodes", stage))
	}

	finishedAt := time.Now()
	report.FinishedAt = finishedAt
	report.DurationMs = finishedAt.Sub(startedAt).Milliseconds()
	report.Success, report.Message = summarize(report, firstFailure, cancelled)

	logger.Info("run finished",
		zap.Bool("success", report.Success),
		zap.String("message", report.Message),
		zap.Duration("duration", finishedAt.Sub(startedAt)))

	return report
}

// skipCause returns the root cause id when any predecessor did not succeed.
func skipCause(preds []string, results map[string]*domain.StepResult) string {
	for _, p := range preds {
		switch res := results[p]; res.Status {
		case domain.StepStatusFailed:
			return p
		case domain.StepStatusSkipped:
			return res.SkippedBy
		}
	}
	return ""
}

func (e *Executor) skip(runID string, res *domain.StepResult, cause string) {
	res.Status = domain.StepStatusSkipped
	res.SkippedBy = cause
	e.logger.Debug("node skipped",
		zap.String("run_id", runID),
		zap.String("node_id", res.NodeID),
		zap.String("skipped_by", cause))
	if e.observer != nil {
		e.observer.NodeFinished(runID, res)
	}
}

func (e *Executor) runNode(ctx context.Context, runID string, node domain.Node, upstream steps.Upstream, res *domain.StepResult) {
	logger := e.logger.With(
		zap.String("run_id", runID),
		zap.String("node_id", node.ID),
		zap.String("node_type", node.Type))

	started := time.Now()
	res.Status = domain.StepStatusRunning
	res.StartedAt = &started
	if e.observer != nil {
		e.observer.NodeStarted(runID, node)
	}
	logger.Debug("executing node")

	var out steps.Output
	handler, err := e.registry.Resolve(node.Type)
	if err == nil {
		nodeCtx := ctx
		if e.nodeTimeout > 0 {
			var cancel context.CancelFunc
			nodeCtx, cancel = context.WithTimeout(ctx, e.nodeTimeout)
			defer cancel()
		}
		out, err = invoke(nodeCtx, handler, node, upstream)
	}

	finished := time.Now()
	res.FinishedAt = &finished
	res.DurationMs = finished.Sub(started).Milliseconds()
	res.Logs = append([]string{fmt.Sprintf("Processing node: %s (%s)", node.ID, node.Type)}, out.Logs...)

	if err != nil {
		se := domain.AsStepError(err)
		res.Status = domain.StepStatusFailed
		res.Error = se.Detail()
		logger.Warn("node failed",
			zap.String("kind", string(se.Kind)),
			zap.Error(err),
			zap.Duration("duration", finished.Sub(started)))
	} else {
		res.Status = domain.StepStatusSucceeded
		res.Output = out.Data
		if res.Output == nil {
			res.Output = map[string]interface{}{}
		}
		logger.Debug("node succeeded", zap.Duration("duration", finished.Sub(started)))
	}

	if e.observer != nil {
		e.observer.NodeFinished(runID, res)
	}
}

// invoke calls the handler and turns a panic into a HandlerPanic step error.
func invoke(ctx context.Context, h steps.Handler, node domain.Node, upstream steps.Upstream) (out steps.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = steps.Output{}
			err = domain.NewStepError(domain.StepErrHandlerPanic, "handler for %q panicked: %v", node.Type, r)
		}
	}()
	params := node.Data
	if params == nil {
		params = map[string]interface{}{}
	}
	return h.Execute(ctx, params, upstream)
}

func summarize(report *domain.RunReport, firstFailure *domain.StepResult, cancelled bool) (bool, string) {
	counts := report.Counts()
	total := len(report.Results)

	if counts[domain.StepStatusSucceeded] == total {
		return true, fmt.Sprintf("Executed %d nodes successfully.", total)
	}
	if firstFailure != nil {
		return false, fmt.Sprintf("node %s (%s) failed with %s: %s (%d failed, %d skipped)",
			firstFailure.NodeID, firstFailure.Type, firstFailure.Error.Kind, firstFailure.Error.Message,
			counts[domain.StepStatusFailed], counts[domain.StepStatusSkipped])
	}
	if cancelled {
		return false, fmt.Sprintf("run cancelled: %d of %d nodes skipped", counts[domain.StepStatusSkipped], total)
	}
	return false, fmt.Sprintf("run incomplete: %d of %d nodes succeeded", counts[domain.StepStatusSucceeded], total)
}
