package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aescanero/synapse/internal/application/steps"
	"github.com/aescanero/synapse/pkg/domain"
	"github.com/aescanero/synapse/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher hands asynchronously submitted runs to whatever executes them.
type Dispatcher interface {
	Dispatch(runID string) error
}

// Manager coordinates run execution
type Manager struct {
	eventBus   ports.EventBus
	storage    ports.RunStorage
	metrics    ports.MetricsCollector
	validator  *Validator
	planner    *Planner
	executor   *Executor
	logger     *zap.Logger
	dispatcher Dispatcher

	// Track active executions
	executions sync.Map // map[string]*executionContext
	active     atomic.Int64

	runTimeout time.Duration
}

// executionContext holds state for a single run
type executionContext struct {
	runID      string
	ctx        context.Context
	cancelFunc context.CancelFunc

	mu        sync.Mutex
	status    domain.RunStatus
	cancelled bool
}

// NewManager creates a new orchestrator manager. The executor options are
// applied to the manager's executor after its own observer.
func NewManager(
	eventBus ports.EventBus,
	storage ports.RunStorage,
	metrics ports.MetricsCollector,
	registry *steps.Registry,
	logger *zap.Logger,
	runTimeout time.Duration,
	opts ...ExecutorOption,
) *Manager {
	m := &Manager{
		eventBus:   eventBus,
		storage:    storage,
		metrics:    metrics,
		validator:  NewValidator(),
		planner:    NewPlanner(),
		logger:     logger,
		runTimeout: runTimeout,
	}
	m.executor = NewExecutor(registry, logger, append([]ExecutorOption{WithObserver(m)}, opts...)...)
	return m
}

// SetDispatcher wires the component that executes submitted runs.
func (m *Manager) SetDispatcher(d Dispatcher) {
	m.dispatcher = d
}

// Validate checks a graph without running it.
func (m *Manager) Validate(graph *domain.Graph) error {
	return m.validator.Validate(graph)
}

// Plan validates a graph and returns its execution plan.
func (m *Manager) Plan(graph *domain.Graph) (domain.ExecutionPlan, error) {
	if err := m.validator.Validate(graph); err != nil {
		return domain.ExecutionPlan{}, err
	}
	plan, err := m.planner.Plan(graph)
	if err != nil {
		m.logger.Error("planner invariant violated", zap.Error(err))
		return domain.ExecutionPlan{}, err
	}
	return plan, nil
}

// Run validates, plans and executes a graph, blocking until the run finishes.
// Validation failures return a *domain.ValidationError and planner defects a
// *domain.InternalError; node failures are reported inside the RunReport.
func (m *Manager) Run(ctx context.Context, graph *domain.Graph) (*domain.RunReport, error) {
	m.metrics.RecordRunSubmitted("sync")

	plan, err := m.Plan(graph)
	if err != nil {
		m.logger.Warn("run rejected", zap.Error(err))
		return nil, err
	}

	now := time.Now()
	record := &domain.RunRecord{
		ID:          uuid.New().String(),
		Status:      domain.RunStatusSubmitted,
		Graph:       graph,
		SubmittedAt: now,
	}

	runCtx, cancel := m.newRunContext(ctx)
	execCtx := m.track(record.ID, runCtx, cancel)
	defer m.untrack(record.ID)

	return m.execute(execCtx, record, plan)
}

// Submit validates a graph, stores it and dispatches it for asynchronous
// execution. It returns the run id.
func (m *Manager) Submit(ctx context.Context, graph *domain.Graph) (string, error) {
	if m.dispatcher == nil {
		return "", fmt.Errorf("no dispatcher configured")
	}
	if _, err := m.Plan(graph); err != nil {
		m.logger.Warn("submission rejected", zap.Error(err))
		return "", err
	}

	record := &domain.RunRecord{
		ID:          uuid.New().String(),
		Status:      domain.RunStatusSubmitted,
		Graph:       graph,
		SubmittedAt: time.Now(),
	}
	if err := m.storage.SaveRun(ctx, record); err != nil {
		m.logger.Error("failed to save initial state",
			zap.String("run_id", record.ID),
			zap.Error(err))
		return "", fmt.Errorf("failed to save state: %w", err)
	}

	runCtx, cancel := m.newRunContext(context.Background())
	m.track(record.ID, runCtx, cancel)

	m.publish(ctx, domain.TopicRunEvents, domain.EventTypeRunSubmitted, record.ID, "", map[string]interface{}{
		"nodes": len(graph.Nodes),
		"edges": len(graph.Edges),
	})

	if err := m.dispatcher.Dispatch(record.ID); err != nil {
		m.untrack(record.ID)
		completed := time.Now()
		record.Status = domain.RunStatusFailed
		record.Error = fmt.Sprintf("dispatch failed: %v", err)
		record.CompletedAt = &completed
		if serr := m.storage.SaveRun(ctx, record); serr != nil {
			m.logger.Error("failed to save state", zap.String("run_id", record.ID), zap.Error(serr))
		}
		return "", fmt.Errorf("failed to dispatch run: %w", err)
	}

	m.metrics.RecordRunSubmitted("async")
	m.logger.Info("run submitted", zap.String("run_id", record.ID))
	return record.ID, nil
}

// ExecuteRun executes a previously submitted run. Workers call it; ctx is the
// worker's context and cancelling it cancels the run. A ctx that is already
// done still finishes the run: every node is skipped and the record is stored.
func (m *Manager) ExecuteRun(ctx context.Context, runID string) error {
	storeCtx := context.WithoutCancel(ctx)
	record, err := m.storage.GetRun(storeCtx, runID)
	if err != nil {
		return fmt.Errorf("failed to get state: %w", err)
	}
	if record.Status != domain.RunStatusSubmitted {
		return fmt.Errorf("run %s is %s, not submitted", runID, record.Status)
	}

	var execCtx *executionContext
	if val, ok := m.executions.Load(runID); ok {
		execCtx = val.(*executionContext)
	} else {
		runCtx, cancel := m.newRunContext(context.Background())
		execCtx = m.track(runID, runCtx, cancel)
	}
	defer m.untrack(runID)

	if ctx.Err() != nil {
		execCtx.cancelFunc()
	}
	stop := context.AfterFunc(ctx, execCtx.cancelFunc)
	defer stop()

	plan, err := m.planner.Plan(record.Graph)
	if err != nil {
		m.logger.Error("planner invariant violated", zap.String("run_id", runID), zap.Error(err))
		m.finishWithError(storeCtx, record, err)
		return err
	}

	_, err = m.execute(execCtx, record, plan)
	return err
}

// GetRun retrieves a run record
func (m *Manager) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	record, err := m.storage.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get state: %w", err)
	}
	return record, nil
}

// ListRuns returns all stored runs, newest first.
func (m *Manager) ListRuns(ctx context.Context) ([]*domain.RunRecord, error) {
	records, err := m.storage.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].SubmittedAt.After(records[j].SubmittedAt)
	})
	return records, nil
}

// Cancel stops dispatch of the run's remaining stages. Nodes already running
// see their context cancelled.
func (m *Manager) Cancel(ctx context.Context, runID string) error {
	val, ok := m.executions.Load(runID)
	if !ok {
		record, err := m.storage.GetRun(ctx, runID)
		if err != nil {
			return fmt.Errorf("failed to get state: %w", err)
		}
		return fmt.Errorf("run %s is %s: %w", runID, record.Status, domain.ErrRunTerminal)
	}

	execCtx := val.(*executionContext)
	execCtx.mu.Lock()
	defer execCtx.mu.Unlock()

	if execCtx.status.IsTerminal() {
		return fmt.Errorf("run %s is %s: %w", runID, execCtx.status, domain.ErrRunTerminal)
	}

	execCtx.cancelled = true
	execCtx.cancelFunc()

	m.logger.Info("run cancellation requested", zap.String("run_id", runID))
	return nil
}

// DeleteRun removes a finished run's record. Runs that are submitted or
// running are rejected with domain.ErrRunActive.
func (m *Manager) DeleteRun(ctx context.Context, runID string) error {
	record, err := m.storage.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get state: %w", err)
	}
	if _, tracked := m.executions.Load(runID); tracked || !record.Status.IsTerminal() {
		return fmt.Errorf("run %s is %s: %w", runID, record.Status, domain.ErrRunActive)
	}
	if err := m.storage.DeleteRun(ctx, runID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	m.logger.Info("run deleted", zap.String("run_id", runID))
	return nil
}

// Shutdown gracefully shuts down the manager
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down orchestrator manager")

	// Cancel all active executions
	m.executions.Range(func(key, value interface{}) bool {
		execCtx := value.(*executionContext)
		execCtx.cancelFunc()
		return true
	})

	m.logger.Info("orchestrator manager shut down complete")
	return nil
}

// NodeStarted implements Observer.
func (m *Manager) NodeStarted(runID string, node domain.Node) {
	m.publish(context.Background(), domain.TopicNodeEvents, domain.EventTypeNodeStarted, runID, node.ID, map[string]interface{}{
		"type": node.Type,
	})
}

// NodeFinished implements Observer.
func (m *Manager) NodeFinished(runID string, result *domain.StepResult) {
	m.metrics.RecordNodeExecuted(result.Type, string(result.Status), time.Duration(result.DurationMs)*time.Millisecond)

	data := map[string]interface{}{
		"type":        result.Type,
		"status":      string(result.Status),
		"duration_ms": result.DurationMs,
	}
	if len(result.Logs) > 0 {
		logs := make([]interface{}, len(result.Logs))
		for i, l := range result.Logs {
			logs[i] = l
		}
		data["logs"] = logs
	}

	eventType := domain.EventTypeNodeSucceeded
	switch result.Status {
	case domain.StepStatusFailed:
		eventType = domain.EventTypeNodeFailed
		data["error_kind"] = string(result.Error.Kind)
		data["error"] = result.Error.Message
	case domain.StepStatusSkipped:
		eventType = domain.EventTypeNodeSkipped
		data["skipped_by"] = result.SkippedBy
	}
	m.publish(context.Background(), domain.TopicNodeEvents, eventType, runID, result.NodeID, data)
}

// execute runs a planned record to completion and stores the outcome.
func (m *Manager) execute(execCtx *executionContext, record *domain.RunRecord, plan domain.ExecutionPlan) (*domain.RunReport, error) {
	ctx := execCtx.ctx
	logger := m.logger.With(zap.String("run_id", record.ID))

	execCtx.mu.Lock()
	execCtx.status = domain.RunStatusRunning
	execCtx.mu.Unlock()

	started := time.Now()
	record.Status = domain.RunStatusRunning
	record.StartedAt = &started
	if err := m.storage.SaveRun(context.Background(), record); err != nil {
		logger.Error("failed to save state", zap.Error(err))
		return nil, fmt.Errorf("failed to save state: %w", err)
	}

	m.metrics.SetActiveRuns(int(m.active.Add(1)))
	defer func() { m.metrics.SetActiveRuns(int(m.active.Add(-1))) }()

	m.publish(context.Background(), domain.TopicRunEvents, domain.EventTypeRunStarted, record.ID, "", map[string]interface{}{
		"stages": len(plan.Stages),
	})

	report := m.executor.Execute(ctx, record.ID, record.Graph, plan)

	execCtx.mu.Lock()
	switch {
	case report.Success:
		record.Status = domain.RunStatusCompleted
	case execCtx.cancelled:
		record.Status = domain.RunStatusCancelled
		record.Error = report.Message
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		record.Status = domain.RunStatusFailed
		record.Error = "execution timeout: " + report.Message
	default:
		record.Status = domain.RunStatusFailed
		record.Error = report.Message
	}
	execCtx.status = record.Status
	execCtx.mu.Unlock()

	completed := time.Now()
	record.Report = report
	record.CompletedAt = &completed

	if err := m.storage.SaveRun(context.Background(), record); err != nil {
		logger.Error("failed to save final state", zap.Error(err))
	}

	eventType := domain.EventTypeRunCompleted
	switch record.Status {
	case domain.RunStatusFailed:
		eventType = domain.EventTypeRunFailed
	case domain.RunStatusCancelled:
		eventType = domain.EventTypeRunCancelled
	}
	m.publish(context.Background(), domain.TopicRunEvents, eventType, record.ID, "", map[string]interface{}{
		"success": report.Success,
		"message": report.Message,
	})

	m.metrics.RecordRunCompleted(string(record.Status), completed.Sub(started))
	logger.Info("run completed",
		zap.String("status", string(record.Status)),
		zap.Duration("duration", completed.Sub(started)))

	return report, nil
}

func (m *Manager) finishWithError(ctx context.Context, record *domain.RunRecord, cause error) {
	completed := time.Now()
	record.Status = domain.RunStatusFailed
	record.Error = cause.Error()
	record.CompletedAt = &completed
	if err := m.storage.SaveRun(ctx, record); err != nil {
		m.logger.Error("failed to save final state", zap.String("run_id", record.ID), zap.Error(err))
	}
	m.publish(ctx, domain.TopicRunEvents, domain.EventTypeRunFailed, record.ID, "", map[string]interface{}{
		"error": cause.Error(),
	})
}

func (m *Manager) newRunContext(parent context.Context) (context.Context, context.CancelFunc) {
	if m.runTimeout > 0 {
		return context.WithTimeout(parent, m.runTimeout)
	}
	return context.WithCancel(parent)
}

func (m *Manager) track(runID string, ctx context.Context, cancel context.CancelFunc) *executionContext {
	execCtx := &executionContext{
		runID:      runID,
		ctx:        ctx,
		cancelFunc: cancel,
		status:     domain.RunStatusSubmitted,
	}
	m.executions.Store(runID, execCtx)
	return execCtx
}

func (m *Manager) untrack(runID string) {
	if val, ok := m.executions.LoadAndDelete(runID); ok {
		val.(*executionContext).cancelFunc()
	}
}

// publish publishes an event to the event bus
func (m *Manager) publish(ctx context.Context, topic string, eventType domain.EventType, runID, nodeID string, data map[string]interface{}) {
	event := domain.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		RunID:     runID,
		NodeID:    nodeID,
		Timestamp: time.Now(),
		Data:      data,
	}

	if err := m.eventBus.Publish(ctx, topic, event); err != nil {
		m.logger.Error("failed to publish event",
			zap.String("run_id", runID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}
