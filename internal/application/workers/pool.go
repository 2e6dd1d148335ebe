package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/synapse/pkg/ports"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Dispatch when the run queue has no room.
	ErrQueueFull = errors.New("run queue is full")
	// ErrPoolStopped is returned by Dispatch after Shutdown.
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// RunExecutor executes one submitted run.
type RunExecutor interface {
	ExecuteRun(ctx context.Context, runID string) error
}

// Pool manages a pool of worker goroutines
type Pool struct {
	size    int
	queue   chan string
	runner  RunExecutor
	metrics ports.MetricsCollector
	logger  *zap.Logger
	health  *HealthMonitor

	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	// dispatchMu orders Dispatch sends before the shutdown drain.
	dispatchMu sync.RWMutex
}

// worker represents a single worker goroutine
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	current string
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool
func NewPool(
	size int,
	queueSize int,
	runner RunExecutor,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:    size,
		queue:   make(chan string, queueSize),
		runner:  runner,
		metrics: metrics,
		logger:  logger,
		workers: make([]*worker, size),
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < size; i++ {
		pool.workers[i] = &worker{
			id:      fmt.Sprintf("worker-%d", i),
			pool:    pool,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start starts the worker pool
func (p *Pool) Start() error {
	if p.ctx.Err() != nil {
		return ErrPoolStopped
	}
	p.logger.Info("starting worker pool", zap.Int("size", p.size))

	for _, w := range p.workers {
		p.wg.Add(1)
		go w.run(p.ctx)
	}

	// Start health monitor
	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Dispatch queues a run without blocking.
func (p *Pool) Dispatch(runID string) error {
	p.dispatchMu.RLock()
	defer p.dispatchMu.RUnlock()
	if p.ctx.Err() != nil {
		return ErrPoolStopped
	}
	select {
	case p.queue <- runID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops the workers and finishes every run still queued. Queued
// runs are executed with the cancelled pool context, so their nodes are
// skipped and a terminal record is stored.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	// Stop health monitor
	p.health.Stop()

	p.dispatchMu.Lock()
	p.cancel()
	p.dispatchMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		p.drain()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// drain finishes the runs left in the queue once every worker has exited.
func (p *Pool) drain() {
	for {
		select {
		case runID := <-p.queue:
			p.logger.Info("finishing queued run after shutdown", zap.String("run_id", runID))
			if err := p.runner.ExecuteRun(p.ctx, runID); err != nil {
				p.logger.Error("queued run could not be finished",
					zap.String("run_id", runID),
					zap.Error(err))
			}
		default:
			return
		}
	}
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// QueueDepth returns the number of runs waiting for a worker.
func (p *Pool) QueueDepth() int {
	return len(p.queue)
}

// Health returns the pool's health monitor.
func (p *Pool) Health() *HealthMonitor {
	return p.health
}

// run is the main worker loop
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	w.pool.logger.Info("worker started", zap.String("worker_id", w.id))

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.status = WorkerStatusStopped
			w.mu.Unlock()
			w.pool.logger.Info("worker stopped", zap.String("worker_id", w.id))
			return
		case runID := <-w.pool.queue:
			w.handleRun(ctx, runID)
		}
	}
}

// handleRun executes a single queued run
func (w *worker) handleRun(ctx context.Context, runID string) {
	w.mu.Lock()
	w.status = WorkerStatusBusy
	w.current = runID
	w.lastJob = time.Now()
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.status = WorkerStatusIdle
		w.current = ""
		w.mu.Unlock()
	}()

	w.pool.logger.Info("executing run",
		zap.String("worker_id", w.id),
		zap.String("run_id", runID))

	startTime := time.Now()
	if err := w.pool.runner.ExecuteRun(ctx, runID); err != nil {
		w.pool.logger.Error("run execution failed",
			zap.String("worker_id", w.id),
			zap.String("run_id", runID),
			zap.Error(err))
		return
	}

	w.pool.logger.Info("run execution completed",
		zap.String("worker_id", w.id),
		zap.String("run_id", runID),
		zap.Duration("duration", time.Since(startTime)))
}
