package workers

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthStatus is a point-in-time view of the run queue and its workers.
type HealthStatus struct {
	TotalWorkers   int       `json:"total_workers"`
	IdleWorkers    int       `json:"idle_workers"`
	BusyWorkers    int       `json:"busy_workers"`
	StoppedWorkers int       `json:"stopped_workers"`
	QueueDepth     int       `json:"queue_depth"`
	QueueCapacity  int       `json:"queue_capacity"`
	Healthy        bool      `json:"healthy"`
	Timestamp      time.Time `json:"timestamp"`
}

// HealthMonitor samples the pool on an interval, publishes worker gauges and
// logs when the pool becomes unhealthy or recovers.
type HealthMonitor struct {
	pool     *Pool
	interval time.Duration
	logger   *zap.Logger

	mu          sync.Mutex
	stop        chan struct{}
	done        chan struct{}
	lastHealthy bool
}

// NewHealthMonitor creates a monitor for pool. It does nothing until Start.
func NewHealthMonitor(pool *Pool, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	return &HealthMonitor{
		pool:        pool,
		interval:    interval,
		logger:      logger,
		lastHealthy: true,
	}
}

// Start begins periodic sampling. A non-positive interval disables it, and
// calling Start on a running monitor is a no-op.
func (h *HealthMonitor) Start() {
	if h.interval <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		return
	}
	h.stop = make(chan struct{})
	h.done = make(chan struct{})
	go h.loop(h.stop, h.done)
}

// Stop ends sampling and waits for the loop to exit.
func (h *HealthMonitor) Stop() {
	h.mu.Lock()
	stop, done := h.stop, h.done
	h.stop, h.done = nil, nil
	h.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (h *HealthMonitor) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.sample()
		}
	}
}

func (h *HealthMonitor) sample() {
	status := h.GetStatus()
	h.pool.metrics.RecordWorkerPoolStatus(status.IdleWorkers, status.BusyWorkers, status.StoppedWorkers)

	h.logger.Debug("worker pool health check",
		zap.Int("idle", status.IdleWorkers),
		zap.Int("busy", status.BusyWorkers),
		zap.Int("stopped", status.StoppedWorkers),
		zap.Int("queued", status.QueueDepth))

	h.mu.Lock()
	changed := status.Healthy != h.lastHealthy
	h.lastHealthy = status.Healthy
	h.mu.Unlock()
	if !changed {
		return
	}

	if status.Healthy {
		h.logger.Info("worker pool recovered", zap.Int("queued", status.QueueDepth))
		return
	}
	h.logger.Warn("worker pool is unhealthy",
		zap.Int("stopped", status.StoppedWorkers),
		zap.Int("queued", status.QueueDepth),
		zap.Int("capacity", status.QueueCapacity))
}

// GetStatus counts workers by state. The pool is healthy while it has
// workers, none has stopped and the queue still has room.
func (h *HealthMonitor) GetStatus() *HealthStatus {
	status := &HealthStatus{
		QueueDepth:    h.pool.QueueDepth(),
		QueueCapacity: cap(h.pool.queue),
		Timestamp:     time.Now(),
	}
	for _, s := range h.pool.GetStatus() {
		status.TotalWorkers++
		switch s {
		case WorkerStatusIdle:
			status.IdleWorkers++
		case WorkerStatusBusy:
			status.BusyWorkers++
		case WorkerStatusStopped:
			status.StoppedWorkers++
		}
	}
	status.Healthy = status.TotalWorkers > 0 &&
		status.StoppedWorkers == 0 &&
		status.QueueDepth < status.QueueCapacity
	return status
}

// IsHealthy reports GetStatus().Healthy.
func (h *HealthMonitor) IsHealthy() bool {
	return h.GetStatus().Healthy
}
