package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	runsSubmitted     *prometheus.CounterVec
	runsCompleted     *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	nodesExecuted     *prometheus.CounterVec
	nodeDuration      *prometheus.HistogramVec
	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
	llmCalls          *prometheus.CounterVec
	llmTokens         *prometheus.CounterVec
	llmLatency        *prometheus.HistogramVec
	activeRuns        prometheus.Gauge
}

// NewCollector creates a Prometheus metrics collector registered with reg.
// A nil reg registers with the default registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		runsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_runs_submitted_total",
				Help: "Total number of runs submitted",
			},
			[]string{"mode"},
		),
		runsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_runs_completed_total",
				Help: "Total number of runs finished, by final status",
			},
			[]string{"status"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synapse_run_duration_seconds",
				Help:    "Run execution duration in seconds",
				Buckets: []float64{0.01, 0.1, 1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		nodesExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_nodes_executed_total",
				Help: "Total number of nodes finished, by type and status",
			},
			[]string{"node_type", "status"},
		),
		nodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synapse_node_duration_seconds",
				Help:    "Node execution duration in seconds",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"node_type"},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "synapse_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "synapse_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "synapse_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
		llmCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_llm_calls_total",
				Help: "Total number of LLM API calls",
			},
			[]string{"model"},
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_llm_tokens_total",
				Help: "Total number of LLM tokens used",
			},
			[]string{"model", "type"},
		),
		llmLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synapse_llm_latency_seconds",
				Help:    "LLM API call latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"model"},
		),
		activeRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "synapse_active_runs",
				Help: "Number of currently executing runs",
			},
		),
	}
}

// RecordRunSubmitted records a run submission ("sync" or "async")
func (c *Collector) RecordRunSubmitted(mode string) {
	c.runsSubmitted.WithLabelValues(mode).Inc()
}

// RecordRunCompleted records a finished run
func (c *Collector) RecordRunCompleted(status string, duration time.Duration) {
	c.runsCompleted.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordNodeExecuted records a node reaching a terminal status
func (c *Collector) RecordNodeExecuted(nodeType, status string, duration time.Duration) {
	c.nodesExecuted.WithLabelValues(nodeType, status).Inc()
	c.nodeDuration.WithLabelValues(nodeType).Observe(duration.Seconds())
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}

// RecordLLMCall records one LLM API call
func (c *Collector) RecordLLMCall(model string, inputTokens, outputTokens int64, latency time.Duration) {
	c.llmCalls.WithLabelValues(model).Inc()
	c.llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	c.llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	c.llmLatency.WithLabelValues(model).Observe(latency.Seconds())
}

// SetActiveRuns sets the number of currently executing runs
func (c *Collector) SetActiveRuns(count int) {
	c.activeRuns.Set(float64(count))
}
