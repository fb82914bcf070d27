// Package metrics exposes Prometheus metrics for workflow runs.
package metrics

import (
	"net/http"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blockflow"

// Metrics holds the run and block collectors on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	blocks        *prometheus.CounterVec
	blockDuration *prometheus.HistogramVec
	inflight      prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Workflow runs by terminal status.",
		}, []string{"status"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of workflow runs.",
			Buckets:   prometheus.DefBuckets,
		}),
		blocks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_invocations_total",
			Help:      "Block invocations by block type and outcome.",
		}, []string{"block_type", "status"}),
		blockDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "block_duration_seconds",
			Help:      "Duration of block invocations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"block_type"}),
		inflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_inflight",
			Help:      "Workflow runs currently executing.",
		}),
	}
}

// RunStarted marks a run as in flight. Pair it with ObserveRun.
func (m *Metrics) RunStarted() {
	m.inflight.Inc()
}

// ObserveRun records a finished run and each of its block invocations.
func (m *Metrics) ObserveRun(result *models.ExecutionResult) {
	m.inflight.Dec()

	m.runs.WithLabelValues(string(result.Status)).Inc()
	m.runDuration.Observe(float64(result.Metadata.Duration) / 1000)

	for _, entry := range result.Logs {
		status := "success"
		if !entry.Success {
			status = "error"
		}

		m.blocks.WithLabelValues(entry.BlockType, status).Inc()
		m.blockDuration.WithLabelValues(entry.BlockType).Observe(float64(entry.DurationMs) / 1000)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
