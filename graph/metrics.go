package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects engine metrics for Prometheus scraping.
//
// Metrics exposed (all namespaced with "agents_"):
//
// 1. inflight_nodes (gauge): Nodes currently executing across all runs.
//
// 2. step_latency_ms (histogram): Node execution duration in milliseconds.
// Labels: graph, node, status (success/error/interrupt).
//
// 3. runs_total (counter): Finished run segments by outcome.
// Labels: graph, status (COMPLETED/FAILED/INTERRUPTED).
//
// 4. interrupts_total (counter): Pauses requested by nodes.
// Labels: graph, node.
//
// 5. resume_conflicts_total (counter): Writes rejected because another
// caller advanced the thread first.
// Labels: graph.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := graph.NewPrometheusMetrics(registry)
//	engine, _ := graph.New(st, graph.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// Labels never include thread ids, so cardinality is bounded by the number
// of graphs and nodes.
type PrometheusMetrics struct {
	inflightNodes   prometheus.Gauge
	stepLatency     *prometheus.HistogramVec
	runs            *prometheus.CounterVec
	interrupts      *prometheus.CounterVec
	resumeConflicts *prometheus.CounterVec

	enabled bool
}

// NewPrometheusMetrics creates and registers all engine metrics with
// registry. A nil registry uses prometheus.DefaultRegisterer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		enabled: true,
		inflightNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "agents",
			Name:      "inflight_nodes",
			Help:      "Current number of nodes executing",
		}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agents",
			Name:      "step_latency_ms",
			Help:      "Node execution duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000},
		}, []string{"graph", "node", "status"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agents",
			Name:      "runs_total",
			Help:      "Run segments finished, by outcome",
		}, []string{"graph", "status"}),
		interrupts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agents",
			Name:      "interrupts_total",
			Help:      "Pauses requested by nodes awaiting human input",
		}, []string{"graph", "node"}),
		resumeConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agents",
			Name:      "resume_conflicts_total",
			Help:      "Checkpoint writes rejected because another caller advanced the thread",
		}, []string{"graph"}),
	}
}

// RecordStepLatency records one node execution.
func (pm *PrometheusMetrics) RecordStepLatency(graphName, nodeID string, latency time.Duration, status string) {
	if pm == nil || !pm.enabled {
		return
	}
	pm.stepLatency.WithLabelValues(graphName, nodeID, status).Observe(float64(latency.Milliseconds()))
}

// IncInflight adjusts the inflight_nodes gauge by delta.
func (pm *PrometheusMetrics) IncInflight(delta int) {
	if pm == nil || !pm.enabled {
		return
	}
	pm.inflightNodes.Add(float64(delta))
}

// RecordRun counts a finished run segment.
func (pm *PrometheusMetrics) RecordRun(graphName string, status Status) {
	if pm == nil || !pm.enabled {
		return
	}
	pm.runs.WithLabelValues(graphName, string(status)).Inc()
}

// RecordInterrupt counts a pause requested by nodeID.
func (pm *PrometheusMetrics) RecordInterrupt(graphName, nodeID string) {
	if pm == nil || !pm.enabled {
		return
	}
	pm.interrupts.WithLabelValues(graphName, nodeID).Inc()
}

// RecordResumeConflict counts a rejected concurrent write.
func (pm *PrometheusMetrics) RecordResumeConflict(graphName string) {
	if pm == nil || !pm.enabled {
		return
	}
	pm.resumeConflicts.WithLabelValues(graphName).Inc()
}

// Disable stops recording. Already collected values are kept.
func (pm *PrometheusMetrics) Disable() {
	pm.enabled = false
}

// Enable resumes recording.
func (pm *PrometheusMetrics) Enable() {
	pm.enabled = true
}
