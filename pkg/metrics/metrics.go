// Package metrics exposes Prometheus instrumentation for engine operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts engine operations and times them. A nil *Metrics is a valid
// no-op receiver so instrumentation stays optional.
type Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	trackedInstances  prometheus.Gauge
}

// New builds the engine metric set and registers it with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stageflow_operations_total",
				Help: "Total number of engine operations by outcome",
			},
			[]string{"operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stageflow_operation_duration_seconds",
				Help:    "Engine operation latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		trackedInstances: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stageflow_tracked_instances",
				Help: "Number of content entities with an applied workflow",
			},
		),
	}

	reg.MustRegister(m.operationsTotal, m.operationDuration, m.trackedInstances)

	return m
}

// ObserveOperation records one engine operation outcome and its latency.
func (m *Metrics) ObserveOperation(operation string, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}

	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// InstanceTracked adjusts the tracked-instance gauge after applies and
// removals.
func (m *Metrics) InstanceTracked(delta int) {
	if m == nil {
		return
	}

	m.trackedInstances.Add(float64(delta))
}
