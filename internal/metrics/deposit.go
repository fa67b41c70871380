package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	depositStepTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deposit",
			Name:      "step_transitions_total",
			Help:      "Total number of deposit flow step transitions",
		},
		[]string{"step"},
	)

	depositFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deposit",
			Name:      "failures_total",
			Help:      "Total number of deposit flows failed, by step",
		},
		[]string{"step"},
	)

	depositsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deposit",
			Name:      "completed_total",
			Help:      "Total number of deposits broadcasted",
		},
	)

	depositsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "deposit",
			Name:      "active",
			Help:      "Number of deposit flows currently running",
		},
	)

	depositDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "deposit",
			Name:      "duration_seconds",
			Help:      "Time from deposit creation to broadcast",
			Buckets:   []float64{60, 300, 900, 1800, 3600, 7200},
		},
	)

	pollingAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "polling",
			Name:      "attempts_total",
			Help:      "Total number of polling attempts by operation and outcome",
		},
		[]string{"operation", "outcome"}, // success, pending, transient_error, error
	)
)

// DepositMetrics updates the deposit flow metrics.
type DepositMetrics struct{}

func NewDepositMetrics() *DepositMetrics {
	return &DepositMetrics{}
}

func (m *DepositMetrics) RecordTransition(step string) {
	depositStepTransitionsTotal.WithLabelValues(step).Inc()
}

func (m *DepositMetrics) RecordFailure(step string) {
	depositFailuresTotal.WithLabelValues(step).Inc()
}

func (m *DepositMetrics) RecordCompletion(duration time.Duration) {
	depositsCompletedTotal.Inc()
	depositDuration.Observe(duration.Seconds())
}

func (m *DepositMetrics) FlowStarted() {
	depositsActive.Inc()
}

func (m *DepositMetrics) FlowStopped() {
	depositsActive.Dec()
}

func (m *DepositMetrics) RecordPollingAttempt(operation, outcome string) {
	pollingAttemptsTotal.WithLabelValues(operation, outcome).Inc()
}
