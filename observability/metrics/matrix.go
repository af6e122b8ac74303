package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type MatrixMetrics struct {
	operations    *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	registrations *prometheus.CounterVec
	completions   prometheus.Counter
	burned        prometheus.Counter
	claimed       prometheus.Counter
	currentWeek   prometheus.Gauge
	weeksClosed   prometheus.Counter
}

var (
	matrixOnce     sync.Once
	matrixRegistry *MatrixMetrics
)

func Matrix() *MatrixMetrics {
	matrixOnce.Do(func() {
		matrixRegistry = &MatrixMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "matrix_operations_total",
				Help: "Count of program operations segmented by operation and outcome kind.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "matrix_operation_duration_seconds",
				Help:    "Latency distribution for program operations including collaborator calls.",
				Buckets: prometheus.DefBuckets,
			}, []string{"operation"}),
			registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "matrix_registrations_total",
				Help: "Count of registrations by the slot action they triggered.",
			}, []string{"action"}),
			completions: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "matrix_completions_total",
				Help: "Number of matrices completed and counted toward a reward week.",
			}),
			burned: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "matrix_reward_burned_base_units_total",
				Help: "Reward token base units burned after deposit settlement.",
			}),
			claimed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "matrix_reward_claimed_base_units_total",
				Help: "Reward token base units paid out to participants.",
			}),
			currentWeek: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "matrix_current_week",
				Help: "Active reward week, zero when the program is inactive or ended.",
			}),
			weeksClosed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "matrix_weeks_closed_total",
				Help: "Number of reward weeks snapshotted.",
			}),
		}
		prometheus.MustRegister(
			matrixRegistry.operations,
			matrixRegistry.latency,
			matrixRegistry.registrations,
			matrixRegistry.completions,
			matrixRegistry.burned,
			matrixRegistry.claimed,
			matrixRegistry.currentWeek,
			matrixRegistry.weeksClosed,
		)
	})
	return matrixRegistry
}

// ObserveOperation records the outcome of a program operation. Outcome should
// be "success" or the error kind that aborted it.
func (m *MatrixMetrics) ObserveOperation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	if outcome == "" {
		outcome = "success"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *MatrixMetrics) RecordRegistration(action string) {
	if m == nil {
		return
	}
	if action == "" {
		action = "root"
	}
	m.registrations.WithLabelValues(action).Inc()
}

func (m *MatrixMetrics) RecordCompletion() {
	if m == nil {
		return
	}
	m.completions.Inc()
}

func (m *MatrixMetrics) RecordBurn(amount uint64) {
	if m == nil {
		return
	}
	m.burned.Add(float64(amount))
}

func (m *MatrixMetrics) RecordClaim(amount uint64) {
	if m == nil {
		return
	}
	m.claimed.Add(float64(amount))
}

func (m *MatrixMetrics) SetCurrentWeek(week uint64) {
	if m == nil {
		return
	}
	m.currentWeek.Set(float64(week))
}

func (m *MatrixMetrics) RecordWeekClosed() {
	if m == nil {
		return
	}
	m.weeksClosed.Inc()
}
