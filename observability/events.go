package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"donutmatrix/core/events"
)

type eventMetrics struct {
	signals *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking emitted program signals. The
// registry satisfies events.Emitter so it can sit alongside the journal.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			signals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "matrix",
				Subsystem: "events",
				Name:      "signals_total",
				Help:      "Count of program signals segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.signals)
	})
	return eventRegistry
}

// Emit implements events.Emitter.
func (m *eventMetrics) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	m.RecordSignal(evt.EventType())
}

// RecordSignal increments the counter for the supplied signal type.
func (m *eventMetrics) RecordSignal(kind string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(kind))
	if normalized == "" {
		normalized = "unknown"
	}
	m.signals.WithLabelValues(normalized).Inc()
}
