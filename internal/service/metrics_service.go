package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the sync engine.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	probeDuration     prometheus.Histogram
	stateTransitions  *prometheus.CounterVec
	connectionState   prometheus.Gauge
	queuePending      prometheus.Gauge
	flushTotal        *prometheus.CounterVec
	deadLetterTotal   prometheus.Counter
	reconcileDuration prometheus.Histogram
	importRows        *prometheus.CounterVec
}

// NewMetricsService registers the engine collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	probeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "health_probe_duration_seconds",
		Help:    "Duration of remote store health probes",
		Buckets: prometheus.DefBuckets,
	})

	stateTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_state_transitions_total",
		Help: "Connection state transitions by target state",
	}, []string{"state"})

	connectionState := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "connection_state",
		Help: "Current connection state as an enum value",
	})

	queuePending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "offline_queue_pending",
		Help: "Writes currently parked in the offline queue",
	})

	flushTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_queue_flush_total",
		Help: "Flush attempts by result",
	}, []string{"result"})

	deadLetterTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offline_queue_dead_letters_total",
		Help: "Writes moved to the dead-letter list",
	})

	reconcileDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconcile_duration_seconds",
		Help:    "Duration of identity reconciliation passes",
		Buckets: prometheus.DefBuckets,
	})

	importRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_rows_total",
		Help: "Bulk import rows by outcome",
	}, []string{"outcome"})

	registry.MustRegister(probeDuration, stateTransitions, connectionState,
		queuePending, flushTotal, deadLetterTotal, reconcileDuration, importRows)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		probeDuration:     probeDuration,
		stateTransitions:  stateTransitions,
		connectionState:   connectionState,
		queuePending:      queuePending,
		flushTotal:        flushTotal,
		deadLetterTotal:   deadLetterTotal,
		reconcileDuration: reconcileDuration,
		importRows:        importRows,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// ObserveProbe records a health probe duration.
func (m *MetricsService) ObserveProbe(d time.Duration) {
	if m == nil {
		return
	}
	m.probeDuration.Observe(d.Seconds())
}

// RecordTransition counts a state transition and updates the state gauge.
func (m *MetricsService) RecordTransition(state string, enum int) {
	if m == nil {
		return
	}
	m.stateTransitions.WithLabelValues(state).Inc()
	m.connectionState.Set(float64(enum))
}

// SetQueuePending updates the pending-writes gauge.
func (m *MetricsService) SetQueuePending(n int) {
	if m == nil {
		return
	}
	m.queuePending.Set(float64(n))
}

// RecordFlush counts one flush attempt result.
func (m *MetricsService) RecordFlush(succeeded bool) {
	if m == nil {
		return
	}
	result := "failed"
	if succeeded {
		result = "succeeded"
	}
	m.flushTotal.WithLabelValues(result).Inc()
}

// RecordDeadLetter counts a write moved to the dead-letter list.
func (m *MetricsService) RecordDeadLetter() {
	if m == nil {
		return
	}
	m.deadLetterTotal.Inc()
}

// ObserveReconcile records one reconciliation pass duration.
func (m *MetricsService) ObserveReconcile(d time.Duration) {
	if m == nil {
		return
	}
	m.reconcileDuration.Observe(d.Seconds())
}

// RecordImportRow counts one import row by outcome.
func (m *MetricsService) RecordImportRow(outcome string) {
	if m == nil {
		return
	}
	m.importRows.WithLabelValues(outcome).Inc()
}
