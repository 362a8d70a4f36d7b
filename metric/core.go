package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains platform-level metrics shared across components.
// Component-specific metrics are registered separately via the registry.
type Metrics struct {
	// Bus metrics
	BusPublished *prometheus.CounterVec
	BusDelivered *prometheus.CounterVec
	BusDropped   *prometheus.CounterVec

	// Ingestion metrics
	EventsIngested    *prometheus.CounterVec
	EventsDropped     *prometheus.CounterVec
	ReconnectAttempts *prometheus.CounterVec
	StreamsDead       *prometheus.GaugeVec

	// Analysis metrics
	SummariesGenerated  *prometheus.CounterVec
	AssessmentsRun      prometheus.Counter
	AssessmentsRejected prometheus.Counter
	AlertsDispatched    *prometheus.CounterVec
	AnalysisDuration    *prometheus.HistogramVec

	ErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		BusPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "insightbot",
				Subsystem: "bus",
				Name:      "published_total",
				Help:      "Total messages published to the bus",
			},
			[]string{"address", "topic_base"},
		),

		BusDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "insightbot",
				Subsystem: "bus",
				Name:      "delivered_total",
				Help:      "Total messages delivered to subscribers",
			},
			[]string{"address"},
		),

		BusDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "insightbot",
				Subsystem: "bus",
				Name:      "dropped_total",
				Help:      "Total messages dropped (serialization failure or full queue)",
			},
			[]string{"address", "reason"},
		),

		EventsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "insightbot",
				Subsystem: "ingest",
				Name:      "events_total",
				Help:      "Total events decoded and republished by stream",
			},
			[]string{"stream", "category"},
		),

		EventsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "insightbot",
				Subsystem: "ingest",
				Name:      "events_dropped_total",
				Help:      "Records dropped during decode/classification",
			},
			[]string{"stream", "reason"},
		),

		ReconnectAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "insightbot",
				Subsystem: "ingest",
				Name:      "reconnect_attempts_total",
				Help:      "Stream reconnection attempts",
			},
			[]string{"stream"},
		),

		StreamsDead: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "insightbot",
				Subsystem: "ingest",
				Name:      "stream_dead",
				Help:      "Stream permanently stopped after exhausting attempts (0/1)",
			},
			[]string{"stream"},
		),

		SummariesGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "insightbot",
				Subsystem: "analyzer",
				Name:      "summaries_total",
				Help:      "Summarization calls by category and outcome",
			},
			[]string{"category", "status"},
		),

		AssessmentsRun: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "insightbot",
				Subsystem: "analyzer",
				Name:      "assessments_total",
				Help:      "Combined-assessment invocations",
			},
		),

		AssessmentsRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "insightbot",
				Subsystem: "analyzer",
				Name:      "assessments_rejected_total",
				Help:      "Assessment responses discarded as malformed",
			},
		),

		AlertsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "insightbot",
				Subsystem: "analyzer",
				Name:      "alerts_total",
				Help:      "Alert dispatch attempts by outcome",
			},
			[]string{"status"},
		),

		AnalysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "insightbot",
				Subsystem: "analyzer",
				Name:      "duration_seconds",
				Help:      "Collaborator call duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "insightbot",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"component", "type"},
		),
	}
}

// RecordError increments the error counter for a component
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordAnalysisDuration records a collaborator call duration
func (m *Metrics) RecordAnalysisDuration(operation string, d time.Duration) {
	m.AnalysisDuration.WithLabelValues(operation).Observe(d.Seconds())
}
