package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TrackedConversationsCount prometheus.Gauge
	MissedConversationsCount  *prometheus.GaugeVec
	SLAEvaluations            *prometheus.CounterVec
	BreachEventsPublished     *prometheus.CounterVec
	BreachEventsProcessed     *prometheus.CounterVec
	LeaderChanges             prometheus.Counter
	BreachScanDuration        prometheus.Histogram
	RedisOperationDuration    *prometheus.HistogramVec
	LeaderElectionDuration    prometheus.Histogram
	SummaryRequests           *prometheus.CounterVec
}

// NewMetrics registers collectors with the default registry
func NewMetrics() *Metrics {
	return NewMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer registers collectors with reg. Tests pass a fresh
// registry so constructors can run more than once per process.
func NewMetricsWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TrackedConversationsCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sla_tracked_conversations_count",
			Help: "Current number of conversations with SLA state tracked",
		}),
		MissedConversationsCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sla_missed_conversations_count",
			Help: "Conversations whose most urgent SLA is missed, as of the last scan",
		}, []string{"type"}),
		SLAEvaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_evaluations_total",
			Help: "Total number of SLA status evaluations",
		}, []string{"type", "outcome"}),
		BreachEventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_breach_events_published_total",
			Help: "Total number of SLA breach events published to the stream",
		}, []string{"type"}),
		BreachEventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sla_breach_events_processed_total",
			Help: "Total number of SLA breach events processed by consumers",
		}, []string{"status"}),
		LeaderChanges: factory.NewCounter(prometheus.CounterOpts{
			Name: "sla_leader_changes_total",
			Help: "Total number of leader changes",
		}),
		BreachScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sla_breach_scan_duration_seconds",
			Help:    "Time taken to scan tracked conversations for breaches",
			Buckets: prometheus.DefBuckets,
		}),
		RedisOperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Time taken for Redis operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		LeaderElectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "leader_election_duration_seconds",
			Help:    "Time taken for leader election operations",
			Buckets: prometheus.DefBuckets,
		}),
		SummaryRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conversation_summary_requests_total",
			Help: "Total number of conversation summary requests",
		}, []string{"source"}),
	}
}

// RecordEvaluation counts one evaluation result
func (m *Metrics) RecordEvaluation(slaType string, missed bool) {
	outcome := "upcoming"
	switch {
	case slaType == "":
		slaType = "none"
		outcome = "none"
	case missed:
		outcome = "missed"
	}
	m.SLAEvaluations.WithLabelValues(slaType, outcome).Inc()
}
