package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	stageOutcomes *prometheus.CounterVec
	sourceErrors  *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	actions       *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		stageOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flipdesk_reversion_stage_outcomes_total",
				Help: "Reversion candidates by the stage that decided them and the reason code",
			},
			[]string{"stage", "reason"},
		),
		sourceErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flipdesk_source_errors_total",
				Help: "Failed fetches per data source",
			},
			[]string{"source"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flipdesk_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		actions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flipdesk_nba_actions",
				Help: "Size of the last next-best-action list",
			},
			[]string{"list"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flipdesk_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordStageOutcome counts one analyzed candidate.
func (r *Recorder) RecordStageOutcome(stage, reason string) {
	if reason == "" {
		reason = "accepted"
	}
	r.stageOutcomes.WithLabelValues(stage, reason).Inc()
}

// RecordSourceError counts a failed fetch from a data source.
func (r *Recorder) RecordSourceError(source string) {
	r.sourceErrors.WithLabelValues(source).Inc()
}

// RecordActions records queue and visible list sizes.
func (r *Recorder) RecordActions(queued, visible int) {
	r.actions.WithLabelValues("queue").Set(float64(queued))
	r.actions.WithLabelValues("visible").Set(float64(visible))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordStageOutcome(string, string) {}
func (Nop) RecordSourceError(string)          {}
func (Nop) RecordActions(int, int)            {}
func (Nop) RecordError(string)                {}
func (Nop) RecordLatency(string, float64)     {}
