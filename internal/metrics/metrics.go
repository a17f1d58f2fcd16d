// Package metrics provides Prometheus metrics for the voice to issue pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voice2issue"

// Metrics holds all Prometheus metrics of the application.
type Metrics struct {
	// Publication metrics
	Publications *prometheus.CounterVec

	// Extraction metrics
	Extractions        *prometheus.CounterVec
	ExtractionFailures prometheus.Counter

	// Transcript metrics
	TranscriptRestarts *prometheus.CounterVec
	RecognitionEvents  *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
}

// New creates the metrics and registers them with reg. A nil reg registers
// with the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Publications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publications_total",
			Help:      "Total number of issue publications by outcome",
		}, []string{"outcome"}),

		Extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Total number of issue drafts by source",
		}, []string{"source"}),
		ExtractionFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_call_failures_total",
			Help:      "Total number of failed language model calls",
		}),

		TranscriptRestarts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_restarts_total",
			Help:      "Total number of automatic recognition restarts by reason",
		}, []string{"reason"}),
		RecognitionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_events_total",
			Help:      "Total number of recognition stream events by kind",
		}, []string{"kind"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transcript_sessions_active",
			Help:      "Number of open transcript sessions",
		}),
	}
}

// Publication counts a publication outcome.
func (m *Metrics) Publication(outcome string) {
	m.Publications.WithLabelValues(outcome).Inc()
}

// Extraction counts a produced draft.
func (m *Metrics) Extraction(source string) {
	m.Extractions.WithLabelValues(source).Inc()
}

// ExtractionFailure counts a failed model call.
func (m *Metrics) ExtractionFailure() {
	m.ExtractionFailures.Inc()
}

// Restart counts an automatic recognition restart.
func (m *Metrics) Restart(reason string) {
	m.TranscriptRestarts.WithLabelValues(reason).Inc()
}

// RecognitionEvent counts a recognition stream event.
func (m *Metrics) RecognitionEvent(kind string) {
	m.RecognitionEvents.WithLabelValues(kind).Inc()
}
