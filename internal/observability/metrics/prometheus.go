// Package metrics provides Prometheus metrics for the HL7 gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	MessagesValidated   *prometheus.CounterVec
	ValidationIssues    *prometheus.CounterVec
	Conversions         *prometheus.CounterVec
	ConversionDuration  *prometheus.HistogramVec
	ResourcesProduced   prometheus.Counter
	SegmentsSynthesized prometheus.Counter
	EventsPublished     prometheus.Counter
	EventsFailed        prometheus.Counter
	BatchSize           prometheus.Histogram
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		MessagesValidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hl7_messages_validated_total",
			Help: "Total HL7 messages validated, by resulting status",
		}, []string{"status"}),
		ValidationIssues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hl7_validation_issues_total",
			Help: "Total validation issues raised, by severity",
		}, []string{"severity"}),
		Conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conversions_total",
			Help: "Total conversions, by direction and outcome",
		}, []string{"direction", "outcome"}),
		ConversionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "conversion_duration_seconds",
			Help:    "Conversion duration, by direction",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"direction"}),
		ResourcesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fhir_resources_produced_total",
			Help: "Total FHIR resources produced from HL7 messages",
		}),
		SegmentsSynthesized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hl7_segments_synthesized_total",
			Help: "Total HL7 segments synthesized from FHIR bundles",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total events published to the broker",
		}),
		EventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "events_failed_total",
			Help: "Total event publish failures",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "batch_convert_size",
			Help:    "Number of bundles per batch conversion request",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),
	}

	prometheus.MustRegister(
		m.MessagesValidated,
		m.ValidationIssues,
		m.Conversions,
		m.ConversionDuration,
		m.ResourcesProduced,
		m.SegmentsSynthesized,
		m.EventsPublished,
		m.EventsFailed,
		m.BatchSize,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
