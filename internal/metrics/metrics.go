// Package metrics exposes Prometheus counters for answers, model failures
// and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "interview"

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	AnswersTotal   *prometheus.CounterVec
	TurnsRecorded  *prometheus.CounterVec
	GatewayErrors  *prometheus.CounterVec
	AnswerDuration *prometheus.HistogramVec
	Rejections     *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	ActiveStreams  prometheus.Gauge
}

// New creates and registers the collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		AnswersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "answers",
				Name:      "total",
				Help:      "Answered questions by source (graph or model)",
			},
			[]string{"mode"},
		),
		TurnsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "answers",
				Name:      "turns_recorded_total",
				Help:      "Answers recorded in session history",
			},
			[]string{"mode"},
		),
		GatewayErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "errors_total",
				Help:      "Model calls that failed, by error kind",
			},
			[]string{"kind"},
		),
		AnswerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "answers",
				Name:      "duration_seconds",
				Help:      "Time to produce a complete answer",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"mode"},
		),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "questions",
				Name:      "rejected_total",
				Help:      "Questions rejected before answering",
			},
			[]string{"reason"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		ActiveStreams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "active_streams",
				Help:      "Answer streams currently open",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.AnswersTotal,
		m.TurnsRecorded,
		m.GatewayErrors,
		m.AnswerDuration,
		m.Rejections,
		m.HTTPRequests,
		m.HTTPDuration,
		m.ActiveStreams,
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAnswer counts an answer and its latency
func (m *Metrics) RecordAnswer(mode string, recorded bool, duration time.Duration) {
	m.AnswersTotal.WithLabelValues(mode).Inc()
	if recorded {
		m.TurnsRecorded.WithLabelValues(mode).Inc()
	}
	m.AnswerDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordGatewayError counts a failed model call
func (m *Metrics) RecordGatewayError(kind string) {
	m.GatewayErrors.WithLabelValues(kind).Inc()
}

// RecordRejection counts a question refused before answering
func (m *Metrics) RecordRejection(reason string) {
	m.Rejections.WithLabelValues(reason).Inc()
}

// RecordRequest counts an HTTP request
func (m *Metrics) RecordRequest(route string, code int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(duration.Seconds())
}
