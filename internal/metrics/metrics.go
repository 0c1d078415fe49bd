package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of one simulation run. It
// implements stats.Observer and runner.DepthTracker.
type Metrics struct {
	registry *prometheus.Registry

	AdmittedTotal  *prometheus.CounterVec
	DroppedTotal   *prometheus.CounterVec
	ProcessedTotal *prometheus.CounterVec
	ServiceSeconds *prometheus.HistogramVec
	IdleSeconds    *prometheus.CounterVec
	AbandonedTotal *prometheus.CounterVec
	SojournSeconds prometheus.Histogram
}

// New creates collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		AdmittedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queuelab_stage_admitted_total",
				Help: "Requests admitted into a stage buffer",
			},
			[]string{"stage"},
		),
		DroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queuelab_stage_dropped_total",
				Help: "Requests rejected at a stage admission gate",
			},
			[]string{"stage"},
		),
		ProcessedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queuelab_channel_processed_total",
				Help: "Requests serviced by a channel",
			},
			[]string{"stage", "channel"},
		),
		ServiceSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "queuelab_stage_service_seconds",
				Help:    "Measured service time per request",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"stage"},
		),
		IdleSeconds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queuelab_channel_idle_seconds_total",
				Help: "Time a channel spent waiting for work",
			},
			[]string{"stage", "channel"},
		),
		AbandonedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queuelab_stage_abandoned_total",
				Help: "Requests whose service was cut short by shutdown",
			},
			[]string{"stage"},
		),
		SojournSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "queuelab_sojourn_seconds",
				Help:    "End-to-end time of requests that left the last stage",
				Buckets: prometheus.ExponentialBuckets(.005, 2, 14),
			},
		),
	}
}

// Registry returns the private registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TrackDepth registers a gauge reading the current depth of a stage buffer.
func (m *Metrics) TrackDepth(stage int, depth func() int) error {
	g := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        "queuelab_stage_buffer_depth",
			Help:        "Requests waiting in a stage buffer",
			ConstLabels: prometheus.Labels{"stage": label(stage)},
		},
		func() float64 { return float64(depth()) },
	)
	if err := m.registry.Register(g); err != nil {
		return fmt.Errorf("register depth gauge: %w", err)
	}
	return nil
}

func (m *Metrics) Admitted(stage int) {
	m.AdmittedTotal.WithLabelValues(label(stage)).Inc()
}

func (m *Metrics) Dropped(stage int) {
	m.DroppedTotal.WithLabelValues(label(stage)).Inc()
}

func (m *Metrics) Processed(stage, channel int, d time.Duration) {
	m.ProcessedTotal.WithLabelValues(label(stage), label(channel)).Inc()
	m.ServiceSeconds.WithLabelValues(label(stage)).Observe(d.Seconds())
}

func (m *Metrics) Idle(stage, channel int, d time.Duration) {
	m.IdleSeconds.WithLabelValues(label(stage), label(channel)).Add(d.Seconds())
}

func (m *Metrics) Abandoned(stage int) {
	m.AbandonedTotal.WithLabelValues(label(stage)).Inc()
}

func (m *Metrics) Sojourn(d time.Duration) {
	m.SojournSeconds.Observe(d.Seconds())
}

func label(i int) string {
	return strconv.Itoa(i)
}
