package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the daemon's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	scanRounds        prometheus.Counter
	scanStartFailures prometheus.Counter
	ingest            *prometheus.CounterVec
	networksVisible   prometheus.Gauge
	connectAttempts   *prometheus.CounterVec
	frameDuration     prometheus.Histogram
	droppedEvents     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scanRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "patroscan",
			Name:      "scan_rounds_total",
			Help:      "Completed and ranked scan rounds.",
		}),
		scanStartFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "patroscan",
			Name:      "scan_start_failures_total",
			Help:      "Scan rounds the radio refused to start.",
		}),
		ingest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patroscan",
			Name:      "discoveries_total",
			Help:      "Network sightings by ingest outcome.",
		}, []string{"result"}),
		networksVisible: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "patroscan",
			Name:      "networks_visible",
			Help:      "Networks in the list after the last ranked round.",
		}),
		connectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patroscan",
			Name:      "connect_attempts_total",
			Help:      "Connect requests by outcome.",
		}, []string{"result"}),
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "patroscan",
			Name:      "frame_render_seconds",
			Help:      "Time to lay out and present one menu frame.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
		droppedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patroscan",
			Name:      "dropped_events_total",
			Help:      "Events or broadcasts dropped because a queue was full.",
		}, []string{"queue"}),
	}
	m.registry.MustRegister(
		m.scanRounds,
		m.scanStartFailures,
		m.ingest,
		m.networksVisible,
		m.connectAttempts,
		m.frameDuration,
		m.droppedEvents,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveEvent counts events that matter before they are reduced.
func (m *Metrics) ObserveEvent(e Event) {
	if te, ok := e.(TimedEvent); ok {
		e = te.Event
	}
	switch e.(type) {
	case ScanStartFailed:
		m.scanStartFailures.Inc()
	}
}

// ObserveResult counts what a reducer step did.
func (m *Metrics) ObserveResult(rr ReduceResult) {
	if rr.Ingested {
		m.ingest.WithLabelValues(rr.Ingest.String()).Inc()
	}
	for _, b := range rr.Broadcasts {
		switch ev := b.(type) {
		case BroadcastRoundCompleted:
			m.scanRounds.Inc()
			m.networksVisible.Set(float64(ev.Networks))
		case BroadcastConnectResult:
			result := "ok"
			if !ev.OK {
				result = "error"
			}
			m.connectAttempts.WithLabelValues(result).Inc()
		}
	}
}

func (m *Metrics) ObserveFrame(seconds float64) { m.frameDuration.Observe(seconds) }

func (m *Metrics) Dropped(queue string) { m.droppedEvents.WithLabelValues(queue).Inc() }
