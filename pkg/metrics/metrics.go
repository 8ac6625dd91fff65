// Package metrics exposes dashboard counters in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sudorandom/birth-stream/pkg/geodata"
	"github.com/sudorandom/birth-stream/pkg/sim"
)

const namespace = "birthstream"

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	Registry *prometheus.Registry

	EventsFired   *prometheus.CounterVec
	Frames        prometheus.Counter
	FeedClients   prometheus.Gauge
	FeedDropped   prometheus.Counter
	FeedMessages  *prometheus.CounterVec
	Tally         prometheus.Gauge
	DayPercent    prometheus.Gauge
	InsightErrors prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}
	m.EventsFired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_fired_total",
		Help:      "Simulated births by target country",
	}, []string{"country"})
	m.Frames = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_rendered_total",
		Help:      "Globe frames rendered",
	})
	m.FeedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "feed_clients",
		Help:      "Connected WebSocket feed clients",
	})
	m.FeedDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_clients_dropped_total",
		Help:      "Feed clients disconnected for falling behind",
	})
	m.FeedMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_messages_total",
		Help:      "Envelopes broadcast on the feed by type",
	}, []string{"type"})
	m.Tally = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tally_births_today",
		Help:      "Rate based birth estimate since local midnight",
	})
	m.DayPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "day_percent",
		Help:      "Share of the local day elapsed",
	})
	m.InsightErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "insight_errors_total",
		Help:      "Failed insight provider calls",
	})

	m.Registry.MustRegister(
		m.EventsFired, m.Frames, m.FeedClients, m.FeedDropped, m.FeedMessages,
		m.Tally, m.DayPercent, m.InsightErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveEvent counts one fired event.
func (m *Metrics) ObserveEvent(e sim.EventLogEntry) {
	m.EventsFired.WithLabelValues(e.CountryID).Inc()
}

// ObserveStats records a stats refresh.
func (m *Metrics) ObserveStats(s sim.Snapshot) {
	m.Tally.Set(float64(s.Tally))
	m.DayPercent.Set(float64(s.DayPercent))
}

// WatchScheduler exports the skipped tick count.
func (m *Metrics) WatchScheduler(s *sim.Scheduler) {
	m.Registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_skipped_total",
		Help:      "Scheduler ticks skipped because geo data was not ready",
	}, func() float64 { return float64(s.Skipped()) }))
}

// StateSource reports the geo data load state.
type StateSource interface {
	State() geodata.State
}

// WatchGeo exports the provider state as 0 idle, 1 loading, 2 ready, 3 failed.
func (m *Metrics) WatchGeo(src StateSource) {
	m.Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "geo_state",
		Help:      "Geo data state: 0 idle, 1 loading, 2 ready, 3 failed",
	}, func() float64 { return float64(src.State()) }))
}
