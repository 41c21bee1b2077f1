package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters for the synchronisation engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	pollCycles   *prometheus.CounterVec
	pollFailures *prometheus.CounterVec
	pushEvents   *prometheus.CounterVec
	writes       *prometheus.CounterVec
	subscribers  prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		pollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giraiot",
			Name:      "poll_cycles_total",
			Help:      "Completed poll cycles.",
		}, []string{"result"}),
		pollFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giraiot",
			Name:      "poll_function_failures_total",
			Help:      "Per-function value fetch failures during polling.",
		}, []string{"function"}),
		pushEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giraiot",
			Name:      "push_events_total",
			Help:      "Push callback events by outcome.",
		}, []string{"outcome"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giraiot",
			Name:      "value_writes_total",
			Help:      "Value writes sent to the device.",
		}, []string{"result"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "giraiot",
			Name:      "store_subscribers",
			Help:      "Active state store subscribers.",
		}),
	}

	reg.MustRegister(m.pollCycles, m.pollFailures, m.pushEvents, m.writes, m.subscribers)
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) PollCycle(failed bool) {
	if m == nil {
		return
	}
	result := "ok"
	if failed {
		result = "partial"
	}
	m.pollCycles.WithLabelValues(result).Inc()
}

func (m *Metrics) PollFailure(functionID string) {
	if m == nil {
		return
	}
	m.pollFailures.WithLabelValues(functionID).Inc()
}

// PushEvent counts a push event; outcome is "applied", "dropped" or "invalid".
func (m *Metrics) PushEvent(outcome string) {
	if m == nil {
		return
	}
	m.pushEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Write(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.writes.WithLabelValues(result).Inc()
}

func (m *Metrics) SubscriberDelta(delta int) {
	if m == nil {
		return
	}
	m.subscribers.Add(float64(delta))
}
