// Package metrics holds the Prometheus collectors of the reservation
// engine.  A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	creates       *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	reaperExpired prometheus.Counter
	reaperPass    prometheus.Histogram
	storeRetries  *prometheus.CounterVec
}

// New registers every collector, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		creates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_create_total",
			Help: "Reservation create attempts by result code",
		}, []string{"result"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_transition_total",
			Help: "Status transitions by action and result code",
		}, []string{"action", "result"}),
		reaperExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "reaper_expired_total",
			Help: "Pending reservations expired by the reaper",
		}),
		reaperPass: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "reaper_pass_duration_seconds",
			Help:    "Duration of one reaper pass",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		storeRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "store_retry_total",
			Help: "Retried storage operations",
		}, []string{"op"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) ObserveCreate(result string) {
	if m == nil {
		return
	}
	m.creates.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveTransition(action, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, result).Inc()
}

func (m *Metrics) ObserveReaperPass(expired int, took time.Duration) {
	if m == nil {
		return
	}
	m.reaperExpired.Add(float64(expired))
	m.reaperPass.Observe(took.Seconds())
}

// StoreRetry matches repository.RetryPolicy.OnRetry.
func (m *Metrics) StoreRetry(op string) {
	if m == nil {
		return
	}
	m.storeRetries.WithLabelValues(op).Inc()
}
