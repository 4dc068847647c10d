// Package metrics exposes daemon counters and gauges in the Prometheus text
// format. Every Metrics has its own registry, so tests can build as many as
// they like.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc/codes"

	"go.klb.dev/pastabox/internal/app"
	"go.klb.dev/pastabox/internal/poller"
)

const namespace = "pastabox"

// StatusSource is read at scrape time for the gauges. *app.App satisfies it.
type StatusSource interface {
	Status() app.Status
}

// Metrics holds the daemon's collectors.
type Metrics struct {
	registry *prometheus.Registry

	polls *prometheus.CounterVec
	rpcs  *prometheus.CounterVec
}

// New registers the counters. Call TrackStatus to add the gauges.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_total",
				Help:      "Clipboard poll cycles by outcome.",
			},
			[]string{"outcome"},
		),
		rpcs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpcs_total",
				Help:      "Command interface calls by method and status code.",
			},
			[]string{"method", "code"},
		),
	}
	m.registry.MustRegister(m.polls, m.rpcs, collectors.NewGoCollector())
	return m
}

// TrackStatus registers gauges that read src on every scrape. Call it once.
func (m *Metrics) TrackStatus(src StatusSource) {
	snippets := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "snippets",
		Help:      "Snippets currently in the history.",
	}, func() float64 { return float64(src.Status().Snippets) })

	autoCapture := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "auto_capture",
		Help:      "1 when clipboard auto-capture is on.",
	}, func() float64 {
		if src.Status().AutoCapture {
			return 1
		}
		return 0
	})

	watchers := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "watchers",
		Help:      "Connected change-event watchers.",
	}, func() float64 { return float64(src.Status().Watchers) })

	m.registry.MustRegister(snippets, autoCapture, watchers)
}

// ObservePoll counts one poll cycle.
func (m *Metrics) ObservePoll(o poller.Outcome) {
	m.polls.WithLabelValues(o.String()).Inc()
}

// ObserveRPC counts one command interface call.
func (m *Metrics) ObserveRPC(method string, code codes.Code) {
	m.rpcs.WithLabelValues(method, code.String()).Inc()
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
