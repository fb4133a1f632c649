// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes the interceptor's counters over Prometheus,
// served on a small gorilla/mux router alongside a liveness endpoint. This
// mirrors flywall's own api server wiring (gorilla/mux + promhttp) adapted
// to the handful of counters this loop actually produces.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gorilla/mux"
)

// Metrics implements capture.Recorder. It owns a private registry rather
// than registering against the global default, so multiple instances (one
// per test, say) never collide on metric names.
type Metrics struct {
	registry *prometheus.Registry

	resets         prometheus.Counter
	monitors       prometheus.Counter
	ignores        prometheus.Counter
	decodeErrors   prometheus.Counter
	dnsParseErrors prometheus.Counter
	sendErrors     prometheus.Counter
	learnerSize    prometheus.Gauge
}

// New builds and registers the interceptor's counters against a fresh
// registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interceptor_connections_reset_total",
			Help: "TCP connections terminated by an injected RST.",
		}),
		monitors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interceptor_connections_monitored_total",
			Help: "TCP connections matched a Monitor rule.",
		}),
		ignores: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interceptor_connections_ignored_total",
			Help: "TCP connections matched no rule, or an explicit Ignore rule.",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interceptor_decode_errors_total",
			Help: "Frames dropped because they failed TCP/IP/Ethernet decoding.",
		}),
		dnsParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interceptor_dns_parse_errors_total",
			Help: "UDP/53 frames that failed DNS message parsing.",
		}),
		sendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interceptor_send_errors_total",
			Help: "Forged RST frames that failed to transmit.",
		}),
		learnerSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "interceptor_learner_entries",
			Help: "Number of IP -> hostname entries currently held by the DNS learner.",
		}),
	}
	m.registry.MustRegister(m.resets, m.monitors, m.ignores, m.decodeErrors, m.dnsParseErrors, m.sendErrors, m.learnerSize)
	return m
}

func (m *Metrics) Reset()            { m.resets.Inc() }
func (m *Metrics) Monitor()          { m.monitors.Inc() }
func (m *Metrics) Ignore()           { m.ignores.Inc() }
func (m *Metrics) DecodeError()      { m.decodeErrors.Inc() }
func (m *Metrics) DNSParseError()    { m.dnsParseErrors.Inc() }
func (m *Metrics) SendError()        { m.sendErrors.Inc() }
func (m *Metrics) LearnerSize(n int) { m.learnerSize.Set(float64(n)) }

// Router builds the /metrics + /healthz mux used by the observability HTTP
// listener.
func (m *Metrics) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	return r
}
