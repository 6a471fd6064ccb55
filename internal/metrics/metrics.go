// Package metrics exposes auction operation counters and escrow gauges to
// Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements auction.Recorder on a private registry.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	activeBids prometheus.Gauge
	escrow     prometheus.Gauge
	requests   *prometheus.CounterVec
}

// New registers the auction collectors plus the Go runtime and process
// collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auction",
			Name:      "operations_total",
			Help:      "Auction operations by name and outcome (ok or error code)",
		}, []string{"op", "outcome"}),
		activeBids: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "auction",
			Name:      "active_bids",
			Help:      "Active bid count as last observed",
		}),
		escrow: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "auction",
			Name:      "escrow_balance_units",
			Help:      "Escrow balance in base units as last observed",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auction",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status",
		}, []string{"method", "status"}),
	}
	m.registry.MustRegister(
		m.operations, m.activeBids, m.escrow, m.requests,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Operation(op, outcome string) {
	m.operations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ActiveBids(n uint64) { m.activeBids.Set(float64(n)) }

func (m *Metrics) Escrow(balance uint64) { m.escrow.Set(float64(balance)) }

// Request counts one served HTTP request.
func (m *Metrics) Request(method string, status int) {
	m.requests.WithLabelValues(method, http.StatusText(status)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
