// Package metrics centralizes the process-global Prometheus collectors
// named in spec §6: request, client and pool collectors are declared
// here and Register adds them, and ObservePool sets the pool gauges from
// a Stats value. Nothing else in this module updates the request or
// client collectors or calls ObservePool. Register uses
// prometheus.DefaultRegisterer, exposed over HTTP by the
// gateway's built-in GET /metrics handler via promhttp.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corerpc",
		Subsystem: "dispatch",
		Name:      "requests_total",
		Help:      "Total requests dispatched, by service, endpoint, and status.",
	}, []string{"service", "endpoint", "status"})

	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "corerpc",
		Subsystem: "dispatch",
		Name:      "request_duration_seconds",
		Help:      "Request handling latency, by service and endpoint.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "endpoint"})

	ClientRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corerpc",
		Subsystem: "client",
		Name:      "retries_total",
		Help:      "Total retry attempts made by the client, by target address.",
	}, []string{"addr"})

	CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "corerpc",
		Subsystem: "client",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state by address: 0=closed, 1=half-open, 2=open.",
	}, []string{"addr"})

	PoolTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "corerpc",
		Subsystem: "pool",
		Name:      "connections_total",
		Help:      "Total tracked connections per pool address.",
	}, []string{"addr"})

	PoolIdle = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "corerpc",
		Subsystem: "pool",
		Name:      "connections_idle",
		Help:      "Idle connections per pool address.",
	}, []string{"addr"})

	PoolInFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "corerpc",
		Subsystem: "pool",
		Name:      "connections_in_flight",
		Help:      "In-flight (dialing) connections per pool address.",
	}, []string{"addr"})
)

// Register exports every collector above; safe to call more than once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			RequestDuration,
			ClientRetriesTotal,
			CircuitBreakerState,
			PoolTotal,
			PoolIdle,
			PoolInFlight,
		)
	})
}

// PoolStats mirrors pool.Stats plus the pool's address —
// declared locally so package metrics does not import package pool purely
// for a value type.
type PoolStats struct {
	Addr     string
	Total    int
	Idle     int
	InFlight int
}

// ObservePool updates the pool gauges from one Stats snapshot.
func ObservePool(s PoolStats) {
	PoolTotal.WithLabelValues(s.Addr).Set(float64(s.Total))
	PoolIdle.WithLabelValues(s.Addr).Set(float64(s.Idle))
	PoolInFlight.WithLabelValues(s.Addr).Set(float64(s.InFlight))
}
