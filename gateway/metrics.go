package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler serves the process's Prometheus exposition, registered
// by the metrics package against prometheus.DefaultRegisterer.
func (g *Gateway) MetricsHandler() http.Handler {
	return promhttp.Handler()
}
