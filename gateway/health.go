package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bx-d/corerpc/registry"
)

// healthResponse is the always-present GET /health body: per-service
// booleans and the gateway's own uptime (spec §4.6, §6).
type healthResponse struct {
	Status   string          `json:"status"`
	Services map[string]bool `json:"services"`
	Uptime   float64         `json:"uptime"`
}

// HealthHandler reports each configured service's reachability — a
// service is healthy iff the registry currently lists at least one node
// for it — alongside the gateway process's own uptime.
func (g *Gateway) HealthHandler(w http.ResponseWriter, r *http.Request) {
	services := make(map[string]bool, len(g.proxies))
	allHealthy := true
	for name := range g.proxies {
		healthy := serviceHasNodes(g.registry, name)
		services[name] = healthy
		if !healthy {
			allHealthy = false
		}
	}

	status := "ok"
	if !allHealthy {
		status = "degraded"
	}

	body := healthResponse{
		Status:   status,
		Services: services,
		Uptime:   time.Since(g.startedAt).Seconds(),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func serviceHasNodes(reg registry.Registry, name string) bool {
	svcs, err := reg.GetService(name, "*")
	if err != nil {
		return false
	}
	for _, svc := range svcs {
		if len(svc.Nodes) > 0 {
			return true
		}
	}
	return false
}
