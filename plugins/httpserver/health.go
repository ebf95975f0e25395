package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/DeerHide/go-factory-utilities/status"
)

// healthResponse is the wire shape of the /sys endpoints: the aggregate
// verdict plus per-component detail grouped by category.
type healthResponse struct {
	Status     string                       `json:"status"`
	Components map[string]map[string]string `json:"components"`
}

// handleHealth reports liveness: 200 while the aggregate health is healthy,
// 503 otherwise.
func (p *Plugin) handleHealth(w http.ResponseWriter, _ *http.Request) {
	aggregate := p.registry.Aggregate()

	code := http.StatusOK
	if aggregate.Health != status.HealthHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, healthResponse{
		Status:     healthLabel(aggregate.Health),
		Components: componentDetail(p.registry, healthDimension),
	})
}

// handleReadiness reports whether the service should receive traffic: 200
// while the aggregate readiness is ready, 503 otherwise.
func (p *Plugin) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	aggregate := p.registry.Aggregate()

	code := http.StatusOK
	if aggregate.Readiness != status.ReadinessReady {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, healthResponse{
		Status:     readinessLabel(aggregate.Readiness),
		Components: componentDetail(p.registry, readinessDimension),
	})
}

type dimension func(status.Status) string

func healthDimension(s status.Status) string    { return healthLabel(s.Health) }
func readinessDimension(s status.Status) string { return readinessLabel(s.Readiness) }

func healthLabel(h status.Health) string {
	if h == status.HealthHealthy {
		return "healthy"
	}
	return "unhealthy"
}

func readinessLabel(r status.Readiness) string {
	if r == status.ReadinessReady {
		return "ready"
	}
	return "not_ready"
}

func componentDetail(registry *status.Registry, dim dimension) map[string]map[string]string {
	detail := make(map[string]map[string]string)
	for category, components := range registry.ByCategory() {
		group := make(map[string]string, len(components))
		for name, st := range components {
			group[name] = dim(st)
		}
		detail[string(category)] = group
	}
	return detail
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
