package api

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus represents the overall health status.
type HealthStatus struct {
	Status       string               `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp    time.Time            `json:"timestamp"`
	Uptime       int64                `json:"uptime_seconds"`
	Version      string               `json:"version,omitempty"`
	Dependencies map[string]DepHealth `json:"dependencies"`
}

// DepHealth represents the health of a dependency.
type DepHealth struct {
	Status  string `json:"status"` // "healthy", "unhealthy", "unknown"
	Message string `json:"message,omitempty"`
	Latency int64  `json:"latency_ms,omitempty"`
}

var startTime = time.Now()

type healthChecker interface {
	Health() error
}

// handleHealth handles GET /api/v1/health. The store is the only critical
// dependency; cache and event bus problems only degrade.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	deps := map[string]DepHealth{}
	status := "healthy"

	start := time.Now()
	if err := s.DB.Ping(ctx); err != nil {
		deps["database"] = DepHealth{Status: "unhealthy", Message: err.Error()}
		status = "unhealthy"
	} else {
		deps["database"] = DepHealth{Status: "healthy", Latency: time.Since(start).Milliseconds()}
	}

	if s.Cache.Enabled() {
		stats := s.Cache.GetStats()
		deps["cache"] = DepHealth{Status: "healthy", Message: stats.Backend}
	}

	if hc, ok := s.Bus.(healthChecker); ok {
		if err := hc.Health(); err != nil {
			deps["events"] = DepHealth{Status: "unhealthy", Message: err.Error()}
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			deps["events"] = DepHealth{Status: "healthy"}
		}
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	s.respondJSON(w, code, HealthStatus{
		Status:       status,
		Timestamp:    time.Now().UTC(),
		Uptime:       int64(time.Since(startTime).Seconds()),
		Version:      s.config.Version,
		Dependencies: deps,
	})
}
