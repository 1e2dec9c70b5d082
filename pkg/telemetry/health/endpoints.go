package health

import (
	"encoding/json"
	"net/http"
)

// LivenessHandler serves GET /healthz.
func (c *Checker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, c.CheckLiveness(r.Context()), http.StatusOK)
	})
}

// ReadinessHandler serves GET /readyz. Unhealthy components yield 503.
func (c *Checker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := c.CheckReadiness(r.Context())
		code := http.StatusOK
		if status.Status != "ready" {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, status, code)
	})
}

func writeStatus(w http.ResponseWriter, status Status, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}
