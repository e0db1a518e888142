package handlers

import (
	"net/http"

	"mitabo/internal/startup"
)

// Health reports overall service health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// Livez reports process liveness. It never checks dependencies.
func (h *Handlers) Livez(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "alive"})
}

// Readyz reports whether the service can take traffic.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
		})
		return
	}
	writeJSON(w, map[string]string{"status": "ready"})
}

// Version reports build information.
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"version":   startup.Version,
		"commit":    startup.Commit,
		"buildTime": startup.BuildTime,
	})
}
