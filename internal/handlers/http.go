package handlers

import (
	"net/http"

	"github.com/astrafabric/monitor/internal/api"
)

// Version is reported by the health endpoint
var Version = "1.0.0"

// MonitorCounter reports how many resources are being polled
type MonitorCounter interface {
	MonitorCount() int
}

// HTTPHandler handles operational endpoints
type HTTPHandler struct {
	monitors       MonitorCounter
	metricsHandler http.Handler
}

// NewHTTPHandler creates a new HTTP handler. Both arguments may be nil.
func NewHTTPHandler(monitors MonitorCounter, metricsHandler http.Handler) *HTTPHandler {
	return &HTTPHandler{
		monitors:       monitors,
		metricsHandler: metricsHandler,
	}
}

// SetupRoutes configures the operational routes
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	if h.metricsHandler != nil {
		mux.Handle("GET /metrics", h.metricsHandler)
	}
}

// handleHealth returns a simple health check response
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := api.HealthResponse{Status: "ok", Version: Version}
	if h.monitors != nil {
		resp.Monitors = h.monitors.MonitorCount()
	}
	api.RespondJSON(w, http.StatusOK, resp)
}
