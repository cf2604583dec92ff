package handlers

import (
	"net/http"
	"runtime"
	"time"

	"video-overlay/internal/codec"
	"video-overlay/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status        string `json:"status"`
	Ready         bool   `json:"ready"`
	Version       string `json:"version"`
	Uptime        string `json:"uptime"`
	Engine        string `json:"engine"`
	EngineVersion string `json:"engineVersion,omitempty"`
	RuntimeState  string `json:"runtimeState"`
	RuntimeDetail string `json:"runtimeDetail,omitempty"`
	Phase         string `json:"phase"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	status := h.runtime.Status()

	response := HealthResponse{
		Ready:         status.Ready(),
		Version:       startup.Version,
		Uptime:        time.Since(h.startTime).Round(time.Second).String(),
		Engine:        h.runtime.Engine(),
		EngineVersion: h.runtime.EngineVersion(),
		RuntimeState:  string(status.State),
		RuntimeDetail: status.Detail,
		Phase:         string(h.session.State().Phase),
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		NumGoroutine:  runtime.NumGoroutine(),
	}

	code := http.StatusOK
	switch status.State {
	case codec.StateReady:
		response.Status = statusHealthy
	case codec.StateFailed:
		// The server keeps serving the page so the failure can be shown.
		response.Status = statusDegraded
	default:
		response.Status = statusStarting
		code = http.StatusServiceUnavailable
	}

	writeJSONStatus(w, code, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the codec runtime is ready
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.runtime.Status().Ready() {
		writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}
