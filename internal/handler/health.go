package handler

import (
	"encoding/json"
	"net/http"
	"time"
)

// ReadinessSource reports whether the arrival feed has produced a usable
// snapshot yet.
type ReadinessSource interface {
	IsReady() bool
}

type HealthHandler struct {
	readiness ReadinessSource
}

func NewHealthHandler(readiness ReadinessSource) *HealthHandler {
	return &HealthHandler{readiness: readiness}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready      bool      `json:"ready"`
	ServerTime time.Time `json:"serverTime"`
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ready := h.readiness.IsReady()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ReadyResponse{
		Ready:      ready,
		ServerTime: time.Now(),
	})
}
