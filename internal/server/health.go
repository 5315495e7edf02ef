package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type HealthResponse struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	Version       string    `json:"version"`
	Model         string    `json:"model"`
	RecordCount   int64     `json:"record_count"`
	UptimeSeconds float64   `json:"uptime_seconds"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.service.Health(r.Context())
	if err != nil {
		http.Error(w, "health check failed", http.StatusServiceUnavailable)
		return
	}

	resp := HealthResponse{
		Status:        health.Status,
		Timestamp:     time.Now(),
		Version:       health.Version,
		Model:         health.Model,
		RecordCount:   health.RecordCount,
		UptimeSeconds: health.UptimeSeconds,
	}

	w.Header().Set("Content-Type", "application/json")
	statusCode := http.StatusOK
	if resp.Status != "ok" {
		statusCode = http.StatusServiceUnavailable
	}
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

func (h *Handler) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	health, err := h.service.Health(r.Context())
	if err != nil || health.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Not Ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Ready"))
}
