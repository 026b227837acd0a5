package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// RuntimeSwitch is the global kill switch. config.Manager implements it.
type RuntimeSwitch interface {
	RuntimeEnabled() bool
	SetRuntimeEnabled(enabled bool)
}

type HealthHandler struct {
	config  ConfigSource
	runtime RuntimeSwitch
	logger  *slog.Logger
}

func NewHealthHandler(config ConfigSource, runtime RuntimeSwitch, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		config:  config,
		runtime: runtime,
		logger:  logger,
	}
}

type healthResponse struct {
	Status         string `json:"status"`
	Enabled        bool   `json:"enabled"`
	RuntimeEnabled bool   `json:"runtime_enabled"`
	Providers      int    `json:"providers"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg := h.config.Get()

	resp := healthResponse{
		Status:         "ok",
		Enabled:        cfg.Enabled,
		RuntimeEnabled: h.runtime.RuntimeEnabled(),
		Providers:      len(cfg.Providers),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to write health check response", "error", err)
	}
}
