package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// RuntimeHandler reads and flips the runtime kill switch. When it is off every
// call goes to the official backend regardless of the config.
type RuntimeHandler struct {
	runtime RuntimeSwitch
	logger  *slog.Logger
}

func NewRuntimeHandler(runtime RuntimeSwitch, logger *slog.Logger) *RuntimeHandler {
	return &RuntimeHandler{runtime: runtime, logger: logger}
}

type runtimeState struct {
	Enabled *bool `json:"enabled"`
}

func (h *RuntimeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost, http.MethodPut:
		var req runtimeState
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			http.Error(w, `body must be {"enabled": true|false}`, http.StatusBadRequest)
			return
		}

		prev := h.runtime.RuntimeEnabled()
		h.runtime.SetRuntimeEnabled(*req.Enabled)
		if prev != *req.Enabled {
			h.logger.Warn("Runtime switch changed", "enabled", *req.Enabled, "remote_addr", r.RemoteAddr)
		}
	default:
		w.Header().Set("Allow", "GET, POST, PUT")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	enabled := h.runtime.RuntimeEnabled()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(runtimeState{Enabled: &enabled}); err != nil {
		h.logger.Error("Failed to write runtime response", "error", err)
	}
}
