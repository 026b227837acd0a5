package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Davincible/byok-router/internal/apierr"
	"github.com/Davincible/byok-router/internal/config"
	"github.com/Davincible/byok-router/internal/endpoint"
	"github.com/Davincible/byok-router/internal/gateway"
)

const (
	// TimeoutHeader overrides timeouts.upstream_ms for one call, in milliseconds.
	TimeoutHeader = "X-Byok-Timeout-Ms"

	// StatusClientClosedRequest is written when the client went away mid-call.
	StatusClientClosedRequest = 499

	maxBodyBytes = 32 << 20
)

// Gateway is the part of gateway.Gateway the proxy needs.
type Gateway interface {
	HandleCall(ctx context.Context, in gateway.Call) (any, bool, error)
	HandleCallStream(ctx context.Context, in gateway.Call) (gateway.ResultStream, bool, error)
}

// ConfigSource hands out the current config snapshot.
type ConfigSource interface {
	Get() *config.Config
}

// ProxyHandler serves intercepted endpoint calls through the gateway and forwards
// everything the gateway does not handle to the official backend.
type ProxyHandler struct {
	gateway Gateway
	config  ConfigSource
	logger  *slog.Logger
}

func NewProxyHandler(gw Gateway, config ConfigSource, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		gateway: gw,
		config:  config,
		logger:  logger,
	}
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !h.mayHandle(r.URL.Path) {
		h.forward(w, r, nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.httpError(w, http.StatusRequestEntityTooLarge, "request body exceeds %d bytes", tooLarge.Limit)
			return
		}
		h.httpError(w, http.StatusBadRequest, "failed to read request body: %v", err)
		return
	}

	call := gateway.Call{
		Endpoint:      r.URL.Path,
		Body:          body,
		Timeout:       requestTimeout(r),
		UpstreamToken: bearerToken(r),
	}

	spec, known := endpoint.Lookup(endpoint.Normalize(r.URL.Path))
	if known && spec.Kind == endpoint.KindStream {
		h.serveStream(w, r, call, body)
		return
	}

	result, handled, err := h.gateway.HandleCall(r.Context(), call)
	if !handled {
		h.forward(w, r, body)
		return
	}
	if err != nil {
		h.writeError(w, call.Endpoint, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// mayHandle reports whether the gateway could answer a call to path. Other
// requests are forwarded with their body unread.
func (h *ProxyHandler) mayHandle(path string) bool {
	ep := endpoint.Normalize(path)
	if ep == "" {
		return false
	}
	if _, ok := endpoint.Lookup(ep); ok {
		return true
	}
	cfg := h.config.Get()
	return cfg != nil && cfg.TelemetryDisabled(ep)
}

// serveStream writes one JSON document per line and flushes after each.
func (h *ProxyHandler) serveStream(w http.ResponseWriter, r *http.Request, call gateway.Call, body []byte) {
	stream, handled, err := h.gateway.HandleCallStream(r.Context(), call)
	if !handled {
		h.forward(w, r, body)
		return
	}
	if err != nil {
		h.writeError(w, call.Endpoint, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flushResponse(w)

	enc := json.NewEncoder(w)
	var chunks int
	for {
		item, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Headers are gone; the client sees a truncated stream.
			h.logger.Error("Stream failed", "endpoint", call.Endpoint, "chunks", chunks, "error", err)
			return
		}

		if err := enc.Encode(item); err != nil {
			h.logger.Warn("Failed to write stream chunk", "endpoint", call.Endpoint, "error", err)
			return
		}
		flushResponse(w)
		chunks++
	}

	h.logger.Info("Completed streaming response", "endpoint", call.Endpoint, "chunks", chunks)
}

// forward reverse-proxies r to the official backend. body replaces the already
// consumed request body when non-nil.
func (h *ProxyHandler) forward(w http.ResponseWriter, r *http.Request, body []byte) {
	target, err := url.Parse(strings.TrimSpace(h.config.Get().Official.CompletionURL))
	if err != nil || target.Scheme == "" || target.Host == "" {
		h.httpError(w, http.StatusBadGateway, "invalid official completion_url: %v", err)
		return
	}

	if body != nil {
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
	}

	h.logger.Debug("Forwarding to official backend", "method", r.Method, "path", r.URL.Path, "target", target.Host)

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = target.Host
			pr.Out.Header.Del(TimeoutHeader)
			pr.Out.Header.Del("X-API-Key")
		},
		FlushInterval: -1,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			h.httpError(w, http.StatusBadGateway, "official backend request failed: %v", err)
		},
	}
	proxy.ServeHTTP(w, r)
}

func (h *ProxyHandler) writeError(w http.ResponseWriter, ep string, err error) {
	status := StatusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Call failed", "endpoint", ep, "status", status, "error", err)
	} else {
		h.logger.Warn("Call rejected", "endpoint", ep, "status", status, "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *ProxyHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.httpError(w, http.StatusInternalServerError, "failed to encode response: %v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("Failed to write response", "error", err)
	}
}

func (h *ProxyHandler) httpError(w http.ResponseWriter, code int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	h.logger.Error("HTTP Error", "code", code, "message", msg)
	http.Error(w, msg, code)
}

// StatusForError maps the gateway error taxonomy onto HTTP status codes.
func StatusForError(err error) int {
	switch {
	case apierr.IsRoutingDisabled(err):
		return http.StatusForbidden
	case apierr.IsRequest(err):
		return http.StatusBadRequest
	case apierr.IsConfiguration(err):
		return http.StatusInternalServerError
	case apierr.IsTimeout(err):
		return http.StatusGatewayTimeout
	case apierr.IsCancelled(err):
		return StatusClientClosedRequest
	case apierr.IsUpstream(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func requestTimeout(r *http.Request) time.Duration {
	ms, err := strconv.Atoi(strings.TrimSpace(r.Header.Get(TimeoutHeader)))
	if err != nil || ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func flushResponse(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
