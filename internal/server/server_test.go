package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/byok-router/internal/config"
	"github.com/Davincible/byok-router/internal/gateway"
	"github.com/Davincible/byok-router/internal/metrics"
	"github.com/Davincible/byok-router/internal/middleware"
	"github.com/Davincible/byok-router/internal/providers"
	"github.com/Davincible/byok-router/internal/wire"
)

type testEnv struct {
	manager *config.Manager
	gateway *httptest.Server
}

// newTestEnv wires a full server in front of a fake provider and a fake official
// backend, both served by the same upstream.
func newTestEnv(t *testing.T, apiKey string) *testEnv {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/openai/chat/completions":
			io.WriteString(w, `{"choices":[{"message":{"content":"from provider"}}]}`)
		default:
			io.WriteString(w, `{"from":"official","path":"`+r.URL.Path+`"}`)
		}
	}))
	t.Cleanup(upstream.Close)

	cfg := config.Default()
	cfg.Server.APIKey = apiKey
	cfg.Official.CompletionURL = upstream.URL + "/"
	cfg.Providers = []config.Provider{{ID: "p1", Type: config.ProviderOpenAICompatible, BaseURL: upstream.URL + "/openai", APIKey: "k", Models: []string{"m"}}}

	manager := config.NewManagerForFile(filepath.Join(t.TempDir(), "config.yaml"))
	manager.Store(cfg)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := wire.NewClient(nil, logger)
	registry := providers.NewRegistry()
	registry.Initialize(client, logger)

	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	gw := gateway.New(manager, registry, client, logger, gateway.WithMetrics(rec))

	srv := httptest.NewServer(New(manager, gw, rec, reg, logger).Handler())
	t.Cleanup(srv.Close)

	return &testEnv{manager: manager, gateway: srv}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) (int, string) {
	t.Helper()

	req, err := http.NewRequest(method, e.gateway.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestServer_Routes(t *testing.T) {
	env := newTestEnv(t, "")

	status, body := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"status":"ok"`)

	status, body = env.do(t, http.MethodPost, "/chat", `{"message":"hi"}`, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"text":"from provider"`)

	status, body = env.do(t, http.MethodPost, "/record-user-events", `{}`, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{}`, body)

	status, body = env.do(t, http.MethodPost, "/find-missing", `{}`, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"from":"official"`)

	status, body = env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "byok_route_decisions_total")
	assert.Contains(t, body, "byok_http_requests_total")
}

func TestServer_RuntimeSwitch(t *testing.T) {
	env := newTestEnv(t, "")

	status, _ := env.do(t, http.MethodPost, "/admin/runtime", `{"enabled":false}`, nil)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, env.manager.RuntimeEnabled())

	status, body := env.do(t, http.MethodPost, "/chat", `{"message":"hi"}`, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"from":"official"`)
	assert.Contains(t, body, `"path":"/chat"`)

	status, body = env.do(t, http.MethodGet, "/admin/runtime", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"enabled":false}`, body)
}

func TestServer_Auth(t *testing.T) {
	env := newTestEnv(t, "gw-key")

	status, _ := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status, "health skips auth")

	status, _ = env.do(t, http.MethodPost, "/chat", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, http.MethodPost, "/admin/runtime", `{"enabled":false}`, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.True(t, env.manager.RuntimeEnabled())

	status, _ = env.do(t, http.MethodPost, "/chat", `{}`, map[string]string{middleware.APIKeyHeader: "gw-key"})
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := env.do(t, http.MethodGet, "/metrics", "", map[string]string{middleware.APIKeyHeader: "gw-key"})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "byok_route_decisions_total")
}

func TestServer_StartStops(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Port = freePort(t)

	manager := config.NewManagerForFile(filepath.Join(t.TempDir(), "config.yaml"))
	manager.Store(cfg)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(manager, gateway.New(manager, providers.NewRegistry(), nil, logger), nil, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port) + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
