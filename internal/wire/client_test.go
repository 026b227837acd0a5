package wire

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/byok-router/internal/apierr"
)

func newRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := NewJSONRequest(context.Background(), url, map[string]any{"ping": true})
	require.NoError(t, err)
	return req
}

func TestClient_DecodesCompressedBodies(t *testing.T) {
	payload := `{"ok":true}`

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write([]byte(payload))
	gw.Close()

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	bw.Write([]byte(payload))
	bw.Close()

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{name: "identity", body: []byte(payload)},
		{name: "gzip", encoding: "gzip", body: gz.Bytes()},
		{name: "brotli", encoding: "br", body: br.Bytes()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "gzip, br", r.Header.Get("Accept-Encoding"))
				if tt.encoding != "" {
					w.Header().Set("Content-Encoding", tt.encoding)
				}
				w.Write(tt.body)
			}))
			defer server.Close()

			client := NewClient(server.Client(), nil)
			resp, err := client.Do(context.Background(), newRequest(t, server.URL), Options{Label: "test", Timeout: time.Second})
			require.NoError(t, err)
			defer resp.Body.Close()

			data, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, payload, string(data))
			assert.Empty(t, resp.Header.Get("Content-Encoding"))
		})
	}
}

func TestClient_TimeoutBeforeHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(server.Client(), nil)
	_, err := client.Do(context.Background(), newRequest(t, server.URL), Options{Label: "openai", Timeout: 50 * time.Millisecond})
	require.Error(t, err)

	var timeoutErr *apierr.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "openai", timeoutErr.Label)
	assert.False(t, apierr.IsCancelled(err))
}

func TestClient_TimeoutDuringBodyRead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data: partial\n"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(server.Client(), nil)
	resp, err := client.Do(context.Background(), newRequest(t, server.URL), Options{Label: "anthropic", Timeout: 100 * time.Millisecond})
	require.NoError(t, err)
	defer resp.Body.Close()

	_, err = io.ReadAll(resp.Body)
	require.Error(t, err)
	assert.True(t, apierr.IsTimeout(err))
}

func TestClient_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	client := NewClient(server.Client(), nil)
	_, err := client.Do(ctx, newRequest(t, server.URL), Options{Label: "openai", Timeout: 5 * time.Second})
	require.Error(t, err)
	assert.True(t, apierr.IsCancelled(err))
	assert.False(t, apierr.IsTimeout(err))
}

func TestClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(nil, nil)
	_, err := client.Do(context.Background(), newRequest(t, url), Options{Label: "openai", Timeout: time.Second})
	require.Error(t, err)
	assert.True(t, apierr.IsUpstream(err))
}

func TestNewJSONRequest_HeaderOrder(t *testing.T) {
	req, err := NewJSONRequest(context.Background(), "http://example.com/x",
		map[string]any{"a": 1},
		map[string]string{"Content-Type": "text/plain", "X-Org": "acme", "Authorization": "Bearer user"},
		map[string]string{"Authorization": "Bearer provider"},
	)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "text/plain", req.Header.Get("Content-Type"))
	assert.Equal(t, "acme", req.Header.Get("X-Org"))
	assert.Equal(t, "Bearer provider", req.Header.Get("Authorization"))

	data, _ := io.ReadAll(req.Body)
	assert.JSONEq(t, `{"a":1}`, string(data))
}

func TestReadTextLimit(t *testing.T) {
	long := strings.Repeat("é", 600)
	resp := &http.Response{Body: io.NopCloser(strings.NewReader("  " + long + "  "))}

	text := ReadTextLimit(resp, 500)
	assert.Equal(t, 500, len([]rune(text)))

	short := &http.Response{Body: io.NopCloser(strings.NewReader(" rate limited \n"))}
	assert.Equal(t, "rate limited", ReadTextLimit(short, 300))

	assert.Equal(t, "", ReadTextLimit(nil, 10))
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", JoinURL("https://api.openai.com/v1/", "/chat/completions"))
	assert.Equal(t, "https://api.anthropic.com/v1/messages", JoinURL(" https://api.anthropic.com/v1 ", "messages"))
}
