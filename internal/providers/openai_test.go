package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/byok-router/internal/apierr"
	"github.com/Davincible/byok-router/internal/wire"
)

func newOpenAI() *OpenAIProvider {
	return NewOpenAIProvider(wire.NewClient(nil, nil), testLogger())
}

func drain(t *testing.T, stream DeltaStream) []string {
	t.Helper()
	defer stream.Close()

	var deltas []string
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return deltas
		}
		require.NoError(t, err)
		deltas = append(deltas, delta)
	}
}

func writeSSE(w http.ResponseWriter, lines ...string) {
	w.Header().Set("Content-Type", ContentTypeEventStream)
	for _, line := range lines {
		io.WriteString(w, line)
		w.(http.Flusher).Flush()
	}
}

func TestOpenAIProvider_CompleteText(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "acme", r.Header.Get("X-Org"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Hello there"}}]}`)
	}))
	defer server.Close()

	text, err := newOpenAI().CompleteText(context.Background(), Request{
		BaseURL: server.URL + "/v1/",
		APIKey:  "sk-test",
		Model:   "gpt-4o-mini",
		System:  "  Be brief.  ",
		Messages: []Message{
			{Role: RoleUser, Content: "Hi"},
			{Role: RoleAssistant, Content: ""},
			{Role: RoleTool, Content: "42", ToolCallID: "call_1"},
		},
		Timeout:         5 * time.Second,
		ExtraHeaders:    map[string]string{"authorization": "Bearer user-supplied", "x-org": "acme"},
		RequestDefaults: map[string]any{"temperature": 0.1, "model": "ignored", "stream": true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", text)

	assert.Equal(t, "gpt-4o-mini", captured["model"])
	assert.Equal(t, false, captured["stream"])
	assert.Equal(t, 0.1, captured["temperature"])

	messages := captured["messages"].([]any)
	require.Len(t, messages, 3)
	assert.Equal(t, map[string]any{"role": "system", "content": "Be brief."}, messages[0])
	assert.Equal(t, map[string]any{"role": "user", "content": "Hi"}, messages[1])
	assert.Equal(t, map[string]any{"role": "tool", "content": "42", "tool_call_id": "call_1"}, messages[2])
}

func TestOpenAIProvider_StructuredParts(t *testing.T) {
	msg := Message{
		Role: RoleUser,
		Parts: []ContentPart{
			{Type: ContentTypeText, Text: "look"},
			{Type: ContentTypeImageURL, ImageURL: &ImageURL{URL: "data:image/png;base64,AAAA"}},
		},
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":[{"type":"text","text":"look"},{"type":"image_url","image_url":{"url":"data:image/png;base64,AAAA"}}]}`, string(data))
}

func TestOpenAIProvider_ResponseErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "missing content",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			check: func(t *testing.T, err error) {
				var upstream *apierr.UpstreamError
				require.ErrorAs(t, err, &upstream)
				assert.Contains(t, upstream.Message, "choices[0].message.content")
			},
		},
		{
			name:   "not json",
			status: http.StatusOK,
			body:   `<html>`,
			check: func(t *testing.T, err error) {
				var upstream *apierr.UpstreamError
				require.ErrorAs(t, err, &upstream)
				assert.Contains(t, upstream.Message, "decode response")
			},
		},
		{
			name:   "rate limited with long body",
			status: http.StatusTooManyRequests,
			body:   strings.Repeat("x", 2000),
			check: func(t *testing.T, err error) {
				var upstream *apierr.UpstreamError
				require.ErrorAs(t, err, &upstream)
				assert.Equal(t, http.StatusTooManyRequests, upstream.Status)
				assert.Len(t, upstream.Body, 500)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := newOpenAI().CompleteText(context.Background(), Request{
				BaseURL:  server.URL,
				APIKey:   "k",
				Model:    "m",
				Messages: []Message{{Role: RoleUser, Content: "hi"}},
			})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestOpenAIProvider_ConfigurationErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	valid := Request{
		BaseURL:  server.URL,
		APIKey:   "k",
		Model:    "m",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	}

	tests := []struct {
		name   string
		mutate func(r *Request)
		field  string
	}{
		{"missing base url", func(r *Request) { r.BaseURL = " " }, "base_url"},
		{"missing api key", func(r *Request) { r.APIKey = "" }, "api_key"},
		{"missing model", func(r *Request) { r.Model = "" }, "model"},
		{"no messages", func(r *Request) { r.Messages = nil }, "messages"},
		{"only empty messages", func(r *Request) { r.Messages = []Message{{Role: RoleUser}} }, "messages"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)

			_, err := newOpenAI().CompleteText(context.Background(), req)
			var cfgErr *apierr.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)

			_, err = newOpenAI().StreamTextDeltas(context.Background(), req)
			assert.True(t, apierr.IsConfiguration(err))
		})
	}

	assert.Zero(t, hits.Load(), "configuration errors must not reach the network")
}

func TestOpenAIProvider_StreamTextDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, true, body["stream"])

		writeSSE(w,
			": keep-alive\n\n",
			"data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n",
			"data: {\"choices\":[{\"delta\":{\"content\":\"He\"}}]}\n\n",
			"data: {not json}\n\n",
			"data: {\"choices\":[{\"delta\":{\"content\":\"llo\"}}]}\n\n",
			"data: [DONE]\n\n",
			"data: {\"choices\":[{\"delta\":{\"content\":\"after done\"}}]}\n\n",
		)
	}))
	defer server.Close()

	stream, err := newOpenAI().StreamTextDeltas(context.Background(), Request{
		BaseURL:  server.URL,
		APIKey:   "k",
		Model:    "m",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"He", "llo"}, drain(t, stream))

	// Recv after the end keeps returning io.EOF
	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenAIProvider_StreamUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newOpenAI().StreamTextDeltas(context.Background(), Request{
		BaseURL:  server.URL,
		APIKey:   "k",
		Model:    "m",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})

	var upstream *apierr.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusUnauthorized, upstream.Status)
	assert.Equal(t, "bad key", upstream.Body)
}

func TestOpenAIProvider_StreamCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, "data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n\n")
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := newOpenAI().StreamTextDeltas(ctx, Request{
		BaseURL:  server.URL,
		APIKey:   "k",
		Model:    "m",
		Timeout:  10 * time.Second,
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	defer stream.Close()

	delta, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "first", delta)

	cancel()

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF, "cancellation ends the stream without an error")
}

func TestOpenAIProvider_StreamCloseWhileRecvBlocked(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, "data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n\n")
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	stream, err := newOpenAI().StreamTextDeltas(context.Background(), Request{
		BaseURL:  server.URL,
		APIKey:   "k",
		Model:    "m",
		Timeout:  10 * time.Second,
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	delta, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "first", delta)

	done := make(chan error, 1)
	go func() {
		_, err := stream.Recv()
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, stream.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.EOF, "a closed stream ends quietly")
	case <-time.After(5 * time.Second):
		t.Fatal("Recv did not return after Close")
	}

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenAIProvider_StreamTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, "data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n\n")
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	stream, err := newOpenAI().StreamTextDeltas(context.Background(), Request{
		BaseURL:  server.URL,
		APIKey:   "k",
		Model:    "m",
		Timeout:  200 * time.Millisecond,
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Recv()
	require.NoError(t, err)

	_, err = stream.Recv()
	assert.True(t, apierr.IsTimeout(err))
}
