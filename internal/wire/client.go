// Package wire executes provider HTTP exchanges and decodes Server-Sent Events.
package wire

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/andybalholm/brotli"

	"github.com/Davincible/byok-router/internal/apierr"
)

var errDeadline = errors.New("call deadline exceeded")

// Options controls a single exchange.
type Options struct {
	// Timeout is the wall-clock budget for the whole exchange, body reads included.
	// Zero means no deadline beyond ctx.
	Timeout time.Duration
	// Label names the exchange in errors ("openai", "anthropic", "get-models").
	Label string
}

type Client struct {
	http   *http.Client
	logger *slog.Logger
}

func NewClient(hc *http.Client, logger *slog.Logger) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{http: hc, logger: logger}
}

// Do sends req and returns the response with a transparently decoded body. The
// deadline keeps running until the caller closes the body.
func (c *Client) Do(ctx context.Context, req *http.Request, opts Options) (*http.Response, error) {
	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if opts.Timeout > 0 {
		callCtx, cancel = context.WithTimeoutCause(ctx, opts.Timeout, errDeadline)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}

	req = req.WithContext(callCtx)
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "gzip, br")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		err = classify(ctx, callCtx, opts, err)
		cancel()
		c.logger.Debug("Upstream request failed", "label", opts.Label, "url", req.URL.String(), "error", err)
		return nil, err
	}

	c.logger.Debug("Upstream response",
		"label", opts.Label,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"encoding", resp.Header.Get("Content-Encoding"),
		"duration", time.Since(start))

	decoded, err := decompressReader(resp)
	if err != nil {
		resp.Body.Close()
		if callCtx.Err() != nil {
			err = classify(ctx, callCtx, opts, err)
			cancel()
			return nil, err
		}
		cancel()
		return nil, &apierr.UpstreamError{Label: opts.Label, Status: resp.StatusCode, Message: "decode response body: " + err.Error()}
	}

	resp.Body = &body{
		reader: decoded,
		raw:    resp.Body,
		cancel: cancel,
		classify: func(err error) error {
			return classify(ctx, callCtx, opts, err)
		},
	}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true

	return resp, nil
}

// NewJSONRequest builds a POST request with a JSON body. Headers are applied in
// order so later maps override earlier ones.
func NewJSONRequest(ctx context.Context, url string, payload any, headers ...map[string]string) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for _, h := range headers {
		for k, v := range h {
			req.Header.Set(k, v)
		}
	}

	return req, nil
}

// ReadTextLimit reads the response body and returns at most maxChars characters
// of it, trimmed. Read errors are ignored; the text is for error reports only.
func ReadTextLimit(resp *http.Response, maxChars int) string {
	if resp == nil || resp.Body == nil || maxChars <= 0 {
		return ""
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, int64(maxChars)*utf8.UTFMax))
	text := strings.TrimSpace(string(data))
	if utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	runes := []rune(text)
	return string(runes[:maxChars])
}

// JoinURL appends path to base with exactly one slash between them.
func JoinURL(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/" + strings.TrimLeft(path, "/")
}

func classify(parent, callCtx context.Context, opts Options, err error) error {
	switch {
	case errors.Is(context.Cause(callCtx), errDeadline):
		return &apierr.TimeoutError{Label: opts.Label, Timeout: opts.Timeout}
	case errors.Is(parent.Err(), context.DeadlineExceeded):
		return &apierr.TimeoutError{Label: opts.Label}
	case parent.Err() != nil:
		return &apierr.CancelledError{Label: opts.Label}
	default:
		return &apierr.UpstreamError{Label: opts.Label, Message: err.Error()}
	}
}

func decompressReader(resp *http.Response) (io.Reader, error) {
	var bodyReader io.Reader = resp.Body

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		bodyReader = gzipReader
	case "br":
		bodyReader = brotli.NewReader(resp.Body)
	}

	return bodyReader, nil
}

type body struct {
	reader   io.Reader
	raw      io.ReadCloser
	cancel   context.CancelFunc
	classify func(error) error
}

func (b *body) Read(p []byte) (int, error) {
	n, err := b.reader.Read(p)
	if err != nil && err != io.EOF {
		return n, b.classify(err)
	}
	return n, err
}

// Close may be called while a Read is blocked. The decompressors hold no
// resources of their own, so only the raw body is closed.
func (b *body) Close() error {
	err := b.raw.Close()
	b.cancel()
	return err
}
