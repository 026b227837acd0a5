package providers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Davincible/byok-router/internal/apierr"
	"github.com/Davincible/byok-router/internal/wire"
)

// eventHandler turns one SSE data payload into a text delta. done ends the stream;
// a non-nil error marks the payload as malformed and it is skipped.
type eventHandler func(data string) (delta string, done bool, err error)

// sseStream is the DeltaStream shared by the SSE based adapters.
type sseStream struct {
	ctx     context.Context
	label   string
	resp    *http.Response
	decoder *wire.SSEDecoder
	handle  eventHandler
	logger  *slog.Logger

	once sync.Once
	done atomic.Bool
}

func newSSEStream(ctx context.Context, label string, resp *http.Response, handle eventHandler, logger *slog.Logger) *sseStream {
	return &sseStream{
		ctx:     ctx,
		label:   label,
		resp:    resp,
		decoder: wire.NewSSEDecoder(resp.Body),
		handle:  handle,
		logger:  logger,
	}
}

func (s *sseStream) Recv() (string, error) {
	for {
		if s.done.Load() {
			return "", io.EOF
		}
		if err := s.ctx.Err(); err != nil {
			s.Close()
			if errors.Is(err, context.Canceled) {
				return "", io.EOF
			}
			return "", &apierr.TimeoutError{Label: s.label}
		}

		ev, err := s.decoder.Next()
		if err != nil {
			closed := s.done.Load()
			s.Close()
			if closed || errors.Is(err, io.EOF) || apierr.IsCancelled(err) {
				return "", io.EOF
			}
			return "", err
		}

		data := strings.TrimSpace(ev.Data)
		if data == "" {
			continue
		}

		delta, done, err := s.handle(data)
		if err != nil {
			s.logger.Debug("Skipping malformed stream event", "error", &apierr.ParseError{Label: s.label, Data: data, Err: err})
			continue
		}
		if done {
			s.Close()
			return "", io.EOF
		}
		if delta != "" {
			return delta, nil
		}
	}
}

// Close releases the connection. Bytes the provider sends after the end marker are
// never read. Close may run concurrently with a blocked Recv, which then returns
// io.EOF.
func (s *sseStream) Close() error {
	var err error
	s.once.Do(func() {
		s.done.Store(true)
		err = s.resp.Body.Close()
	})
	return err
}

// errorFromResponse builds the UpstreamError for a non-2xx provider response.
func errorFromResponse(label string, resp *http.Response) error {
	defer resp.Body.Close()
	return &apierr.UpstreamError{
		Label:  label,
		Status: resp.StatusCode,
		Body:   wire.ReadTextLimit(resp, errorSnippetChars),
	}
}

func isSuccess(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
