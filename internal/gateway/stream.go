package gateway

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Davincible/byok-router/internal/endpoint"
	"github.com/Davincible/byok-router/internal/metrics"
	"github.com/Davincible/byok-router/internal/protocol"
	"github.com/Davincible/byok-router/internal/providers"
)

// ResultStream yields shaped results in order. Recv returns io.EOF after the last
// one; Close may be called at any time and releases the provider connection.
type ResultStream interface {
	Recv() (any, error)
	Close() error
}

// HandleCallStream serves a streaming endpoint. handled is false when the call
// must go to the official backend instead. Errors that happen before the first
// result, such as a missing API key or a non-2xx provider status, are returned
// here rather than from Recv.
func (g *Gateway) HandleCallStream(ctx context.Context, in Call) (stream ResultStream, handled bool, err error) {
	c, stub, handled, err := g.prepare(in, endpoint.KindStream)
	if !handled || err != nil {
		return nil, handled, err
	}
	if stub {
		g.metrics.TelemetryStubbed(c.ep)
		return emptyStream{}, true, nil
	}

	if c.spec.Shape == endpoint.ShapeNextEdit {
		text, err := g.completeText(ctx, c)
		if err != nil {
			return nil, true, err
		}
		out, err := c.transform(protocol.NewNextEditResult(c.req, text))
		if err != nil {
			return nil, true, err
		}
		return &sliceStream{items: []any{out}}, true, nil
	}

	shape := chunkShaper(c)
	if shape == nil {
		return nil, false, nil
	}

	adapter, req, err := g.providerRequest(c)
	if err != nil {
		return nil, true, err
	}

	start := time.Now()
	deltas, err := adapter.StreamTextDeltas(ctx, req)
	g.metrics.ProviderCall(c.route.Provider.ID, req.Model, time.Since(start), err)
	if err != nil {
		g.logger.Error("Provider stream failed", "endpoint", c.ep, "provider", c.route.Provider.ID, "error", err)
		return nil, true, err
	}

	g.metrics.StreamOpened()
	return &resultStream{
		call:    c,
		deltas:  deltas,
		shape:   shape,
		metrics: g.metrics,
	}, true, nil
}

// chunkShaper returns how each text delta is wrapped for the endpoint.
func chunkShaper(c *call) func(delta string, first bool) any {
	switch c.spec.Shape {
	case endpoint.ShapeChat:
		return func(delta string, first bool) any {
			return protocol.NewChatResult(delta, c.req.Nodes, first)
		}
	case endpoint.ShapeCodeEdit:
		return func(delta string, _ bool) any {
			return protocol.NewCodeEditResult(delta)
		}
	case endpoint.ShapeCommitMessage:
		return func(delta string, _ bool) any {
			return protocol.NewCommitMessageChunk(delta)
		}
	default:
		return nil
	}
}

type resultStream struct {
	call    *call
	deltas  providers.DeltaStream
	shape   func(delta string, first bool) any
	metrics *metrics.Recorder
	started atomic.Bool

	closeOnce sync.Once
}

func (s *resultStream) Recv() (any, error) {
	delta, err := s.deltas.Recv()
	if err != nil {
		s.Close()
		return nil, err
	}

	raw := s.shape(delta, s.started.CompareAndSwap(false, true))

	out, err := s.call.transform(raw)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.metrics.StreamDelta(s.call.ep)
	return out, nil
}

func (s *resultStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.deltas.Close()
		s.metrics.StreamClosed()
	})
	return err
}

type emptyStream struct{}

func (emptyStream) Recv() (any, error) { return nil, io.EOF }
func (emptyStream) Close() error       { return nil }

type sliceStream struct {
	items []any
}

func (s *sliceStream) Recv() (any, error) {
	if len(s.items) == 0 {
		return nil, io.EOF
	}
	item := s.items[0]
	s.items = s.items[1:]
	return item, nil
}

func (s *sliceStream) Close() error {
	s.items = nil
	return nil
}
