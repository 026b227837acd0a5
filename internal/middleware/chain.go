package middleware

import (
	"log/slog"
	"net/http"

	"github.com/Davincible/byok-router/internal/metrics"
)

type Middleware func(http.Handler) http.Handler

// Chain is an ordered list of middleware; the first one sees the request first.
type Chain struct {
	links []Middleware
}

func New(links ...Middleware) Chain {
	return Chain{links: links}
}

// Then returns a new chain with links appended. c is left untouched.
func (c Chain) Then(links ...Middleware) Chain {
	n := len(c.links)
	return Chain{links: append(c.links[:n:n], links...)}
}

func (c Chain) Handler(h http.Handler) http.Handler {
	for i := len(c.links) - 1; i >= 0; i-- {
		h = c.links[i](h)
	}
	return h
}

type MiddlewareSet struct {
	Metrics Middleware
	Logging Middleware
	Auth    Middleware
}

func NewMiddlewareSet(config ConfigSource, rec *metrics.Recorder, logger *slog.Logger) MiddlewareSet {
	return MiddlewareSet{
		Metrics: NewMetricsMiddleware(rec),
		Logging: NewLoggingMiddleware(logger),
		Auth:    NewAuthMiddleware(config, logger),
	}
}

// DefaultChain is used for gateway traffic and the admin API.
func (ms MiddlewareSet) DefaultChain() Chain {
	return New(ms.Metrics, ms.Logging, ms.Auth)
}

// HealthChain skips auth so probes work without the gateway key.
func (ms MiddlewareSet) HealthChain() Chain {
	return New(ms.Metrics, ms.Logging)
}

// ScrapeChain is for scrape endpoints that should not flood the request log.
// They still require the gateway key.
func (ms MiddlewareSet) ScrapeChain() Chain {
	return New(ms.Auth)
}
