package middleware

import (
	"net/http"
	"time"

	"github.com/Davincible/byok-router/internal/metrics"
)

// NewMetricsMiddleware counts requests and their latency by method and status.
func NewMetricsMiddleware(rec *metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrap(w)

			next.ServeHTTP(wrapped, r)

			rec.HTTPRequest(r.Method, wrapped.status, time.Since(start))
		})
	}
}
