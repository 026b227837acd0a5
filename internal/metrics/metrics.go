// Package metrics exposes Prometheus metrics for the gateway.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Davincible/byok-router/internal/apierr"
)

// LLMBuckets are histogram buckets for provider latencies, 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Outcome labels for provider calls.
const (
	OutcomeOK            = "ok"
	OutcomeUpstreamError = "upstream_error"
	OutcomeTimeout       = "timeout"
	OutcomeCancelled     = "cancelled"
	OutcomeConfigError   = "config_error"
	OutcomeError         = "error"
)

// Recorder holds the gateway metrics. A nil *Recorder records nothing.
type Recorder struct {
	routeDecisions   *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	streamDeltas     *prometheus.CounterVec
	activeStreams    prometheus.Gauge
	promptTokens     *prometheus.CounterVec
	telemetryStubs   *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		routeDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "byok_route_decisions_total",
				Help: "Route decisions by endpoint, mode and reason",
			},
			[]string{"endpoint", "mode", "reason"},
		),
		providerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "byok_provider_requests_total",
				Help: "Provider requests",
			},
			[]string{"provider", "model", "outcome"},
		),
		providerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "byok_provider_latency_seconds",
				Help:    "Provider latency",
				Buckets: LLMBuckets,
			},
			[]string{"provider", "model"},
		),
		streamDeltas: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "byok_stream_deltas_total",
				Help: "Stream results delivered to callers",
			},
			[]string{"endpoint"},
		),
		activeStreams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "byok_streams_active",
				Help: "Open result streams",
			},
		),
		promptTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "byok_prompt_tokens_total",
				Help: "Estimated prompt tokens sent to providers",
			},
			[]string{"provider", "model"},
		),
		telemetryStubs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "byok_telemetry_stubbed_total",
				Help: "Telemetry calls answered locally",
			},
			[]string{"endpoint"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "byok_http_requests_total",
				Help: "HTTP requests",
			},
			[]string{"method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "byok_http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: LLMBuckets,
			},
			[]string{"method"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			r.routeDecisions,
			r.providerRequests,
			r.providerLatency,
			r.streamDeltas,
			r.activeStreams,
			r.promptTokens,
			r.telemetryStubs,
			r.httpRequests,
			r.httpDuration,
		)
	}

	return r
}

func (r *Recorder) RouteDecision(endpoint, mode, reason string) {
	if r == nil {
		return
	}
	r.routeDecisions.WithLabelValues(endpoint, mode, reason).Inc()
}

// ProviderCall records one finished provider call. The outcome label is derived
// from err.
func (r *Recorder) ProviderCall(provider, model string, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	r.providerRequests.WithLabelValues(provider, model, Outcome(err)).Inc()
	r.providerLatency.WithLabelValues(provider, model).Observe(elapsed.Seconds())
}

func (r *Recorder) PromptTokens(provider, model string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.promptTokens.WithLabelValues(provider, model).Add(float64(n))
}

func (r *Recorder) StreamOpened() {
	if r == nil {
		return
	}
	r.activeStreams.Inc()
}

func (r *Recorder) StreamClosed() {
	if r == nil {
		return
	}
	r.activeStreams.Dec()
}

func (r *Recorder) StreamDelta(endpoint string) {
	if r == nil {
		return
	}
	r.streamDeltas.WithLabelValues(endpoint).Inc()
}

func (r *Recorder) TelemetryStubbed(endpoint string) {
	if r == nil {
		return
	}
	r.telemetryStubs.WithLabelValues(endpoint).Inc()
}

// HTTPRequest records a served request. status is bucketed into its class.
func (r *Recorder) HTTPRequest(method string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, strconv.Itoa(status/100)+"xx").Inc()
	r.httpDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Outcome maps a call error onto its outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case apierr.IsUpstream(err):
		return OutcomeUpstreamError
	case apierr.IsTimeout(err):
		return OutcomeTimeout
	case apierr.IsCancelled(err):
		return OutcomeCancelled
	case apierr.IsConfiguration(err):
		return OutcomeConfigError
	default:
		return OutcomeError
	}
}
