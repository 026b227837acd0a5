package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Davincible/byok-router/internal/config"
	"github.com/Davincible/byok-router/internal/handlers"
	"github.com/Davincible/byok-router/internal/metrics"
	"github.com/Davincible/byok-router/internal/middleware"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	config   *config.Manager
	gateway  handlers.Gateway
	metrics  *metrics.Recorder
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	server   *http.Server
}

func New(configManager *config.Manager, gw handlers.Gateway, rec *metrics.Recorder, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	return &Server{
		config:   configManager,
		gateway:  gw,
		metrics:  rec,
		gatherer: gatherer,
		logger:   logger,
	}
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Get()
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting server", "address", addr, "official", cfg.Official.CompletionURL, "providers", len(cfg.Providers))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("Server exited")
	return nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	proxyHandler := handlers.NewProxyHandler(s.gateway, s.config, s.logger)
	healthHandler := handlers.NewHealthHandler(s.config, s.config, s.logger)
	runtimeHandler := handlers.NewRuntimeHandler(s.config, s.logger)

	middlewareSet := middleware.NewMiddlewareSet(s.config, s.metrics, s.logger)

	mux.Handle("/health", middlewareSet.HealthChain().Handler(healthHandler))
	mux.Handle("/admin/runtime", middlewareSet.DefaultChain().Handler(runtimeHandler))
	if s.gatherer != nil {
		mux.Handle("/metrics", middlewareSet.ScrapeChain().Handler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	mux.Handle("/", middlewareSet.DefaultChain().Handler(proxyHandler))

	return mux
}
