package middleware

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Davincible/byok-router/internal/config"
)

// APIKeyHeader carries the gateway key. Authorization is left alone because it
// holds the official backend token the client forwards.
const APIKeyHeader = "X-API-Key"

// ConfigSource hands out the current config snapshot.
type ConfigSource interface {
	Get() *config.Config
}

type AuthMiddleware struct {
	config ConfigSource
	logger *slog.Logger
}

func NewAuthMiddleware(config ConfigSource, logger *slog.Logger) func(http.Handler) http.Handler {
	am := &AuthMiddleware{
		config: config,
		logger: logger,
	}

	return am.middleware
}

func (am *AuthMiddleware) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := am.authenticate(r); err != nil {
			am.logger.Error("Authentication failed", "error", err, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
			http.Error(w, "Gateway API key not authorized", http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (am *AuthMiddleware) authenticate(r *http.Request) error {
	want := am.config.Get().Server.APIKey
	if want == "" {
		return nil
	}

	token := strings.TrimSpace(r.Header.Get(APIKeyHeader))
	if token == "" {
		return errors.New("no gateway API key provided")
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(want)) != 1 {
		return errors.New("invalid gateway API key")
	}

	return nil
}
