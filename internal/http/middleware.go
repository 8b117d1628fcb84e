package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/autoecole-scheduler/internal/application"
	"github.com/example/autoecole-scheduler/internal/logging"
)

// APIKeyHeader carries the back office key. A bearer Authorization header is accepted too.
const APIKeyHeader = "X-API-Key"

type keyVerifier interface {
	Verify(key string) error
}

// RequireAPIKey rejects requests whose key does not match the configured hash.
func RequireAPIKey(verifier keyVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractAPIKey(r)
			if key == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingAPIKey)
				return
			}

			if err := verifier.Verify(key); err != nil {
				if errors.Is(err, application.ErrInvalidAPIKey) {
					responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{ErrorCode: "UNAUTHORIZED", Message: "Clé d'API invalide."})
				} else {
					responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Message: "Erreur lors de la vérification de la clé d'API."})
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		return key
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strconv.FormatUint(counter.Add(1), 10)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := logging.ContextWithLogger(ContextWithRequestID(r.Context(), id), logger)
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(recorder, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", recorder.status, "duration", time.Since(start))
		})
	}
}
