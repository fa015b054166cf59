package http

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"quiz-eval-service/internal/domain"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// TokenVerifier turns a bearer token into the session principal.
type TokenVerifier interface {
	Parse(raw string) (domain.Principal, error)
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the authenticated caller stored by the auth middleware.
func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(domain.Principal)
	return p, ok
}

// bearerToken reads the Authorization header. Websocket upgrades may pass the
// token as a query parameter since browsers cannot set headers on them.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if websocket.IsWebSocketUpgrade(r) {
		return r.URL.Query().Get("token")
	}
	return ""
}

func requireKind(tokens TokenVerifier, kind domain.PrincipalKind, log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				writeError(w, r, log, domain.ErrUnauthorized)
				return
			}
			p, err := tokens.Parse(raw)
			if err != nil {
				writeError(w, r, log, err)
				return
			}
			if p.Kind != kind {
				writeError(w, r, log, fmt.Errorf("%w: %s session required", domain.ErrForbidden, kind))
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
		})
	}
}

// accessLog routes gorilla's request logging through slog.
func accessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return handlers.CustomLoggingHandler(io.Discard, next, func(_ io.Writer, p handlers.LogFormatterParams) {
			log.Info("http request",
				"method", p.Request.Method,
				"path", p.URL.Path,
				"status", p.StatusCode,
				"size", p.Size,
				"duration", time.Since(p.TimeStamp).Round(time.Microsecond),
			)
		})
	}
}

type recoveryLogger struct {
	log *slog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error("panic recovered", "err", fmt.Sprint(v...))
}
