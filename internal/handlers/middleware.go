package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/handsomefox/reelshelf/internal/auth"
	"github.com/handsomefox/reelshelf/internal/logger"
)

type ctxKey struct{}

func sessionFrom(ctx context.Context) (auth.Session, bool) {
	sess, ok := ctx.Value(ctxKey{}).(auth.Session)
	return sess, ok
}

// MiddlewareSession resolves the request's session token, if any, and stores
// the session in the request context. Unknown or expired tokens are ignored.
func (h *Handler) MiddlewareSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		sess, err := h.auth.Resolve(r.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrNoSession) {
				slog.Warn("resolve session failed", logger.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	})
}

func (h *Handler) MiddlewareRequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := sessionFrom(r.Context()); !ok {
			writeJSON(w, http.StatusUnauthorized, &errorResponse{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
