package httpserver

import (
	"context"
	"net/http"
	"strings"

	"estatehub/internal/domain"
	"estatehub/internal/security"
)

type contextKey string

const actorContextKey contextKey = "actor"

// WithActor returns a new context carrying the authenticated caller.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// CurrentActor extracts the authenticated caller from context, if any.
func CurrentActor(r *http.Request) (domain.Actor, bool) {
	a, ok := r.Context().Value(actorContextKey).(domain.Actor)
	return a, ok
}

func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[len("Bearer "):])
	return tok, tok != ""
}

func unauthorized(msg string) error {
	return &domain.AppError{Code: domain.CodeUnauthorized, Message: msg}
}

// RequireAuth validates the Bearer token and attaches the actor to the context.
func RequireAuth(tokens *security.TokenService, errs errorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := bearerToken(r)
			if !ok {
				errs.write(w, r, unauthorized("missing or invalid Authorization header"))
				return
			}
			p, err := tokens.Parse(tok)
			if err != nil {
				errs.write(w, r, unauthorized("invalid token"))
				return
			}
			ctx := WithActor(r.Context(), domain.Actor{ID: p.UserID, Role: p.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the actor when a token is present. Guests pass through;
// a present but invalid token is still rejected.
func OptionalAuth(tokens *security.TokenService, errs errorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			RequireAuth(tokens, errs)(next).ServeHTTP(w, r)
		})
	}
}
