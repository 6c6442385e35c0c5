package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

type contextKey int

const (
	tokenContextKey contextKey = iota
)

// TokenFromContext returns the token stored by Middleware, or "" when absent.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// RequireValid extracts the token from r and checks it.
// It returns ErrMissingToken when no token is present and ErrInvalidToken when
// the token is expired or fails verification. Both wrap ErrUnauthorized.
func (m *Manager) RequireValid(r *http.Request) (string, error) {
	token, source := Extract(r)
	if token == "" {
		m.log.Warn().Str("origen", source).Str("path", r.URL.Path).Msg("Token not provided")
		return "", ErrMissingToken
	}

	if _, err := m.Decode(token); err != nil {
		m.log.Warn().Err(err).Str("origen", source).Str("path", r.URL.Path).Msg("Token rejected")
		return "", ErrInvalidToken
	}

	return token, nil
}

// Middleware guards next with RequireValid, answering 401 on failure.
func (m *Manager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := m.RequireValid(r)
			if err != nil {
				writeUnauthorized(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), tokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	detail := "invalid or expired token"
	if errors.Is(err, ErrMissingToken) {
		detail = "token not provided"
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
