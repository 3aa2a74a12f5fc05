package auth

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Validator validates a raw token and returns its username.
type Validator interface {
	Validate(token string) (string, bool)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingBearerToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingBearerToken
	}
	return token, nil
}

// Middleware rejects requests without a valid bearer token and
// stores the token's username in the request context.
func Middleware(validator Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r)
			if err != nil {
				zerolog.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("bearer token missing")
				writeAuthError(w)
				return
			}

			username, ok := validator.Validate(token)
			if !ok {
				zerolog.Ctx(r.Context()).Debug().Str("path", r.URL.Path).Msg("bearer token rejected")
				writeAuthError(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUsername(r.Context(), username)))
		})
	}
}

// writeAuthError writes a 401 JSON error response.
// Missing, malformed and expired tokens share one body.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="fertilizer-advisor"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": ErrInvalidToken.Error()})
}
