package auth

import "context"

// usernameContextKey is the context key for the authenticated username.
type usernameContextKey struct{}

// WithUsername returns a copy of ctx carrying username.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameContextKey{}, username)
}

// UsernameFromContext returns the username stored by Middleware.
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameContextKey{}).(string)
	return username, ok && username != ""
}
