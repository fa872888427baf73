// Package auth is the seam to the credential collaborator. Token refresh
// and storage live outside this app; the pipeline only needs a bearer token
// per request.
package auth

import (
	"context"
	"errors"
	"os"
)

// ErrNoToken is returned when no credential is available. The gateway
// surfaces it as a fatal, non-retryable error.
var ErrNoToken = errors.New("auth: no token available")

// TokenSource supplies the current bearer credential for outbound requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed token. Used in tests and for
// long-lived API keys.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// EnvTokenSource reads the token from an environment variable on every
// request, so an external refresher can rotate it without restarting.
type EnvTokenSource string

func (e EnvTokenSource) Token(context.Context) (string, error) {
	tok := os.Getenv(string(e))
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}
