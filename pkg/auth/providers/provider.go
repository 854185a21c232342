package providers

import (
	"context"
	"errors"
)

// ErrMissingToken is returned when a provider requires a token and the
// handshake carried none.
var ErrMissingToken = errors.New("missing identity token")

// AuthProvider resolves the identity token a client presents in its
// handshake. Identity is issued elsewhere; the server only verifies it.
type AuthProvider interface {
	VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error)
}

type TokenClaims struct {
	UID string
}
