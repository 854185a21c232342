package providers

import "context"

var _ AuthProvider = &NoopAuthProvider{}

// NoopAuthProvider accepts every handshake. It is used for LAN matches
// where the nickname is the identity.
type NoopAuthProvider struct{}

func NewNoopAuthProvider() *NoopAuthProvider {
	return &NoopAuthProvider{}
}

func (p *NoopAuthProvider) VerifyToken(_ context.Context, idToken string) (*TokenClaims, error) {
	return &TokenClaims{UID: idToken}, nil
}
