package services

import (
	"crypto/subtle"
	"errors"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// SecretAuthenticator checks bearer tokens against one shared secret.
// With an empty secret every request is admitted.
type SecretAuthenticator struct {
	secret []byte
}

// NewSecretAuthenticator creates an authenticator for the given secret
func NewSecretAuthenticator(secret string) *SecretAuthenticator {
	return &SecretAuthenticator{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured
func (a *SecretAuthenticator) Enabled() bool {
	return len(a.secret) > 0
}

// Authenticate validates a bearer token
func (a *SecretAuthenticator) Authenticate(token string) error {
	if !a.Enabled() {
		return nil
	}
	if token == "" {
		return ErrMissingToken
	}
	if subtle.ConstantTimeCompare([]byte(token), a.secret) != 1 {
		return ErrInvalidToken
	}
	return nil
}
