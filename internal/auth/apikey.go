package auth

import (
	"crypto/subtle"
	"errors"
)

// HeaderName carries the shared-secret credential.
const HeaderName = "X-API-KEY"

// ErrUnauthorized is returned for a missing or mismatched credential.
var ErrUnauthorized = errors.New("unauthorized")

// APIKeyAuthenticator accepts requests whose credential equals the configured key.
// There is no hashing, rate limiting or rotation.
type APIKeyAuthenticator struct {
	key []byte
}

func NewAPIKeyAuthenticator(key string) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{key: []byte(key)}
}

// Authenticate returns ErrUnauthorized unless provided matches the key exactly.
// A missing header arrives as the empty string and never matches a configured key.
func (a *APIKeyAuthenticator) Authenticate(provided string) error {
	if len(a.key) == 0 {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(provided), a.key) != 1 {
		return ErrUnauthorized
	}
	return nil
}
