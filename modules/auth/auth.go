// Package auth is the credential-validation collaborator boundary. The
// engine only ever calls Validate; issuing credentials belongs to the
// account service, with a dev-mode issuer kept here for local runs and
// tests.
package auth

import "errors"

var (
	// ErrInvalidToken is returned when the credential is rejected.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the credential has expired.
	ErrExpiredToken = errors.New("token has expired")
)

// Identity is the result of a successful validation.
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Authenticator validates a client-supplied credential. Implementations
// must be callable synchronously during connection setup and must not
// retain partial state on failure.
type Authenticator interface {
	Validate(credential string) (Identity, error)
}
