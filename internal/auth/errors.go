package auth

import "errors"

// Domain errors for the auth package.
var (
	// ErrInvalidCredentials is returned when a username or password does not match.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenInvalid is returned for a malformed, expired or wrongly signed token.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrInvalidHash is returned when a stored password hash cannot be parsed.
	ErrInvalidHash = errors.New("auth: invalid password hash")

	// ErrWeakSecret is returned when the signing secret is too short.
	ErrWeakSecret = errors.New("auth: signing secret too short")
)
