package auth

import (
	"crypto/subtle"
	"fmt"
	"time"
)

// Token is the result of a successful login.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"-"`
}

// Authenticator checks operator credentials and access tokens.
type Authenticator struct {
	username     string
	passwordHash string
	secret       string
	ttl          time.Duration
}

// NewAuthenticator creates an authenticator for a single operator account.
// The password hash is parsed up front so a bad config fails at start-up.
func NewAuthenticator(username, passwordHash, secret string, ttl time.Duration) (*Authenticator, error) {
	if _, err := decodePHC(passwordHash); err != nil {
		return nil, err
	}
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("%w: need at least %d characters", ErrWeakSecret, minSecretLength)
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Authenticator{
		username:     username,
		passwordHash: passwordHash,
		secret:       secret,
		ttl:          ttl,
	}, nil
}

// Login verifies credentials and issues an access token.
// Wrong usernames and wrong passwords both return ErrInvalidCredentials.
func (a *Authenticator) Login(username, password string) (*Token, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1

	// Always run the hash so response time does not reveal the username.
	passOK, err := VerifyPassword(password, a.passwordHash)
	if err != nil {
		return nil, err
	}
	if !userOK || !passOK {
		return nil, ErrInvalidCredentials
	}

	signed, expires, err := IssueToken(a.username, a.secret, a.ttl)
	if err != nil {
		return nil, err
	}
	return &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(a.ttl.Seconds()),
		ExpiresAt:   expires,
	}, nil
}

// Validate parses and checks an access token.
func (a *Authenticator) Validate(token string) (*Claims, error) {
	return ParseToken(token, a.secret)
}
