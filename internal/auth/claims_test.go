package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-at-least-32-chars!"

func TestIssueAndParseToken(t *testing.T) {
	token, expires, err := IssueToken("admin", testSecret, 15*time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "admin" {
		t.Errorf("Subject = %q, want admin", claims.Subject)
	}
	if claims.ID == "" {
		t.Error("token has no ID")
	}
	if diff := claims.ExpiresAt.Time.Sub(expires); diff < -time.Second || diff > time.Second {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt.Time, expires)
	}
}

func TestIssueToken_DefaultTTL(t *testing.T) {
	_, expires, err := IssueToken("admin", testSecret, 0)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	diff := time.Until(expires) - defaultTokenTTL
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("default expiry off by %v", diff)
	}
}

func TestIssueToken_WeakSecret(t *testing.T) {
	if _, _, err := IssueToken("admin", "short", time.Minute); !errors.Is(err, ErrWeakSecret) {
		t.Errorf("IssueToken() error = %v, want ErrWeakSecret", err)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	valid, _, err := IssueToken("admin", testSecret, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	sign := func(claims jwt.Claims, method jwt.SigningMethod, key any) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("signing test token: %v", err)
		}
		return s
	}
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{name: "empty", token: "", secret: testSecret},
		{name: "garbage", token: "not-a-jwt", secret: testSecret},
		{name: "wrong secret", token: valid, secret: "another-secret-also-32-characters!"},
		{
			name: "expired",
			token: sign(jwt.RegisteredClaims{
				Issuer:    tokenIssuer,
				Subject:   "admin",
				ExpiresAt: jwt.NewNumericDate(past),
			}, jwt.SigningMethodHS256, []byte(testSecret)),
			secret: testSecret,
		},
		{
			name: "no expiry",
			token: sign(jwt.RegisteredClaims{
				Issuer:  tokenIssuer,
				Subject: "admin",
			}, jwt.SigningMethodHS256, []byte(testSecret)),
			secret: testSecret,
		},
		{
			name: "foreign issuer",
			token: sign(jwt.RegisteredClaims{
				Issuer:    "someone-else",
				Subject:   "admin",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}, jwt.SigningMethodHS256, []byte(testSecret)),
			secret: testSecret,
		},
		{
			name: "HS512",
			token: sign(jwt.RegisteredClaims{
				Issuer:    tokenIssuer,
				Subject:   "admin",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}, jwt.SigningMethodHS512, []byte(testSecret)),
			secret: testSecret,
		},
		{
			name: "missing subject",
			token: sign(jwt.RegisteredClaims{
				Issuer:    tokenIssuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}, jwt.SigningMethodHS256, []byte(testSecret)),
			secret: testSecret,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, tt.secret); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}
