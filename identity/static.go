package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StaticToken is an Identity backed by a bearer JWT obtained elsewhere.
// The token's claims are read without verifying the signature; the backend
// verifies it on every request.
type StaticToken struct {
	token   string
	uid     string
	expires time.Time
	now     func() time.Time
}

// NewStaticToken parses token and extracts the user id ("user_id", falling
// back to "sub") and expiry.
func NewStaticToken(token string) (*StaticToken, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrUnauthenticated)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	uid, _ := claims["user_id"].(string)
	if uid == "" {
		uid, _ = claims.GetSubject()
	}
	if uid == "" {
		return nil, fmt.Errorf("%w: token carries no user id", ErrUnauthenticated)
	}

	st := &StaticToken{token: token, uid: uid, now: time.Now}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		st.expires = exp.Time
	}
	return st, nil
}

// Present returns true while the token is unexpired.
func (s *StaticToken) Present() bool {
	if s == nil || s.token == "" || s.uid == "" {
		return false
	}
	return s.expires.IsZero() || s.now().Before(s.expires)
}

// UID returns the token's user id.
func (s *StaticToken) UID() string {
	if !s.Present() {
		return ""
	}
	return s.uid
}

// Mint returns the token itself.
func (s *StaticToken) Mint(context.Context) (string, error) {
	if !s.Present() {
		return "", ErrUnauthenticated
	}
	return s.token, nil
}

// ExpiresAt returns the token expiry, zero if the token has none.
func (s *StaticToken) ExpiresAt() time.Time {
	return s.expires
}
