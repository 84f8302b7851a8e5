// Package identity exposes the signed-in user to the rest of dining-cli.
//
// An Identity reports whether a verified user is present, their stable id,
// and mints a short-lived bearer credential on demand. Credentials are not
// cached by callers: every authenticated request mints a fresh one.
package identity

import (
	"context"
	"errors"
)

// ErrUnauthenticated is returned when no identity is present. It is
// terminal for the attempted action and is never retried.
var ErrUnauthenticated = errors.New("unauthenticated: no signed-in identity")

// Identity is a read-only view over an external identity service.
type Identity interface {
	// Present reports whether a verified identity is available.
	Present() bool
	// UID returns the stable user id, or "" when absent.
	UID() string
	// Mint returns a fresh bearer credential, or ErrUnauthenticated.
	Mint(ctx context.Context) (string, error)
}

// Anonymous is an Identity that is never present.
type Anonymous struct{}

// Present always returns false.
func (Anonymous) Present() bool { return false }

// UID always returns "".
func (Anonymous) UID() string { return "" }

// Mint always fails with ErrUnauthenticated.
func (Anonymous) Mint(context.Context) (string, error) { return "", ErrUnauthenticated }
