// Package session persists console browser sessions.
//
// A session is created when the backend accepts a login. The browser keeps
// only the token, in the bitware-session-token cookie; the console keeps the
// user info and KAM context next to it so every request can rebuild the
// caller's identity without asking the backend again.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/bitware/aifactory-console/api"
)

// Storage keys. The cookie carries the token; the record carries the other two.
const (
	KeyUserInfo   = "bitware-user-info"
	KeyToken      = "bitware-session-token"
	KeyKAMContext = "bitware-kam-context"
)

// DefaultTTL is how long a session lives when the backend does not say.
const DefaultTTL = 12 * time.Hour

var (
	// ErrNotFound indicates the token has no live session.
	ErrNotFound = errors.New("session: not found")

	// ErrInvalidToken indicates an empty token.
	ErrInvalidToken = errors.New("session: invalid token")
)

// Info is one logged-in browser session.
type Info struct {
	Token      string
	User       api.User
	KAMContext api.KAMContext
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the session is past its expiry at now.
func (i Info) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// Store keeps sessions by token.
type Store interface {
	// Get returns the live session for token or ErrNotFound.
	Get(ctx context.Context, token string) (Info, error)

	// Put creates or replaces the session stored under info.Token.
	Put(ctx context.Context, info Info) error

	// Delete removes token. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error
}

// FromLogin builds the session for a successful backend login. Sessions
// without a backend expiry get ttl.
func FromLogin(res api.LoginResult, now time.Time, ttl time.Duration) Info {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	exp := res.ExpiresAt
	if exp.IsZero() || exp.After(now.Add(ttl)) {
		exp = now.Add(ttl)
	}
	return Info{
		Token:      res.SessionToken,
		User:       res.User,
		KAMContext: res.KAMContext,
		CreatedAt:  now,
		ExpiresAt:  exp,
	}
}
