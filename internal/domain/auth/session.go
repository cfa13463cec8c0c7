package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentspot/internal/domain/user"
)

var (
	ErrTokenRequired   = errors.New("auth: token is required")
	ErrUserRequired    = errors.New("auth: user is required")
	ErrTTLInvalid      = errors.New("auth: ttl must be positive")
	ErrSessionNotFound = errors.New("auth: session not found")
)

// Token is an opaque bearer credential.
type Token string

// Session binds a bearer token to a user until ExpiresAt. Roles are not
// cached here; they are read from the user on every request so a block or
// role change takes effect at once.
type Session struct {
	Token     Token
	UserID    user.ID
	CreatedAt time.Time
	ExpiresAt time.Time
}

func NewSession(token Token, userID user.ID, ttl time.Duration, now time.Time) (*Session, error) {
	token = Token(strings.TrimSpace(string(token)))
	switch {
	case token == "":
		return nil, ErrTokenRequired
	case strings.TrimSpace(string(userID)) == "":
		return nil, ErrUserRequired
	case ttl <= 0:
		return nil, ErrTTLInvalid
	}
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &Session{Token: token, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(ttl)}, nil
}

func (s *Session) Expired(at time.Time) bool {
	return !s.ExpiresAt.After(at)
}

// Remaining is the time left before expiry, never negative.
func (s *Session) Remaining(at time.Time) time.Duration {
	if d := s.ExpiresAt.Sub(at); d > 0 {
		return d
	}
	return 0
}

type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, token Token) (*Session, error)
	Delete(ctx context.Context, token Token) error
	DeleteByUser(ctx context.Context, userID user.ID) error
}
