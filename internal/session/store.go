package session

import (
	"context"
	"errors"
	"time"

	"identity-gate/internal/identity"
)

var ErrInvalidSession = errors.New("session: invalid session")

// Session is the server-side record behind a session cookie.
// It stores identity pointers only; roles live in the profile.
type Session struct {
	SessionID     string    `json:"session_id"`
	Subject       string    `json:"subject"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"` // absolute expiry
}

// Principal returns the provider-side view consumed by identity resolvers.
func (s Session) Principal() identity.Session {
	return identity.Session{
		Subject:       s.Subject,
		Email:         s.Email,
		EmailVerified: s.EmailVerified,
	}
}

// Expired reports whether the session is past its absolute expiry.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store defines how sessions are stored and retrieved.
// Get returns (nil, nil) for unknown or expired sessions.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, sessionID string) error
}
