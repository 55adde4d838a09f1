// Package session provides persistence for admin authoring sessions with
// pluggable backends: an in-memory store for single-server deployments
// and a SQL store sharing the content database.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// ErrStoreClosed is returned when operations are attempted on a closed
// store.
var ErrStoreClosed = errors.New("session: store is closed")

// Session is an authenticated authoring-area session.
type Session struct {
	// ID is the opaque session identifier carried in the cookie.
	ID string `json:"id"`

	// UserID identifies the signed-in user.
	UserID string `json:"user_id"`

	// Email and Name mirror the user record at sign-in time.
	Email string `json:"email"`
	Name  string `json:"name"`

	// Role is the user's role at sign-in time.
	Role string `json:"role"`

	// CreatedAt is when the session was established.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is when the session stops being valid.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Store is the interface for session persistence backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save persists the session, overwriting any existing record with
	// the same ID.
	Save(ctx context.Context, s *Session) error

	// Load retrieves a session by ID.
	// Returns (nil, nil) if the session doesn't exist or has expired.
	// Returns (nil, err) on backend errors.
	Load(ctx context.Context, id string) (*Session, error)

	// Delete removes a session. Deleting a missing session is not an
	// error.
	Delete(ctx context.Context, id string) error

	// Touch extends the expiration time without rewriting session data.
	// Touching a missing session is not an error.
	Touch(ctx context.Context, id string, expiresAt time.Time) error

	// Close releases any resources held by the store.
	Close() error
}

// NewID generates a cryptographically random session ID.
func NewID() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
