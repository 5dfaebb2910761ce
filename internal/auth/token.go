// Package auth carries studio session identity: who the caller is and
// the bearer token that proves it to the secrets broker.
package auth

import (
	"context"
	"sync"
	"time"
)

// Session is an authenticated studio identity.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenSource yields the current session. A nil session with a nil error
// means no one is signed in; callers treat that as "authentication
// required" rather than a fault.
type TokenSource interface {
	Session(ctx context.Context) (*Session, error)
}

// StaticTokenSource always returns the same session. Useful for CLI
// commands that mint a session once at startup, and for tests.
type StaticTokenSource struct {
	S *Session
}

var _ TokenSource = (*StaticTokenSource)(nil)

// Session implements TokenSource.
func (s *StaticTokenSource) Session(context.Context) (*Session, error) {
	return s.S, nil
}

// remintMargin is how close to expiry a session may get before the
// MintingTokenSource replaces it.
const remintMargin = time.Minute

// MintingTokenSource mints sessions for a fixed identity and replaces
// them as they near expiry. Long-running processes use this so their
// broker credentials never go stale.
type MintingTokenSource struct {
	Manager *Manager
	UserID  string
	Name    string

	mu      sync.Mutex
	current *Session
}

var _ TokenSource = (*MintingTokenSource)(nil)

// Session implements TokenSource.
func (m *MintingTokenSource) Session(context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && time.Until(m.current.ExpiresAt) > remintMargin {
		return m.current, nil
	}

	s, err := m.Manager.Mint(m.UserID, m.Name)
	if err != nil {
		return nil, err
	}
	m.current = s
	return s, nil
}
