// Package webapp provides the minimal host-application surface the
// harness drives: form login issuing a session cookie, a feature-flag
// snapshot, the current identity, and a readiness endpoint. It stands
// in for the real host in suites and in the stubapp binary.
//
// Per docs/plan.md: the harness conditions state the host reads; the
// stub host reads the same metadata store, so a suite can verify the
// conditioning end to end without the real application.
package webapp

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one logged-in session.
type Session struct {
	// ID is the opaque session identifier carried in the cookie.
	ID string

	// Username is the authenticated principal.
	Username string

	// Role is the principal's role as stored in the metadata store.
	Role string

	// CreatedAt is when the session was issued.
	CreatedAt time.Time

	// ExpiresAt is when the session stops resolving.
	ExpiresAt time.Time
}

// IsExpired checks if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// SessionStore issues and resolves session identifiers.
// It is thread-safe.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewSessionStore creates a session store. Sessions expire after ttl.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Issue creates a session for an authenticated principal.
func (s *SessionStore) Issue(username, role string) *Session {
	now := time.Now()
	session := &Session{
		ID:        uuid.NewString(),
		Username:  username,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session
}

// Resolve returns the session for an identifier. Expired sessions are
// dropped and do not resolve.
func (s *SessionStore) Resolve(id string) (*Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if session.IsExpired() {
		s.Revoke(id)
		return nil, false
	}
	return session, true
}

// Revoke drops a session. Revoking an unknown identifier is a no-op.
func (s *SessionStore) Revoke(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Active returns the number of live sessions.
func (s *SessionStore) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
