// Package registry holds the authoritative set of chat sessions on the
// server. Every read and write goes through one lock, so a duplicate check
// and the insertion that follows it are a single step for other callers.
package registry

import (
	"errors"
	"net/netip"
	"sync"
	"time"
)

var (
	// ErrUsernameTaken is returned when the username is bound to another endpoint.
	ErrUsernameTaken = errors.New("registry: username is taken")

	// ErrFull is returned when the registry already holds its maximum number of sessions.
	ErrFull = errors.New("registry: registry is full")
)

// Registry is a concurrency-safe, insertion-ordered set of sessions. The
// backing slice is never handed out; Snapshot returns a copy.
type Registry struct {
	mu        sync.RWMutex
	sessions  []*Session
	clientMax int
}

// New creates an empty Registry that admits at most clientMax sessions. A
// clientMax of zero or less means no limit.
//
// Parameters:
//   - clientMax: The maximum number of concurrent sessions
//
// Returns:
//   - A new, empty *Registry
func New(clientMax int) *Registry {
	return &Registry{clientMax: clientMax}
}

// Admission describes the outcome of a successful Admit.
type Admission struct {
	Session *Session
	// Rebound is true when an existing session of the endpoint took the new username.
	Rebound bool
	// Created is true when a new session was added.
	Created bool
}

// Admit binds username to endpoint in one critical section:
//
//  1. a username held by a different endpoint fails with ErrUsernameTaken;
//  2. a session already binding this username to this endpoint is refreshed;
//  3. with rebind set, an existing session of the endpoint takes the new username;
//  4. a full registry fails with ErrFull;
//  5. otherwise a new session is created.
//
// Admitted sessions have their heartbeat set to now.
//
// Parameters:
//   - username: The requested username, already validated by the caller
//   - endpoint: The peer's address and port
//   - rebind: Whether an existing session of the endpoint may be renamed
//   - now: The admission time
//
// Returns:
//   - The admission outcome, or ErrUsernameTaken / ErrFull
func (r *Registry) Admit(username string, endpoint netip.AddrPort, rebind bool, now time.Time) (Admission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.Username() == username && s.endpoint != endpoint {
			return Admission{}, ErrUsernameTaken
		}
	}

	if s := r.findLocked(endpoint, username); s != nil {
		s.Touch(now)
		return Admission{Session: s}, nil
	}

	if rebind {
		if s := r.findLocked(endpoint, ""); s != nil {
			s.rebind(username)
			s.Touch(now)
			return Admission{Session: s, Rebound: true}, nil
		}
	}

	if r.clientMax > 0 && len(r.sessions) >= r.clientMax {
		return Admission{}, ErrFull
	}

	s := newSession(username, endpoint, now)
	r.sessions = append(r.sessions, s)
	return Admission{Session: s, Created: true}, nil
}

// Add creates a new session for username at endpoint. Uniqueness of the
// username and capacity are verified under the same lock as the insertion.
//
// Returns:
//   - The new session, or ErrUsernameTaken / ErrFull
func (r *Registry) Add(username string, endpoint netip.AddrPort, now time.Time) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.takenLocked(username) {
		return nil, ErrUsernameTaken
	}
	if r.clientMax > 0 && len(r.sessions) >= r.clientMax {
		return nil, ErrFull
	}

	s := newSession(username, endpoint, now)
	r.sessions = append(r.sessions, s)
	return s, nil
}

// FindByEndpoint returns the first session bound to endpoint.
func (r *Registry) FindByEndpoint(endpoint netip.AddrPort) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.findLocked(endpoint, "")
	return s, s != nil
}

// FindByEndpointAndUsername returns the session binding username to endpoint.
func (r *Registry) FindByEndpointAndUsername(endpoint netip.AddrPort, username string) (*Session, bool) {
	if username == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.findLocked(endpoint, username)
	return s, s != nil
}

// Remove deletes the given sessions. Nil and unknown sessions are ignored.
//
// Returns:
//   - The number of sessions actually removed
func (r *Registry) Remove(sessions ...*Session) int {
	if len(sessions) == 0 {
		return 0
	}

	drop := make(map[*Session]struct{}, len(sessions))
	for _, s := range sessions {
		if s != nil {
			drop[s] = struct{}{}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.sessions[:0]
	removed := 0
	for _, s := range r.sessions {
		if _, ok := drop[s]; ok {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	for i := len(kept); i < len(r.sessions); i++ {
		r.sessions[i] = nil
	}
	r.sessions = kept

	return removed
}

// Snapshot returns the current sessions in admission order.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]*Session, len(r.sessions))
	copy(snapshot, r.sessions)
	return snapshot
}

// Usernames returns the bound usernames in admission order.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sessions))
	for _, s := range r.sessions {
		names = append(names, s.Username())
	}
	return names
}

// Count returns the number of sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IsUsernameTaken reports whether any session holds username.
func (r *Registry) IsUsernameTaken(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.takenLocked(username)
}

// Capacity returns the configured maximum, zero meaning unlimited.
func (r *Registry) Capacity() int {
	return r.clientMax
}

// findLocked returns the first session at endpoint, restricted to username
// when it is non-empty. Caller must hold r.mu.
func (r *Registry) findLocked(endpoint netip.AddrPort, username string) *Session {
	for _, s := range r.sessions {
		if s.endpoint != endpoint {
			continue
		}
		if username == "" || s.Username() == username {
			return s
		}
	}

	return nil
}

func (r *Registry) takenLocked(username string) bool {
	for _, s := range r.sessions {
		if s.Username() == username {
			return true
		}
	}

	return false
}
