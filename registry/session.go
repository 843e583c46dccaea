package registry

import (
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session is the server-side record of a joined client: a username bound to
// an endpoint, plus the time of the last heartbeat. Sessions are created and
// owned by a Registry; everybody else holds references.
type Session struct {
	id            string
	endpoint      netip.AddrPort
	username      atomic.Value
	lastHeartbeat atomic.Int64
}

func newSession(username string, endpoint netip.AddrPort, now time.Time) *Session {
	s := &Session{
		id:       uuid.NewString(),
		endpoint: endpoint,
	}
	s.username.Store(username)
	s.lastHeartbeat.Store(now.UnixNano())
	return s
}

// ID returns the session's unique identifier, used for log correlation.
func (s *Session) ID() string {
	return s.id
}

// Endpoint returns the address and port the session is bound to.
func (s *Session) Endpoint() netip.AddrPort {
	return s.endpoint
}

// Username returns the username currently bound to the session.
func (s *Session) Username() string {
	return s.username.Load().(string)
}

// LastHeartbeat returns the time of the last heartbeat, or of admission if
// none has been received yet.
func (s *Session) LastHeartbeat() time.Time {
	return time.Unix(0, s.lastHeartbeat.Load())
}

// Touch records a heartbeat at t. It does not take the registry lock.
func (s *Session) Touch(t time.Time) {
	s.lastHeartbeat.Store(t.UnixNano())
}

// Expired reports whether the last heartbeat plus timeout lies strictly
// before now.
func (s *Session) Expired(now time.Time, timeout time.Duration) bool {
	return s.LastHeartbeat().Add(timeout).Before(now)
}

// rebind is only called with the registry write lock held.
func (s *Session) rebind(username string) {
	s.username.Store(username)
}
