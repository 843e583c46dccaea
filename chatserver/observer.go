package chatserver

import (
	"net/netip"

	"github.com/cyberinferno/udpchat/chatproto"
)

// ErrorEvent describes a protocol error answered with J_ERR.
type ErrorEvent struct {
	Endpoint netip.AddrPort
	Error    chatproto.ChatError
	Payload  []byte
}

// Observer receives server events. Callbacks run synchronously on the
// goroutine that caused the event and never while the registry is locked.
type Observer interface {
	// OnJoined is called after a successful JOIN was acknowledged.
	OnJoined(username string, endpoint netip.AddrPort)
	// OnMessageReceived is called before a chat message is broadcast.
	OnMessageReceived(username string, message string)
	// OnBroadcast is called after payload was sent to recipients endpoints.
	OnBroadcast(payload []byte, recipients int)
	// OnError is called after a J_ERR reply was sent.
	OnError(event ErrorEvent)
	// OnUserList is called with every user list the server broadcasts.
	OnUserList(users []string)
	// OnLeft is called when a session ends, by QUIT or by eviction.
	OnLeft(username string, endpoint netip.AddrPort, evicted bool)
}

// BaseObserver implements Observer with no-ops. Embed it to handle only
// some events.
type BaseObserver struct{}

func (BaseObserver) OnJoined(string, netip.AddrPort) {}
func (BaseObserver) OnMessageReceived(string, string) {}
func (BaseObserver) OnBroadcast([]byte, int) {}
func (BaseObserver) OnError(ErrorEvent) {}
func (BaseObserver) OnUserList([]string) {}
func (BaseObserver) OnLeft(string, netip.AddrPort, bool) {}

type subscription struct {
	observer Observer
}

// Subscribe registers observer. Observers are notified in subscription order.
//
// Returns:
//   - A function that removes the observer; calling it again does nothing
func (s *Server) Subscribe(observer Observer) (unsubscribe func()) {
	sub := &subscription{observer: observer}

	s.mu.Lock()
	s.subscriptions = append(s.subscriptions, sub)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		for i, other := range s.subscriptions {
			if other == sub {
				s.subscriptions = append(s.subscriptions[:i:i], s.subscriptions[i+1:]...)
				return
			}
		}
	}
}

func (s *Server) notify(fn func(o Observer)) {
	s.mu.RLock()
	subscriptions := s.subscriptions
	s.mu.RUnlock()

	for _, sub := range subscriptions {
		fn(sub.observer)
	}
}
