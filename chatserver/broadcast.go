package chatserver

import (
	"net/netip"

	"github.com/cyberinferno/udpchat/chatproto"
)

// broadcast sends payload once to every endpoint in the registry snapshot.
// Loopback sessions sharing an endpoint get a single copy.
func (s *Server) broadcast(payload []byte) {
	sessions := s.registry.Snapshot()
	seen := make(map[netip.AddrPort]struct{}, len(sessions))

	recipients := 0
	for _, session := range sessions {
		endpoint := session.Endpoint()
		if _, ok := seen[endpoint]; ok {
			continue
		}
		seen[endpoint] = struct{}{}

		if s.send(endpoint, payload) {
			recipients++
		}
	}

	s.notify(func(o Observer) { o.OnBroadcast(payload, recipients) })
}

// broadcastUserList sends LIST with the usernames in registry order.
func (s *Server) broadcastUserList() {
	users := s.registry.Usernames()
	s.broadcast(chatproto.EncodeUserList(users))
	s.notify(func(o Observer) { o.OnUserList(users) })
}
