// Package chatserver is the server side of the chat protocol. It decodes
// each inbound datagram, applies it to the session registry and answers
// with J_OK, J_ERR, DATA or LIST datagrams through a Transport.
package chatserver

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/cyberinferno/udpchat/chatproto"
	"github.com/cyberinferno/udpchat/liveness"
	"github.com/cyberinferno/udpchat/logger"
	"github.com/cyberinferno/udpchat/registry"
)

// Transport delivers datagrams to peers. udpserver.UDPServer implements it.
type Transport interface {
	SendTo(to netip.AddrPort, data []byte) error
}

// Server holds the session registry and dispatches commands.
type Server struct {
	transport Transport
	registry  *registry.Registry
	monitor   *liveness.Monitor
	logger    logger.Logger
	now       func() time.Time
	clientMax int
	liveness  liveness.Config

	mu            sync.RWMutex
	subscriptions []*subscription
}

// New creates a Server that replies through transport.
//
// Parameters:
//   - transport: Outbound datagram sink
//   - opts: Options such as WithClientMax or WithLogger
//
// Returns:
//   - The Server, or the first option error
func New(transport Transport, opts ...Option) (*Server, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidOption)
	}

	s := &Server{
		transport: transport,
		logger:    logger.NewNopLogger(),
		now:       time.Now,
		clientMax: DefaultClientMax,
		liveness:  liveness.DefaultConfig(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	s.logger = s.logger.With(logger.Field{Key: "component", Value: "chatserver"})
	s.registry = registry.New(s.clientMax)

	monitor, err := liveness.New(s.registry, s.liveness, s.onSweep, s.now, s.logger)
	if err != nil {
		return nil, err
	}
	s.monitor = monitor

	return s, nil
}

// Registry returns the session registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Run runs the liveness monitor until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.monitor.Run(ctx)
}

// Sweep runs one liveness pass immediately.
func (s *Server) Sweep() []*registry.Session {
	return s.monitor.Sweep()
}

// Handle processes one datagram from a peer. It is safe to call from
// several goroutines.
func (s *Server) Handle(from netip.AddrPort, payload []byte) {
	if len(payload) > chatproto.MaxDatagramSize {
		s.fail(from, chatproto.ErrSyntaxUnknown, payload)
		return
	}

	cmd := chatproto.Decode(payload)
	switch cmd.Kind {
	case chatproto.Join:
		s.handleJoin(from, cmd, payload)
	case chatproto.Data:
		s.handleData(from, cmd, payload)
	case chatproto.Heartbeat:
		s.handleHeartbeat(from, cmd, payload)
	case chatproto.Quit:
		s.handleQuit(from, cmd, payload)
	default:
		s.fail(from, chatproto.ErrCommandUnknown, payload)
	}
}

func (s *Server) handleJoin(from netip.AddrPort, cmd chatproto.Command, payload []byte) {
	username := cmd.Argument
	if username == "" {
		s.fail(from, chatproto.ErrSyntaxUnknown, payload)
		return
	}
	if !chatproto.ValidUsername(username) {
		s.fail(from, chatproto.ErrUsernameInvalid, payload)
		return
	}

	// Loopback peers may run several clients behind one endpoint, so a
	// second name there is a new session rather than a rename.
	rebind := !chatproto.IsLoopbackAddr(from.Addr())

	admission, err := s.registry.Admit(username, from, rebind, s.now())
	switch {
	case errors.Is(err, registry.ErrUsernameTaken):
		s.fail(from, chatproto.ErrUsernameTaken, payload)
		return
	case errors.Is(err, registry.ErrFull):
		s.fail(from, chatproto.ErrServerFull, payload)
		return
	case err != nil:
		s.logger.Error("admission failed", logger.Field{Key: "error", Value: err})
		return
	}

	s.logger.Info("user joined",
		logger.Field{Key: "session", Value: admission.Session.ID()},
		logger.Field{Key: "username", Value: username},
		logger.Field{Key: "endpoint", Value: from.String()},
		logger.Field{Key: "rebound", Value: admission.Rebound},
	)

	s.send(from, chatproto.Encode(chatproto.TagJoined, ""))
	s.broadcastUserList()
	s.notify(func(o Observer) { o.OnJoined(username, from) })
}

func (s *Server) handleData(from netip.AddrPort, cmd chatproto.Command, payload []byte) {
	session, ok := s.registry.FindByEndpoint(from)
	if !ok {
		s.fail(from, chatproto.ErrClientNotAccepted, payload)
		return
	}

	username, message, err := chatproto.ParseData(cmd.Argument)
	if err != nil {
		s.fail(from, chatproto.ErrSyntaxUnknown, payload)
		return
	}

	if session.Username() != username {
		if !chatproto.IsLoopbackAddr(from.Addr()) {
			s.fail(from, chatproto.ErrSyntaxUnknown, payload)
			return
		}
		if _, ok := s.registry.FindByEndpointAndUsername(from, username); !ok {
			s.fail(from, chatproto.ErrSyntaxUnknown, payload)
			return
		}
	}

	s.notify(func(o Observer) { o.OnMessageReceived(username, message) })
	s.broadcast(chatproto.EncodeData(username, message))
}

func (s *Server) handleHeartbeat(from netip.AddrPort, cmd chatproto.Command, payload []byte) {
	session, chatErr := s.lookup(from, cmd.Argument)
	if !chatErr.IsZero() {
		s.fail(from, chatErr, payload)
		return
	}

	session.Touch(s.now())
}

func (s *Server) handleQuit(from netip.AddrPort, cmd chatproto.Command, payload []byte) {
	session, chatErr := s.lookup(from, cmd.Argument)
	if chatErr == chatproto.ErrSyntaxUnknown {
		s.fail(from, chatErr, payload)
		return
	}

	removed := s.registry.Remove(session) > 0
	if removed {
		s.logger.Info("user quit",
			logger.Field{Key: "session", Value: session.ID()},
			logger.Field{Key: "username", Value: session.Username()},
			logger.Field{Key: "endpoint", Value: from.String()},
		)
	}

	s.broadcastUserList()

	if removed {
		username := session.Username()
		s.notify(func(o Observer) { o.OnLeft(username, from, false) })
	}
}

// lookup finds the session a HEARTBEAT or QUIT refers to. Loopback peers must
// name it; everybody else is identified by endpoint.
func (s *Server) lookup(from netip.AddrPort, argument string) (*registry.Session, chatproto.ChatError) {
	if chatproto.IsLoopbackAddr(from.Addr()) {
		if argument == "" {
			return nil, chatproto.ErrSyntaxUnknown
		}
		if session, ok := s.registry.FindByEndpointAndUsername(from, argument); ok {
			return session, chatproto.ChatError{}
		}
		return nil, chatproto.ErrClientNotAccepted
	}

	if session, ok := s.registry.FindByEndpoint(from); ok {
		return session, chatproto.ChatError{}
	}
	return nil, chatproto.ErrClientNotAccepted
}

func (s *Server) onSweep(evicted []*registry.Session) {
	s.broadcastUserList()

	for _, session := range evicted {
		username, endpoint := session.Username(), session.Endpoint()
		s.notify(func(o Observer) { o.OnLeft(username, endpoint, true) })
	}
}

// fail answers the peer with J_ERR and reports the error to observers.
func (s *Server) fail(from netip.AddrPort, chatErr chatproto.ChatError, payload []byte) {
	s.logger.Warn("protocol error",
		logger.Field{Key: "endpoint", Value: from.String()},
		logger.Field{Key: "code", Value: chatErr.Code},
		logger.Field{Key: "error", Value: chatErr.Label},
		logger.Field{Key: "payload", Value: string(payload)},
	)

	s.send(from, chatproto.EncodeError(chatErr))

	event := ErrorEvent{Endpoint: from, Error: chatErr, Payload: payload}
	s.notify(func(o Observer) { o.OnError(event) })
}

func (s *Server) send(to netip.AddrPort, data []byte) bool {
	if err := s.transport.SendTo(to, data); err != nil {
		s.logger.Error("send failed",
			logger.Field{Key: "to", Value: to.String()},
			logger.Field{Key: "error", Value: err},
		)
		return false
	}

	return true
}
