// Package chatclient is the client side of the chat protocol: it joins a
// server, keeps the session alive with heartbeats and turns server datagrams
// into observer callbacks.
package chatclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cyberinferno/udpchat/chatproto"
	"github.com/cyberinferno/udpchat/logger"
)

const (
	// DefaultHeartbeatDelay is the wait before the first heartbeat.
	DefaultHeartbeatDelay = 5 * time.Second

	// DefaultHeartbeatInterval is the period of the following heartbeats.
	DefaultHeartbeatInterval = 60 * time.Second
)

var (
	// ErrNotJoined is returned by SendMessage before the server accepted the join.
	ErrNotJoined = errors.New("chatclient: not joined")

	// ErrAlreadyJoined is returned by Join while a session is active.
	ErrAlreadyJoined = errors.New("chatclient: already joined")

	// ErrInvalidUsername is returned by Join for names the server would refuse.
	ErrInvalidUsername = errors.New("chatclient: username must be 3 to 15 letters, digits, '-' or '_'")

	// ErrUnknownErrorCode is reported when a J_ERR carries no known code.
	ErrUnknownErrorCode = errors.New("chatclient: unknown error code")

	// ErrUnexpectedCommand is reported for datagrams a server never sends.
	ErrUnexpectedCommand = errors.New("chatclient: unexpected command")
)

// State is the client's position in the join lifecycle.
type State int

const (
	Disconnected State = iota
	Joining
	Joined
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Joining:
		return "Joining"
	case Joined:
		return "Joined"
	default:
		return "Unknown"
	}
}

// Transport carries datagrams to and from the server. udpclient.Client
// implements it.
type Transport interface {
	Send(data []byte) error
	Close() error
}

// Config holds the client settings.
type Config struct {
	// Host is the server host as the user gave it. A loopback host makes the
	// client name itself in IMAV and QUIT.
	Host              string
	HeartbeatDelay    time.Duration
	HeartbeatInterval time.Duration
	Logger            logger.Logger
}

// DefaultConfig returns a Config for host with the default heartbeat timing.
func DefaultConfig(host string) Config {
	return Config{
		Host:              host,
		HeartbeatDelay:    DefaultHeartbeatDelay,
		HeartbeatInterval: DefaultHeartbeatInterval,
	}
}

// Client drives one chat session over a Transport. Inbound datagrams are fed
// in through HandleDatagram.
type Client struct {
	transport Transport
	config    Config
	loopback  bool
	logger    logger.Logger

	mu            sync.Mutex
	state         State
	username      string
	users         []string
	stopHeartbeat context.CancelFunc
	heartbeatDone chan struct{}

	subMu         sync.RWMutex
	subscriptions []*subscription
}

// New creates a Disconnected client. Zero heartbeat durations fall back to
// the defaults.
func New(transport Transport, config Config) *Client {
	if config.HeartbeatDelay <= 0 {
		config.HeartbeatDelay = DefaultHeartbeatDelay
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = DefaultHeartbeatInterval
	}

	log := config.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Client{
		transport: transport,
		config:    config,
		loopback:  chatproto.IsLoopbackHost(config.Host),
		logger:    log.With(logger.Field{Key: "component", Value: "chatclient"}),
		state:     Disconnected,
	}
}

// Join asks the server for username. The client is Joining until J_OK or a
// J_ERR arrives. Calling Join again while Joining retries the request.
//
// Returns:
//   - ErrInvalidUsername, ErrAlreadyJoined, or the send error
func (c *Client) Join(username string) error {
	if !chatproto.ValidUsername(username) {
		return ErrInvalidUsername
	}

	c.mu.Lock()
	if c.state == Joined {
		c.mu.Unlock()
		return ErrAlreadyJoined
	}
	c.state = Joining
	c.username = username
	c.mu.Unlock()

	if err := c.transport.Send(chatproto.Encode(chatproto.TagJoin, username)); err != nil {
		c.mu.Lock()
		c.state = Disconnected
		c.mu.Unlock()
		return fmt.Errorf("failed to send join: %w", err)
	}

	c.logger.Debug("join sent", logger.Field{Key: "username", Value: username})
	return nil
}

// SendMessage sends a chat line as the joined user.
//
// Returns:
//   - ErrNotJoined, chatproto.ErrEmptyMessage, or the send error
func (c *Client) SendMessage(text string) error {
	c.mu.Lock()
	state, username := c.state, c.username
	c.mu.Unlock()

	if state != Joined {
		return ErrNotJoined
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return chatproto.ErrEmptyMessage
	}

	if err := c.transport.Send(chatproto.EncodeData(username, text)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// Disconnect stops the heartbeat, tells the server the session is over and
// closes the transport. It must not be called from a transport handler.
//
// Returns:
//   - The QUIT send error and the close error, joined
func (c *Client) Disconnect() error {
	c.mu.Lock()
	username, state := c.username, c.state
	c.state = Disconnected
	c.users = nil
	c.mu.Unlock()

	c.haltHeartbeat()

	var quitErr error
	if state != Disconnected {
		quitErr = c.transport.Send(c.identified(chatproto.TagQuit, username))
	}

	return errors.Join(quitErr, c.transport.Close())
}

// HandleDatagram applies one datagram received from the server.
func (c *Client) HandleDatagram(payload []byte) {
	cmd := chatproto.Decode(payload)

	switch cmd.Kind {
	case chatproto.Joined:
		c.handleJoined()
	case chatproto.Data:
		username, message, err := chatproto.ParseData(cmd.Argument)
		if err != nil {
			c.protocolError(payload, err)
			return
		}
		c.notify(func(o Observer) { o.OnMessageReceived(username, message) })
	case chatproto.UserList:
		users := strings.Fields(cmd.Argument)
		c.mu.Lock()
		c.users = users
		c.mu.Unlock()

		snapshot := append([]string(nil), users...)
		c.notify(func(o Observer) { o.OnUserList(snapshot) })
	case chatproto.Error:
		chatErr, ok := chatproto.ParseError(cmd.Argument)
		if !ok {
			c.protocolError(payload, ErrUnknownErrorCode)
			return
		}
		c.handleError(chatErr)
	default:
		c.protocolError(payload, ErrUnexpectedCommand)
	}
}

// UsersOnline returns the last user list received from the server.
func (c *Client) UsersOnline() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.users...)
}

// Username returns the requested or joined username, or "" before Join.
func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// State returns the current state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) handleJoined() {
	c.mu.Lock()
	if state := c.state; state != Joining {
		c.mu.Unlock()
		c.logger.Debug("ignoring J_OK", logger.Field{Key: "state", Value: state.String()})
		return
	}

	c.state = Joined
	username := c.username
	c.startHeartbeatLocked(c.identified(chatproto.TagHeartbeat, username))
	c.mu.Unlock()

	c.logger.Info("joined", logger.Field{Key: "username", Value: username})
	c.notify(func(o Observer) { o.OnJoined(username) })
}

func (c *Client) handleError(chatErr chatproto.ChatError) {
	if chatErr.Terminal() {
		c.mu.Lock()
		c.state = Disconnected
		c.mu.Unlock()
		c.haltHeartbeat()
	}

	c.logger.Warn("server error",
		logger.Field{Key: "code", Value: chatErr.Code},
		logger.Field{Key: "error", Value: chatErr.Label},
	)
	c.notify(func(o Observer) { o.OnError(chatErr) })
}

func (c *Client) protocolError(payload []byte, err error) {
	c.logger.Warn("discarding datagram",
		logger.Field{Key: "payload", Value: string(payload)},
		logger.Field{Key: "error", Value: err},
	)
	c.notify(func(o Observer) { o.OnProtocolError(payload, err) })
}

// identified builds IMAV or QUIT, naming the user when the server is on
// loopback.
func (c *Client) identified(tag string, username string) []byte {
	if c.loopback {
		return chatproto.Encode(tag, username)
	}
	return chatproto.Encode(tag, "")
}
