// Package udpclient provides a connected UDP socket that reports received
// datagrams and errors to registered handlers.
package udpclient

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cyberinferno/udpchat/utils"
)

// ConnectionState represents the current state of the client socket.
type ConnectionState int

const (
	Disconnected ConnectionState = iota // No socket
	Connected                           // Socket open, receive loop running
	Closed                              // Closed for good
)

// String returns a human-readable name for the connection state.
func (cs ConnectionState) String() string {
	switch cs {
	case Disconnected:
		return "Disconnected"
	case Connected:
		return "Connected"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

var (
	// ErrClosed is returned by Connect and Send after Close.
	ErrClosed = errors.New("udpclient: client is closed")

	// ErrNotConnected is returned by Send before Connect.
	ErrNotConnected = errors.New("udpclient: not connected")

	// ErrAlreadyConnected is returned by a second Connect.
	ErrAlreadyConnected = errors.New("udpclient: already connected")
)

// DataReceivedEvent carries one received datagram.
type DataReceivedEvent struct {
	Data      []byte    // Owned by the handler
	Timestamp time.Time // When the datagram was read
}

// ErrorEvent carries a receive or send error.
type ErrorEvent struct {
	Error     error
	Timestamp time.Time
}

// DataReceivedHandler is called on the receive loop goroutine, one datagram
// at a time, in arrival order.
type DataReceivedHandler func(event DataReceivedEvent)

// ErrorHandler is called when a read or write fails.
type ErrorHandler func(event ErrorEvent)

// Config holds the client settings.
type Config struct {
	// Address is the server "host:port".
	Address string
	// ReadBufferSize is the receive buffer size.
	ReadBufferSize int
	// WriteTimeout bounds a single write; 0 means no timeout.
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config for address with a 4096-byte read buffer.
// Writes have no deadline.
func DefaultConfig(address string) Config {
	return Config{
		Address:        address,
		ReadBufferSize: 4096,
	}
}

// Client is a UDP client bound to one server address. Register handlers,
// then call Connect. It is safe for concurrent use.
type Client struct {
	config Config
	conn   *net.UDPConn
	state  ConnectionState

	onDataReceived DataReceivedHandler
	onError        ErrorHandler

	mu sync.RWMutex
	wg sync.WaitGroup
}

// New creates a Client in Disconnected state.
func New(config Config) *Client {
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = 4096
	}

	return &Client{
		config: config,
		state:  Disconnected,
	}
}

// OnDataReceived registers the handler for inbound datagrams, replacing any
// previous one. Pass nil to clear it.
func (c *Client) OnDataReceived(handler DataReceivedHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDataReceived = handler
}

// OnError registers the handler for I/O errors, replacing any previous one.
func (c *Client) OnError(handler ErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = handler
}

// Connect resolves the server address, opens the socket and starts the
// receive loop.
//
// Returns:
//   - ErrClosed, ErrAlreadyConnected, or a resolve/dial error
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Closed:
		return ErrClosed
	case Connected:
		return ErrAlreadyConnected
	}

	addr, err := net.ResolveUDPAddr("udp", c.config.Address)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", c.config.Address, err)
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.config.Address, err)
	}

	c.conn = conn
	c.state = Connected

	c.wg.Add(1)
	go c.readLoop(conn)

	return nil
}

// Send writes one datagram to the server.
//
// Returns:
//   - ErrNotConnected, ErrClosed, or the write error
func (c *Client) Send(data []byte) error {
	c.mu.RLock()
	conn, state := c.conn, c.state
	c.mu.RUnlock()

	switch state {
	case Closed:
		return ErrClosed
	case Disconnected:
		return ErrNotConnected
	}

	if c.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return err
		}
	}

	if _, err := conn.Write(data); err != nil {
		c.emitError(err)
		return fmt.Errorf("failed to send: %w", err)
	}

	return nil
}

// Close closes the socket and waits for the receive loop to exit. Calling it
// more than once is safe. It must not be called from a handler.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return nil
	}

	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	c.state = Closed
	c.mu.Unlock()

	c.wg.Wait()
	return err
}

// GetState returns the current connection state.
func (c *Client) GetState() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LocalAddr returns the local address of the socket, or nil when not connected.
func (c *Client) LocalAddr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn == nil {
		return nil
	}

	return c.conn.LocalAddr()
}

func (c *Client) readLoop(conn *net.UDPConn) {
	defer c.wg.Done()

	buffer := make([]byte, c.config.ReadBufferSize)
	for {
		n, err := conn.Read(buffer)
		if c.isClosed() {
			return
		}

		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			// A refused port (ICMP) surfaces as a read error on a
			// connected socket; the loop keeps listening.
			c.emitError(err)
			continue
		}

		data := utils.CopyBytes(buffer, n)
		c.emitDataReceived(data)
	}
}

func (c *Client) emitDataReceived(data []byte) {
	c.mu.RLock()
	handler := c.onDataReceived
	c.mu.RUnlock()

	if handler != nil {
		handler(DataReceivedEvent{Data: data, Timestamp: time.Now()})
	}
}

func (c *Client) emitError(err error) {
	c.mu.RLock()
	handler := c.onError
	c.mu.RUnlock()

	if handler != nil {
		handler(ErrorEvent{Error: err, Timestamp: time.Now()})
	}
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == Closed
}
