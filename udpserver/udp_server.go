// Package udpserver binds a UDP socket, hands every inbound datagram to a
// Handler and sends outbound datagrams through a single worker goroutine.
package udpserver

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/udpchat/logger"
	"github.com/cyberinferno/udpchat/utils"
)

const (
	// DefaultReadBufferSize is used when ReadBufferSize is zero. It is larger
	// than the chat payload limit so that oversized datagrams reach the
	// handler intact instead of being silently truncated.
	DefaultReadBufferSize = 4096

	// DefaultQueueSize is used when QueueSize is zero.
	DefaultQueueSize = 256
)

var (
	// ErrNotRunning is returned by SendTo before Start or after Stop.
	ErrNotRunning = errors.New("udpserver: server is not running")

	// ErrQueueFull is returned by SendTo when the outbound queue has no room.
	ErrQueueFull = errors.New("udpserver: outbound queue is full")
)

// Datagram is one inbound packet.
type Datagram struct {
	Data       []byte
	From       netip.AddrPort
	ReceivedAt time.Time
}

// Handler is called from the receive loop for every datagram. It runs on
// the loop goroutine; a slow handler delays the next read.
type Handler func(d Datagram)

type outboundDatagram struct {
	to   netip.AddrPort
	data []byte
}

// UDPServer receives datagrams on Addr and delivers them to Handler. Replies
// are queued with SendTo and written by one worker, so no send ever blocks
// the receive loop.
type UDPServer struct {
	Logger         logger.Logger
	Name           string
	Addr           string
	Handler        Handler
	ReadBufferSize int
	QueueSize      int
	Running        atomic.Bool

	mu       sync.RWMutex
	conn     *net.UDPConn
	outbound chan outboundDatagram
	stop     chan struct{}
	wg       sync.WaitGroup
}

// Start binds Addr and starts the receive loop and the send worker.
//
// Returns:
//   - An error if the server is already running or if binding Addr fails
func (s *UDPServer) Start() error {
	if s.Logger == nil {
		s.Logger = logger.NewNopLogger()
	}

	if s.Running.Load() {
		s.Logger.Error("server already running")
		return fmt.Errorf("server %s already running", s.Name)
	}

	addr, err := net.ResolveUDPAddr("udp", s.Addr)
	if err != nil {
		return fmt.Errorf("server %s failed to resolve %s: %w", s.Name, s.Addr, err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		s.Logger.Error("server failed to start", logger.Field{Key: "error", Value: err})
		return fmt.Errorf("server %s failed to start: %w", s.Name, err)
	}

	bufferSize := s.ReadBufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultReadBufferSize
	}
	queueSize := s.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	s.mu.Lock()
	s.conn = conn
	s.outbound = make(chan outboundDatagram, queueSize)
	s.stop = make(chan struct{})
	s.mu.Unlock()

	s.Running.Store(true)
	s.Logger.Info(fmt.Sprintf("%s server started", s.Name), logger.Field{Key: "addr", Value: conn.LocalAddr().String()})

	s.wg.Add(2)
	go s.receiveLoop(conn, bufferSize)
	go s.sendLoop(conn)

	return nil
}

// Stop closes the socket and waits for the loops to exit. Queued datagrams
// that were not yet written are dropped. Safe to call when not running.
func (s *UDPServer) Stop() {
	if !s.Running.CompareAndSwap(true, false) {
		return
	}

	s.mu.Lock()
	close(s.stop)
	_ = s.conn.Close()
	s.mu.Unlock()

	s.wg.Wait()
	s.Logger.Info(fmt.Sprintf("%s server stopped", s.Name))
}

// LocalAddr returns the bound address, or the zero value when not running.
func (s *UDPServer) LocalAddr() netip.AddrPort {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.conn == nil || !s.Running.Load() {
		return netip.AddrPort{}
	}

	return normalize(s.conn.LocalAddr().(*net.UDPAddr).AddrPort())
}

// SendTo queues data for delivery to the given endpoint. It never blocks;
// the write itself happens on the send worker, which logs failures.
//
// Parameters:
//   - to: Destination address and port
//   - data: Payload; copied before queueing
//
// Returns:
//   - ErrNotRunning or ErrQueueFull if the datagram was not queued
func (s *UDPServer) SendTo(to netip.AddrPort, data []byte) error {
	if !s.Running.Load() {
		return ErrNotRunning
	}

	s.mu.RLock()
	outbound, stop := s.outbound, s.stop
	s.mu.RUnlock()

	payload := utils.CopyBytes(data, len(data))

	select {
	case <-stop:
		return ErrNotRunning
	default:
	}

	select {
	case outbound <- outboundDatagram{to: to, data: payload}:
		return nil
	default:
		s.Logger.Warn("outbound queue full, datagram dropped", logger.Field{Key: "to", Value: to.String()})
		return ErrQueueFull
	}
}

func (s *UDPServer) receiveLoop(conn *net.UDPConn, bufferSize int) {
	defer s.wg.Done()

	s.mu.RLock()
	stop := s.stop
	s.mu.RUnlock()

	var retry retryDelay
	buffer := make([]byte, bufferSize)
	for {
		n, from, err := conn.ReadFromUDPAddrPort(buffer)
		if err != nil {
			if !s.Running.Load() {
				return
			}

			delay := retry.next()
			s.Logger.Error(fmt.Sprintf("%s server receive error", s.Name),
				logger.Field{Key: "error", Value: err},
				logger.Field{Key: "retry_in", Value: delay.String()},
			)

			select {
			case <-stop:
				return
			case <-time.After(delay):
			}
			continue
		}
		retry.reset()

		if s.Handler == nil {
			continue
		}

		data := utils.CopyBytes(buffer, n)
		s.Handler(Datagram{Data: data, From: normalize(from), ReceivedAt: time.Now()})
	}
}

func (s *UDPServer) sendLoop(conn *net.UDPConn) {
	defer s.wg.Done()

	s.mu.RLock()
	outbound, stop := s.outbound, s.stop
	s.mu.RUnlock()

	for {
		select {
		case <-stop:
			return
		case d := <-outbound:
			if _, err := conn.WriteToUDPAddrPort(d.data, d.to); err != nil {
				s.Logger.Error(fmt.Sprintf("%s server send error", s.Name),
					logger.Field{Key: "to", Value: d.to.String()},
					logger.Field{Key: "error", Value: err},
				)
			}
		}
	}
}

const (
	minRetryDelay = 5 * time.Millisecond
	maxRetryDelay = time.Second
)

// retryDelay is the pause after consecutive receive errors. It doubles from
// minRetryDelay up to maxRetryDelay until reset.
type retryDelay struct {
	d time.Duration
}

func (r *retryDelay) next() time.Duration {
	if r.d == 0 {
		r.d = minRetryDelay
	} else {
		r.d *= 2
	}
	if r.d > maxRetryDelay {
		r.d = maxRetryDelay
	}
	return r.d
}

func (r *retryDelay) reset() {
	r.d = 0
}

// normalize unmaps IPv4-mapped IPv6 addresses so that one peer always has
// the same identity.
func normalize(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
