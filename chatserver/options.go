package chatserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/cyberinferno/udpchat/logger"
)

// DefaultClientMax is the number of sessions a server admits by default.
const DefaultClientMax = 5

// ErrInvalidOption is wrapped by every option that rejects its argument.
var ErrInvalidOption = errors.New("chatserver: invalid option")

// Option configures a Server.
type Option func(*Server) error

// WithClientMax sets the maximum number of sessions. Zero means unlimited.
func WithClientMax(n int) Option {
	return func(s *Server) error {
		if n < 0 {
			return fmt.Errorf("%w: client max %d is negative", ErrInvalidOption, n)
		}
		s.clientMax = n
		return nil
	}
}

// WithSweepInterval sets the period of the liveness sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Server) error {
		if d <= 0 {
			return fmt.Errorf("%w: sweep interval %s is not positive", ErrInvalidOption, d)
		}
		s.liveness.Interval = d
		return nil
	}
}

// WithHeartbeatTimeout sets how long a session may stay silent.
func WithHeartbeatTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d <= 0 {
			return fmt.Errorf("%w: heartbeat timeout %s is not positive", ErrInvalidOption, d)
		}
		s.liveness.Timeout = d
		return nil
	}
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) error {
		if l == nil {
			return fmt.Errorf("%w: nil logger", ErrInvalidOption)
		}
		s.logger = l
		return nil
	}
}

// WithClock replaces time.Now for heartbeats and expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Server) error {
		if now == nil {
			return fmt.Errorf("%w: nil clock", ErrInvalidOption)
		}
		s.now = now
		return nil
	}
}
