// Package liveness evicts sessions whose heartbeat has expired. A Monitor
// sweeps the registry on a fixed period; each sweep removes every expired
// session in one batch and then reports the batch to a callback.
package liveness

import (
	"context"
	"errors"
	"time"

	"github.com/cyberinferno/udpchat/logger"
	"github.com/cyberinferno/udpchat/perfmonitor"
	"github.com/cyberinferno/udpchat/registry"
)

const (
	// DefaultInterval is the period between two sweeps.
	DefaultInterval = 90 * time.Second

	// DefaultTimeout is how long a session may stay silent before eviction.
	DefaultTimeout = 60 * time.Second
)

// ErrInvalidConfig is returned by New when a duration is not positive.
var ErrInvalidConfig = errors.New("liveness: interval and timeout must be positive")

// SweepFunc receives the sessions removed by one sweep. It is called after
// every sweep, with an empty slice when nothing expired.
type SweepFunc func(evicted []*registry.Session)

// Config holds the sweep timing.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultConfig returns a Config with DefaultInterval and DefaultTimeout.
func DefaultConfig() Config {
	return Config{
		Interval: DefaultInterval,
		Timeout:  DefaultTimeout,
	}
}

// Monitor periodically removes expired sessions from a registry.
type Monitor struct {
	registry *registry.Registry
	config   Config
	onSweep  SweepFunc
	now      func() time.Time
	logger   logger.Logger
}

// New creates a Monitor over reg.
//
// Parameters:
//   - reg: The registry to sweep
//   - config: Sweep interval and heartbeat timeout
//   - onSweep: Called after every sweep; may be nil
//   - now: Clock used to evaluate expiry; nil selects time.Now
//   - log: Logger for sweep reports; nil discards them
//
// Returns:
//   - The Monitor, or ErrInvalidConfig
func New(reg *registry.Registry, config Config, onSweep SweepFunc, now func() time.Time, log logger.Logger) (*Monitor, error) {
	if config.Interval <= 0 || config.Timeout <= 0 {
		return nil, ErrInvalidConfig
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Monitor{
		registry: reg,
		config:   config,
		onSweep:  onSweep,
		now:      now,
		logger:   log,
	}, nil
}

// Config returns the monitor's timing.
func (m *Monitor) Config() Config {
	return m.config
}

// Sweep runs one eviction pass. The current time is read once; a session is
// expired when its last heartbeat plus the timeout lies strictly before it.
// A heartbeat that lands while the pass is running may or may not save its
// session; the next pass sees the fresh timestamp either way.
//
// Returns:
//   - The evicted sessions, in registry order
func (m *Monitor) Sweep() []*registry.Session {
	perf := perfmonitor.NewPerformanceMonitor()
	perf.Start()

	now := m.now()
	var expired []*registry.Session
	for _, s := range m.registry.Snapshot() {
		if s.Expired(now, m.config.Timeout) {
			expired = append(expired, s)
		}
	}

	removed := m.registry.Remove(expired...)
	perf.Stop()

	for _, s := range expired {
		m.logger.Info("session expired",
			logger.Field{Key: "session", Value: s.ID()},
			logger.Field{Key: "username", Value: s.Username()},
			logger.Field{Key: "endpoint", Value: s.Endpoint().String()},
			logger.Field{Key: "last_heartbeat", Value: s.LastHeartbeat()},
		)
	}
	m.logger.Debug("liveness sweep finished",
		logger.Field{Key: "evicted", Value: removed},
		logger.Field{Key: "remaining", Value: m.registry.Count()},
		logger.Field{Key: "elapsed_ms", Value: perf.ElapsedMilliseconds()},
	)

	if m.onSweep != nil {
		m.onSweep(expired)
	}

	return expired
}

// Run sweeps every Interval until ctx is done. The first sweep happens one
// Interval after Run is called.
//
// Returns:
//   - ctx.Err() once the context is cancelled
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.logger.Info("liveness monitor started",
		logger.Field{Key: "interval", Value: m.config.Interval.String()},
		logger.Field{Key: "timeout", Value: m.config.Timeout.String()},
	)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("liveness monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.Sweep()
		}
	}
}
