package presence

import (
	"context"
	"sync"
	"time"

	"github.com/cyberinferno/udpchat/chatserver"
	"github.com/cyberinferno/udpchat/logger"
)

// DefaultTimeout bounds one store round trip made by a Mirror.
const DefaultTimeout = 2 * time.Second

// Mirror is a chatserver.Observer that copies every broadcast user list into
// a Store and logs the users that appeared or left since the previous list.
// Store calls run on the Mirror's own goroutine; OnUserList only hands the
// list over, and a list still waiting is replaced by a newer one.
type Mirror struct {
	chatserver.BaseObserver

	store   Store
	logger  logger.Logger
	timeout time.Duration

	mu      sync.Mutex
	closed  bool
	pending chan []string
	stop    chan struct{}
	done    chan struct{}
}

// NewMirror creates a Mirror writing to store and starts its worker.
//
// Parameters:
//   - store: Destination of the user lists
//   - log: Logger for presence changes and store failures; nil discards them
//
// Returns:
//   - The Mirror, or ErrNoStore
func NewMirror(store Store, log logger.Logger) (*Mirror, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	m := &Mirror{
		store:   store,
		logger:  log.With(logger.Field{Key: "component", Value: "presence"}),
		timeout: DefaultTimeout,
		pending: make(chan []string, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go m.run()

	return m, nil
}

// OnUserList implements chatserver.Observer. It never waits for the store.
func (m *Mirror) OnUserList(users []string) {
	users = append([]string(nil), users...)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	// Producers hold m.mu, so after the drain the slot is free.
	select {
	case <-m.pending:
	default:
	}
	m.pending <- users
}

// Close stops the worker after it published the last pending list, then
// removes the published list. It is safe to call more than once.
func (m *Mirror) Close(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.stop)
	}
	m.mu.Unlock()

	select {
	case <-m.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return m.store.Clear(ctx)
}

func (m *Mirror) run() {
	defer close(m.done)

	// A list left behind by an earlier run is the baseline, so users that
	// vanished with it are reported offline.
	previous := m.load()

	for {
		select {
		case users := <-m.pending:
			previous = m.publish(previous, users)
		case <-m.stop:
			select {
			case users := <-m.pending:
				m.publish(previous, users)
			default:
			}
			return
		}
	}
}

func (m *Mirror) load() []string {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	users, err := m.store.Online(ctx)
	if err != nil {
		m.logger.Warn("failed to read presence", logger.Field{Key: "error", Value: err})
		return nil
	}

	return users
}

// publish stores users and logs the difference to previous. It returns the
// list that is now published.
func (m *Mirror) publish(previous, users []string) []string {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if err := m.store.Publish(ctx, users); err != nil {
		m.logger.Error("failed to publish presence", logger.Field{Key: "error", Value: err})
		return previous
	}

	appeared, left := Diff(previous, users)
	for _, username := range appeared {
		m.logger.Info("user online", logger.Field{Key: "username", Value: username})
	}
	for _, username := range left {
		m.logger.Info("user offline", logger.Field{Key: "username", Value: username})
	}

	return users
}

// Diff compares two user lists.
//
// Returns:
//   - appeared: Users in current but not in previous, in current's order
//   - left: Users in previous but not in current, in previous' order
func Diff(previous, current []string) (appeared, left []string) {
	before := make(map[string]struct{}, len(previous))
	for _, username := range previous {
		before[username] = struct{}{}
	}

	after := make(map[string]struct{}, len(current))
	for _, username := range current {
		if _, dup := after[username]; dup {
			continue
		}
		after[username] = struct{}{}
		if _, ok := before[username]; !ok {
			appeared = append(appeared, username)
		}
	}

	for _, username := range previous {
		if _, ok := after[username]; ok {
			continue
		}
		if _, pending := before[username]; pending {
			left = append(left, username)
			delete(before, username)
		}
	}

	return appeared, left
}
