package presence

import (
	"bytes"
	"context"
	"errors"
	"net/netip"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/udpchat/chatserver"
	"github.com/cyberinferno/udpchat/logger"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(cache.NoExpiration, time.Minute)

	users, err := store.Online(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	input := []string{"alice", "bob"}
	require.NoError(t, store.Publish(ctx, input))
	input[0] = "mallory"

	users, err = store.Online(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)

	users[1] = "eve"
	again, err := store.Online(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, again)

	require.NoError(t, store.Clear(ctx))
	users, err = store.Online(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(20*time.Millisecond, time.Millisecond)

	require.NoError(t, store.Publish(ctx, []string{"alice"}))
	assert.Eventually(t, func() bool {
		users, err := store.Online(ctx)
		return err == nil && len(users) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewMemoryStore(cache.NoExpiration, time.Minute)
	assert.ErrorIs(t, store.Publish(ctx, []string{"alice"}), context.Canceled)
	_, err := store.Online(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Clear(ctx), context.Canceled)
}

func TestRedisStore_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, "", time.Minute)
	assert.Equal(t, DefaultKey, store.key)

	ctx := context.Background()
	assert.Error(t, store.Publish(ctx, []string{"alice"}))
	_, err := store.Online(ctx)
	assert.Error(t, err)
	assert.Error(t, store.Clear(ctx))
}

// TestRedisStore runs against a real server when UDPCHAT_REDIS_ADDR is set.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("UDPCHAT_REDIS_ADDR")
	if addr == "" {
		t.Skip("UDPCHAT_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	store := NewRedisStore(client, "udpchat:test:presence", time.Minute)
	t.Cleanup(func() { _ = store.Clear(ctx) })

	require.NoError(t, store.Publish(ctx, []string{"alice", "bob"}))
	users, err := store.Online(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)

	require.NoError(t, store.Clear(ctx))
	users, err = store.Online(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestDiff(t *testing.T) {
	cases := []struct {
		name     string
		previous []string
		current  []string
		appeared []string
		left     []string
	}{
		{"first list", nil, []string{"alice"}, []string{"alice"}, nil},
		{"no change", []string{"alice", "bob"}, []string{"alice", "bob"}, nil, nil},
		{"join and leave", []string{"alice", "bob"}, []string{"bob", "carol"}, []string{"carol"}, []string{"alice"}},
		{"everyone left", []string{"alice", "bob"}, nil, nil, []string{"alice", "bob"}},
		{"duplicates reported once", []string{"dave", "dave"}, []string{"erin", "erin"}, []string{"erin"}, []string{"dave"}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			appeared, left := Diff(c.previous, c.current)
			assert.Equal(t, c.appeared, appeared)
			assert.Equal(t, c.left, left)
		})
	}
}

type failingStore struct {
	Store
	publishErr error
}

func (f *failingStore) Online(context.Context) ([]string, error) {
	return nil, errors.New("read failed")
}

func (f *failingStore) Publish(context.Context, []string) error {
	return f.publishErr
}

func (f *failingStore) Clear(context.Context) error {
	return nil
}

// gatedStore holds every Publish until release is closed.
type gatedStore struct {
	*MemoryStore

	release   chan struct{}
	published atomic.Int32
}

func (g *gatedStore) Publish(ctx context.Context, users []string) error {
	select {
	case <-g.release:
	case <-ctx.Done():
		return ctx.Err()
	}

	g.published.Add(1)
	return g.MemoryStore.Publish(ctx, users)
}

type discardTransport struct{}

func (discardTransport) SendTo(netip.AddrPort, []byte) error { return nil }

func waitForUsers(t *testing.T, store Store, want []string) {
	t.Helper()

	require.Eventually(t, func() bool {
		users, err := store.Online(context.Background())
		return err == nil && assert.ObjectsAreEqual(want, users)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestMirror(t *testing.T) {
	_, err := NewMirror(nil, nil)
	assert.ErrorIs(t, err, ErrNoStore)

	t.Run("publishes and logs changes", func(t *testing.T) {
		var buf bytes.Buffer
		log := logger.NewZerologLogger(zerolog.New(&buf), "udpchat-server", zerolog.InfoLevel)
		store := NewMemoryStore(cache.NoExpiration, time.Minute)

		m, err := NewMirror(store, log)
		require.NoError(t, err)

		m.OnUserList([]string{"alice"})
		waitForUsers(t, store, []string{"alice"})
		m.OnUserList([]string{"alice", "bob"})
		waitForUsers(t, store, []string{"alice", "bob"})
		m.OnUserList([]string{"bob"})
		waitForUsers(t, store, []string{"bob"})

		require.NoError(t, m.Close(context.Background()))
		users, err := store.Online(context.Background())
		require.NoError(t, err)
		assert.Empty(t, users)

		out := buf.String()
		assert.Equal(t, 2, strings.Count(out, `"user online"`))
		assert.Equal(t, 1, strings.Count(out, `"user offline"`))
		assert.Contains(t, out, `"component":"presence"`)

		m.OnUserList([]string{"carol"})
		assert.NoError(t, m.Close(context.Background()), "second close")
	})

	t.Run("a stale list from an earlier run is the baseline", func(t *testing.T) {
		var buf bytes.Buffer
		log := logger.NewZerologLogger(zerolog.New(&buf), "udpchat-server", zerolog.InfoLevel)
		store := NewMemoryStore(cache.NoExpiration, time.Minute)
		require.NoError(t, store.Publish(context.Background(), []string{"ghost"}))

		m, err := NewMirror(store, log)
		require.NoError(t, err)

		m.OnUserList([]string{"alice"})
		waitForUsers(t, store, []string{"alice"})
		require.NoError(t, m.Close(context.Background()))

		assert.Contains(t, buf.String(), `"username":"ghost"`)
		assert.Equal(t, 1, strings.Count(buf.String(), `"user offline"`))
	})

	t.Run("store failures are logged, not fatal", func(t *testing.T) {
		var buf bytes.Buffer
		log := logger.NewZerologLogger(zerolog.New(&buf), "svc", zerolog.InfoLevel)

		m, err := NewMirror(&failingStore{publishErr: errors.New("write failed")}, log)
		require.NoError(t, err)

		m.OnUserList([]string{"alice"})
		require.NoError(t, m.Close(context.Background()))

		assert.Contains(t, buf.String(), "failed to read presence")
		assert.Contains(t, buf.String(), "failed to publish presence")
		assert.NotContains(t, buf.String(), "user online")
	})

	t.Run("a slow store does not hold up the caller", func(t *testing.T) {
		store := &gatedStore{MemoryStore: NewMemoryStore(cache.NoExpiration, time.Minute), release: make(chan struct{})}
		m, err := NewMirror(store, nil)
		require.NoError(t, err)

		begin := time.Now()
		m.OnUserList([]string{"alice"})
		m.OnUserList([]string{"alice", "bob"})
		m.OnUserList([]string{"alice", "bob", "carol"})
		assert.Less(t, time.Since(begin), 100*time.Millisecond)

		close(store.release)
		waitForUsers(t, store, []string{"alice", "bob", "carol"})
		assert.LessOrEqual(t, store.published.Load(), int32(2), "pending lists are replaced by newer ones")

		require.NoError(t, m.Close(context.Background()))
	})

	t.Run("server keeps handling datagrams while the store is slow", func(t *testing.T) {
		store := &gatedStore{MemoryStore: NewMemoryStore(cache.NoExpiration, time.Minute), release: make(chan struct{})}
		m, err := NewMirror(store, nil)
		require.NoError(t, err)

		server, err := chatserver.New(discardTransport{})
		require.NoError(t, err)
		server.Subscribe(m)

		begin := time.Now()
		server.Handle(netip.MustParseAddrPort("10.0.0.1:4000"), []byte("JOIN alice"))
		server.Handle(netip.MustParseAddrPort("10.0.0.2:4000"), []byte("JOIN bob"))
		assert.Less(t, time.Since(begin), 200*time.Millisecond)
		assert.Equal(t, 2, server.Registry().Count())

		close(store.release)
		waitForUsers(t, store, []string{"alice", "bob"})
		require.NoError(t, m.Close(context.Background()))
	})
}
