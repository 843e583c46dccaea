package udpclient

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer answers every datagram with "re: " + payload.
func echoServer(t *testing.T) *net.UDPConn {
	t.Helper()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		buf := make([]byte, 1024)
		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			_, _ = conn.WriteToUDP(append([]byte("re: "), buf[:n]...), from)
		}
	}()

	return conn
}

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "Disconnected", Disconnected.String())
	assert.Equal(t, "Connected", Connected.String())
	assert.Equal(t, "Closed", Closed.String())
	assert.Equal(t, "Unknown", ConnectionState(42).String())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("127.0.0.1:1337")
	assert.Equal(t, "127.0.0.1:1337", cfg.Address)
	assert.Equal(t, 4096, cfg.ReadBufferSize)
	assert.Zero(t, cfg.WriteTimeout, "sends carry no deadline")
}

func TestClient_Lifecycle(t *testing.T) {
	server := echoServer(t)
	c := New(DefaultConfig(server.LocalAddr().String()))

	assert.Equal(t, Disconnected, c.GetState())
	assert.ErrorIs(t, c.Send([]byte("JOIN alice")), ErrNotConnected)
	assert.Nil(t, c.LocalAddr())

	require.NoError(t, c.Connect())
	assert.Equal(t, Connected, c.GetState())
	assert.NotNil(t, c.LocalAddr())
	assert.ErrorIs(t, c.Connect(), ErrAlreadyConnected)

	require.NoError(t, c.Close())
	assert.Equal(t, Closed, c.GetState())
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Connect(), ErrClosed)
	assert.ErrorIs(t, c.Send([]byte("IMAV")), ErrClosed)
}

func TestClient_ConnectResolveError(t *testing.T) {
	c := New(Config{Address: "missing-port"})
	assert.Error(t, c.Connect())
	assert.Equal(t, Disconnected, c.GetState())
}

func TestClient_SendReceive(t *testing.T) {
	server := echoServer(t)
	c := New(DefaultConfig(server.LocalAddr().String()))

	received := make(chan DataReceivedEvent, 4)
	c.OnDataReceived(func(event DataReceivedEvent) { received <- event })

	require.NoError(t, c.Connect())
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Send([]byte("JOIN alice")))
	require.NoError(t, c.Send([]byte("IMAV")))

	for _, want := range []string{"re: JOIN alice", "re: IMAV"} {
		select {
		case event := <-received:
			assert.Equal(t, want, string(event.Data))
			assert.False(t, event.Timestamp.IsZero())
		case <-time.After(2 * time.Second):
			t.Fatalf("did not receive %q", want)
		}
	}
}

func TestClient_CloseStopsReceiveLoop(t *testing.T) {
	server := echoServer(t)
	c := New(DefaultConfig(server.LocalAddr().String()))

	errs := make(chan ErrorEvent, 4)
	c.OnError(func(event ErrorEvent) { errs <- event })

	require.NoError(t, c.Connect())

	done := make(chan struct{})
	go func() {
		_ = c.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}

	assert.Empty(t, errs, "closing is not reported as an error")
}
