package chatproto

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/udpchat/utils"
)

func TestSplit(t *testing.T) {
	cases := []struct {
		name     string
		payload  string
		tag      string
		argument string
	}{
		{"bare tag", "J_OK", "J_OK", ""},
		{"tag with argument", "JOIN alice", "JOIN", "alice"},
		{"surrounding whitespace", "  IMAV  bob \n", "IMAV", "bob"},
		{"trailing space only", "QUIT ", "QUIT", ""},
		{"argument keeps inner spaces", "DATA alice: hi  there", "DATA", "alice: hi  there"},
		{"empty payload", "", "", ""},
		{"list of names", "LIST alice bob carol", "LIST", "alice bob carol"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tag, argument := Split([]byte(c.payload))
			assert.Equal(t, c.tag, tag)
			assert.Equal(t, c.argument, argument)
		})
	}

	t.Run("zero padded buffer", func(t *testing.T) {
		buf := make([]byte, MaxDatagramSize)
		copy(buf, "JOIN alice")
		tag, argument := Split(buf)
		assert.Equal(t, "JOIN", tag)
		assert.Equal(t, "alice", argument)
	})
}

func TestDecode(t *testing.T) {
	cases := map[string]Kind{
		"JOIN alice":     Join,
		"J_OK":           Joined,
		"DATA alice: hi": Data,
		"J_ERR 0x01: x":  Error,
		"IMAV":           Heartbeat,
		"IMAV alice":     Heartbeat,
		"QUIT":           Quit,
		"LIST alice bob": UserList,
		"HELLO":          Unknown,
		"JOINX alice":    Unknown,
		"join alice":     Unknown,
		"":               Unknown,
	}

	for payload, kind := range cases {
		t.Run(payload, func(t *testing.T) {
			assert.Equal(t, kind, Decode([]byte(payload)).Kind)
		})
	}

	t.Run("unknown keeps the tag", func(t *testing.T) {
		cmd := Decode([]byte("PING now"))
		assert.Equal(t, Unknown, cmd.Kind)
		assert.Equal(t, "PING", cmd.Tag)
		assert.Equal(t, "now", cmd.Argument)
	})
}

func TestEncode(t *testing.T) {
	assert.Equal(t, []byte("JOIN alice"), Encode(TagJoin, "alice"))
	assert.Equal(t, []byte("J_OK"), Encode(TagJoined, ""))
	assert.Equal(t, []byte("DATA alice: hi"), EncodeData("alice", "hi"))
	assert.Equal(t, []byte("LIST alice bob"), EncodeUserList([]string{"alice", "bob"}))
	assert.Equal(t, []byte("LIST"), EncodeUserList(nil))
	assert.Equal(t, []byte("J_ERR 0x05: server is full"), EncodeError(ErrServerFull))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tags := []string{TagJoin, TagJoined, TagData, TagError, TagHeartbeat, TagQuit, TagUserList}
	arguments := []string{"", "alice", "alice: hello world", "a b c", "0x02: duplicate username"}

	for _, tag := range tags {
		for _, argument := range arguments {
			gotTag, gotArgument := Split(Encode(tag, argument))
			assert.Equal(t, tag, gotTag)
			assert.Equal(t, argument, gotArgument)
		}
	}

	t.Run("random arguments", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			argument := utils.GenerateRandomString(1 + i%40)
			cmd := Decode(Encode(TagData, argument))
			assert.Equal(t, Data, cmd.Kind)
			assert.Equal(t, argument, cmd.Argument)
		}
	})
}

func TestParseData(t *testing.T) {
	t.Run("author and message", func(t *testing.T) {
		username, message, err := ParseData("alice: hi there")
		require.NoError(t, err)
		assert.Equal(t, "alice", username)
		assert.Equal(t, "hi there", message)
	})

	t.Run("splits at the first separator", func(t *testing.T) {
		username, message, err := ParseData("alice: note: read this")
		require.NoError(t, err)
		assert.Equal(t, "alice", username)
		assert.Equal(t, "note: read this", message)
	})

	t.Run("missing separator", func(t *testing.T) {
		_, _, err := ParseData("alice hi")
		assert.ErrorIs(t, err, ErrMissingSeparator)
	})

	t.Run("blank message", func(t *testing.T) {
		_, _, err := ParseData("alice:    ")
		assert.ErrorIs(t, err, ErrEmptyMessage)
	})
}

func TestParseError(t *testing.T) {
	for _, e := range ChatErrors {
		t.Run(e.Code, func(t *testing.T) {
			_, argument := Split(EncodeError(e))
			got, ok := ParseError(argument)
			require.True(t, ok)
			assert.Equal(t, e, got)
		})
	}

	t.Run("unknown code", func(t *testing.T) {
		got, ok := ParseError("0x7f: mystery")
		assert.False(t, ok)
		assert.True(t, got.IsZero())
	})

	t.Run("code without label", func(t *testing.T) {
		got, ok := ParseError("0x03")
		assert.True(t, ok)
		assert.Equal(t, ErrCommandUnknown, got)
	})
}

func TestChatError_Terminal(t *testing.T) {
	assert.True(t, ErrUsernameTaken.Terminal())
	assert.True(t, ErrClientNotAccepted.Terminal())
	assert.True(t, ErrServerFull.Terminal())
	assert.True(t, ErrUsernameInvalid.Terminal())
	assert.False(t, ErrCommandUnknown.Terminal())
	assert.False(t, ErrSyntaxUnknown.Terminal())
}

func TestValidUsername(t *testing.T) {
	t.Run("valid names", func(t *testing.T) {
		for _, name := range []string{"bob", "alice_99", "x-y-z", "ABCDEFGHIJKLMNO"} {
			assert.True(t, ValidUsername(name), name)
		}
	})

	t.Run("random valid names", func(t *testing.T) {
		alphabet := "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_-"
		for i := 0; i < 200; i++ {
			name := utils.GenerateRandomStringFrom(alphabet, 3+i%13)
			assert.True(t, ValidUsername(name), name)
		}
	})

	t.Run("invalid names", func(t *testing.T) {
		for _, name := range []string{"", "ab", strings.Repeat("a", 16), "al ice", "alice!", "bøb", "a.b"} {
			assert.False(t, ValidUsername(name), name)
		}
	})
}

func TestLoopback(t *testing.T) {
	assert.True(t, IsLoopbackHost("127.0.0.1"))
	assert.True(t, IsLoopbackHost("localhost"))
	assert.False(t, IsLoopbackHost("10.0.0.7"))
	assert.False(t, IsLoopbackHost("chat.example.org"))
	assert.True(t, IsLoopbackHost("::1"))
	assert.True(t, IsLoopbackHost("[::1]"))
	assert.True(t, IsLoopbackHost("::ffff:127.0.0.1"))
	assert.False(t, IsLoopbackHost("127.0.0.2"))
	assert.False(t, IsLoopbackHost(""))

	assert.True(t, IsLoopbackAddr(netip.MustParseAddr("127.0.0.1")))
	assert.True(t, IsLoopbackAddr(netip.MustParseAddr("::ffff:127.0.0.1")))
	assert.True(t, IsLoopbackAddr(netip.MustParseAddr("::1")))
	assert.False(t, IsLoopbackAddr(netip.MustParseAddr("192.168.1.20")))

	t.Run("client and server agree on address literals", func(t *testing.T) {
		for _, host := range []string{"127.0.0.1", "::1", "::ffff:127.0.0.1", "127.0.0.2", "10.0.0.7", "fe80::1", "0.0.0.0"} {
			assert.Equal(t, IsLoopbackAddr(netip.MustParseAddr(host)), IsLoopbackHost(host), host)
		}
	})
}
