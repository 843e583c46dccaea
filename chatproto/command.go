// Package chatproto implements the line-oriented text protocol spoken between
// chat clients and the chat server over datagrams. A payload is a tag
// optionally followed by a single space and an argument, e.g. "JOIN alice" or
// "DATA alice: hello".
package chatproto

import (
	"errors"
	"strings"

	"github.com/cyberinferno/udpchat/utils"
)

// MaxDatagramSize is the receive buffer size used by both sides. Longer
// payloads are truncated by the transport.
const MaxDatagramSize = 1024

// Wire tags.
const (
	TagJoin      = "JOIN"
	TagJoined    = "J_OK"
	TagData      = "DATA"
	TagError     = "J_ERR"
	TagHeartbeat = "IMAV"
	TagQuit      = "QUIT"
	TagUserList  = "LIST"
)

// DataSeparator separates the author from the message body in a DATA argument.
const DataSeparator = ": "

// Kind identifies a decoded command.
type Kind int

const (
	Unknown Kind = iota
	Join
	Joined
	Data
	Error
	Heartbeat
	Quit
	UserList
)

var kindsByTag = map[string]Kind{
	TagJoin:      Join,
	TagJoined:    Joined,
	TagData:      Data,
	TagError:     Error,
	TagHeartbeat: Heartbeat,
	TagQuit:      Quit,
	TagUserList:  UserList,
}

// String returns the wire tag of the kind, or "UNKNOWN".
func (k Kind) String() string {
	for tag, kind := range kindsByTag {
		if kind == k {
			return tag
		}
	}

	return "UNKNOWN"
}

// Command is a single decoded datagram.
type Command struct {
	Kind     Kind
	Tag      string
	Argument string
}

var (
	// ErrMissingSeparator is returned by ParseData when the argument has no ": ".
	ErrMissingSeparator = errors.New("chatproto: data argument has no author separator")

	// ErrEmptyMessage is returned by ParseData when the message body is blank.
	ErrEmptyMessage = errors.New("chatproto: data argument has an empty message")
)

// Split separates a payload into its tag and argument. The payload is read up
// to the first NUL byte and trimmed; the tag is everything before the first
// space and the argument is the trimmed remainder.
//
// Parameters:
//   - payload: Raw datagram bytes
//
// Returns:
//   - The command tag and its argument (empty when absent)
func Split(payload []byte) (tag string, argument string) {
	text := strings.TrimSpace(utils.ReadStringFromBytes(payload))
	tag, argument, _ = strings.Cut(text, " ")

	return strings.TrimSpace(tag), strings.TrimSpace(argument)
}

// Decode splits the payload and resolves its tag. Tags are matched exactly;
// anything else decodes as Unknown with the tag preserved.
func Decode(payload []byte) Command {
	tag, argument := Split(payload)

	return Command{
		Kind:     kindsByTag[tag],
		Tag:      tag,
		Argument: argument,
	}
}

// Encode builds a payload from a tag and an argument. The argument is passed
// through verbatim; an empty argument yields the bare tag.
//
// Parameters:
//   - tag: The command tag
//   - argument: The command argument, may be empty
//
// Returns:
//   - The UTF-8 encoded payload
func Encode(tag string, argument string) []byte {
	if argument == "" {
		return []byte(tag)
	}

	return utils.JoinBytes([]byte(tag), []byte{' '}, []byte(argument))
}

// EncodeData builds a "DATA username: message" payload.
func EncodeData(username string, message string) []byte {
	return Encode(TagData, username+DataSeparator+message)
}

// EncodeUserList builds a "LIST name1 name2 ..." payload.
func EncodeUserList(usernames []string) []byte {
	return Encode(TagUserList, strings.Join(usernames, " "))
}

// EncodeError builds a "J_ERR code: label" payload.
func EncodeError(e ChatError) []byte {
	return Encode(TagError, e.Code+DataSeparator+e.Label)
}

// ParseData splits a DATA argument at the first ": " into author and message.
// Both parts are trimmed and the message must not be empty.
//
// Parameters:
//   - argument: The DATA argument, e.g. "alice: hello there"
//
// Returns:
//   - The author and the message
//   - ErrMissingSeparator or ErrEmptyMessage when the argument is malformed
func ParseData(argument string) (username string, message string, err error) {
	username, message, found := strings.Cut(argument, DataSeparator)
	if !found {
		return "", "", ErrMissingSeparator
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", "", ErrEmptyMessage
	}

	return strings.TrimSpace(username), message, nil
}
