package chatproto

import (
	"fmt"
	"strings"
)

// ChatError is a protocol-level error reported to a peer in a J_ERR datagram.
type ChatError struct {
	Code  string
	Label string
}

// Error implements error.
func (e ChatError) Error() string {
	return fmt.Sprintf("(%s) %s", e.Code, e.Label)
}

// IsZero reports whether e is the zero ChatError.
func (e ChatError) IsZero() bool {
	return e.Code == ""
}

// Terminal reports whether receiving e ends a join attempt or an established
// session on the client side.
func (e ChatError) Terminal() bool {
	switch e {
	case ErrUsernameTaken, ErrClientNotAccepted, ErrServerFull, ErrUsernameInvalid:
		return true
	default:
		return false
	}
}

var (
	ErrClientNotAccepted = ChatError{Code: "0x01", Label: "client not accepted"}
	ErrUsernameTaken     = ChatError{Code: "0x02", Label: "duplicate username"}
	ErrCommandUnknown    = ChatError{Code: "0x03", Label: "unknown command"}
	ErrSyntaxUnknown     = ChatError{Code: "0x04", Label: "bad command"}
	ErrServerFull        = ChatError{Code: "0x05", Label: "server is full"}
	ErrUsernameInvalid   = ChatError{
		Code:  "0x06",
		Label: "username is min 3 and max 15 chars long, only letters, digits, '-' and '_' allowed",
	}
)

// ChatErrors lists every known ChatError in code order.
var ChatErrors = []ChatError{
	ErrClientNotAccepted,
	ErrUsernameTaken,
	ErrCommandUnknown,
	ErrSyntaxUnknown,
	ErrServerFull,
	ErrUsernameInvalid,
}

// ParseError resolves the ChatError carried by a J_ERR argument such as
// "0x05: server is full". The first known code contained in the code token
// wins.
//
// Returns:
//   - The resolved ChatError and true, or the zero ChatError and false
func ParseError(argument string) (ChatError, bool) {
	code, _, _ := strings.Cut(argument, DataSeparator)
	for _, e := range ChatErrors {
		if strings.Contains(code, e.Code) {
			return e, true
		}
	}

	return ChatError{}, false
}
