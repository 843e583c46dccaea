// Package utils provides small byte and string helpers shared by the chat
// transports, the wire codec and the tests.
package utils

import (
	"bytes"
	"math/rand"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ReadStringFromBytes interprets the byte slice as a null-terminated string.
// Datagram buffers may be zero padded past the payload, so everything from
// the first null byte (0x00) on is ignored.
//
// Parameters:
//   - buffer: The byte slice to read from
//
// Returns:
//   - The string content before the first null byte, or the whole buffer as a string
func ReadStringFromBytes(buffer []byte) string {
	nullIndex := bytes.IndexByte(buffer, 0)
	if nullIndex == -1 {
		return string(buffer)
	}

	return string(buffer[:nullIndex])
}

// GenerateRandomString creates a string of the given length consisting of
// random alphanumeric characters (a-z, A-Z, 0-9).
//
// Parameters:
//   - length: The desired length of the output string
//
// Returns:
//   - A random alphanumeric string of length characters
func GenerateRandomString(length int) string {
	return GenerateRandomStringFrom(alphanumeric, length)
}

// GenerateRandomStringFrom creates a string of the given length whose bytes
// are drawn uniformly from alphabet. alphabet must be non-empty ASCII.
func GenerateRandomStringFrom(alphabet string, length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}

	return string(b)
}
