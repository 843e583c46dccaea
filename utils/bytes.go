package utils

// JoinBytes concatenates the given byte slices into a single byte slice.
//
// Parameters:
//   - s: One or more byte slices to concatenate
//
// Returns:
//   - A new byte slice containing all input slices in order
func JoinBytes(s ...[]byte) []byte {
	n := 0
	for _, v := range s {
		n += len(v)
	}

	b, i := make([]byte, n), 0
	for _, v := range s {
		i += copy(b[i:], v)
	}

	return b
}

// CopyBytes returns a copy of the first n bytes of buffer, so a read buffer
// can be reused while the copy is handed to another goroutine. n is clamped to
// the buffer length.
func CopyBytes(buffer []byte, n int) []byte {
	if n > len(buffer) {
		n = len(buffer)
	}
	if n <= 0 {
		return []byte{}
	}

	data := make([]byte, n)
	copy(data, buffer[:n])
	return data
}
