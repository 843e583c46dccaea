package chatproto

import (
	"net/netip"
	"regexp"
	"strings"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,15}$`)

// ValidUsername reports whether name is 3 to 15 characters of letters,
// digits, '-' and '_'.
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// Several clients on one machine share the loopback address, so loopback
// peers name themselves in IMAV and QUIT. Every other peer is identified by
// its endpoint alone. These two functions are the only place that decides
// which grammar applies.

// IsLoopbackHost reports whether a server host string, as configured on the
// client, selects the loopback grammar. Address literals, bracketed or not,
// are decided by IsLoopbackAddr so both ends agree.
func IsLoopbackHost(host string) bool {
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if strings.EqualFold(host, "localhost") {
		return true
	}

	addr, err := netip.ParseAddr(host)
	return err == nil && IsLoopbackAddr(addr)
}

// IsLoopbackAddr reports whether a peer address, as seen by the server,
// selects the loopback grammar.
func IsLoopbackAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr == netip.AddrFrom4([4]byte{127, 0, 0, 1}) || addr == netip.IPv6Loopback()
}
