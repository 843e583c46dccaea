package main

import (
	"fmt"
	"io"
	"net/netip"
	"sync"

	"github.com/cyberinferno/udpchat/chatserver"
)

// console prints joins, departures and chat lines for the operator.
type console struct {
	chatserver.BaseObserver

	mu  sync.Mutex
	out io.Writer
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) OnJoined(username string, _ netip.AddrPort) {
	c.printf("%s joined the server.\n", username)
}

func (c *console) OnMessageReceived(username string, message string) {
	c.printf(">> %s: %s\n", username, message)
}

func (c *console) OnLeft(username string, _ netip.AddrPort, evicted bool) {
	if evicted {
		c.printf("%s timed out.\n", username)
		return
	}
	c.printf("%s left the server.\n", username)
}
