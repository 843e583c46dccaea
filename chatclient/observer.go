package chatclient

import "github.com/cyberinferno/udpchat/chatproto"

// Observer receives client events. Callbacks run on the goroutine that
// called HandleDatagram.
type Observer interface {
	OnJoined(username string)
	OnMessageReceived(username string, message string)
	// OnError receives J_ERR replies. After a terminal error the client is
	// Disconnected again.
	OnError(err chatproto.ChatError)
	OnUserList(users []string)
	// OnProtocolError receives datagrams that were discarded as malformed.
	OnProtocolError(payload []byte, err error)
}

// BaseObserver implements Observer with no-ops.
type BaseObserver struct{}

func (BaseObserver) OnJoined(string) {}
func (BaseObserver) OnMessageReceived(string, string) {}
func (BaseObserver) OnError(chatproto.ChatError) {}
func (BaseObserver) OnUserList([]string) {}
func (BaseObserver) OnProtocolError([]byte, error) {}

type subscription struct {
	observer Observer
}

// Subscribe registers observer.
//
// Returns:
//   - A function that removes the observer
func (c *Client) Subscribe(observer Observer) (unsubscribe func()) {
	sub := &subscription{observer: observer}

	c.subMu.Lock()
	c.subscriptions = append(c.subscriptions, sub)
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()

		for i, other := range c.subscriptions {
			if other == sub {
				c.subscriptions = append(c.subscriptions[:i:i], c.subscriptions[i+1:]...)
				return
			}
		}
	}
}

func (c *Client) notify(fn func(o Observer)) {
	c.subMu.RLock()
	subscriptions := c.subscriptions
	c.subMu.RUnlock()

	for _, sub := range subscriptions {
		fn(sub.observer)
	}
}
