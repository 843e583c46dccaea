package chatclient

import (
	"context"
	"time"

	"github.com/cyberinferno/udpchat/logger"
)

// startHeartbeatLocked starts sending payload after HeartbeatDelay and then
// every HeartbeatInterval. Caller must hold c.mu.
func (c *Client) startHeartbeatLocked(payload []byte) {
	if c.stopHeartbeat != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.stopHeartbeat = cancel
	c.heartbeatDone = done

	go func() {
		defer close(done)
		c.heartbeat(ctx, payload)
	}()
}

// haltHeartbeat stops the heartbeat and waits for it to exit. It does
// nothing when no heartbeat is running.
func (c *Client) haltHeartbeat() {
	c.mu.Lock()
	cancel, done := c.stopHeartbeat, c.heartbeatDone
	c.stopHeartbeat, c.heartbeatDone = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

func (c *Client) heartbeat(ctx context.Context, payload []byte) {
	timer := time.NewTimer(c.config.HeartbeatDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		if err := c.transport.Send(payload); err != nil {
			c.logger.Error("heartbeat failed", logger.Field{Key: "error", Value: err})
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
