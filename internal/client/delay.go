package client

import (
	"context"
	"log/slog"

	"github.com/pscheid92/tmi/internal/irc"
	"github.com/pscheid92/tmi/internal/metrics"
)

const (
	// rejoinThreshold delayed messages for one login trigger a fresh JOIN.
	rejoinThreshold = 10
	// maxDelayed is the hard cap per login; further messages are dropped.
	maxDelayed = 30
)

// delay queues msg until its channel is ready.
func (c *Client) delay(ctx context.Context, msg *irc.Message) {
	login := msg.Channel()
	if !c.isTracked(login) {
		slog.DebugContext(ctx, "Dropping message for channel not joined", "channel", login, "command", msg.Command)
		return
	}

	queue := c.delayed[login]
	if len(queue) >= maxDelayed {
		metrics.DelayedMessagesDropped.Inc()
		slog.WarnContext(ctx, "Delayed message queue full, dropping message", "channel", login, "command", msg.Command)
		return
	}
	c.delayed[login] = append(queue, msg)
	metrics.DelayedMessages.Inc()

	if len(queue)+1 == rejoinThreshold {
		slog.WarnContext(ctx, "Channel still not ready, joining again", "channel", login, "delayed", rejoinThreshold)
		c.acc.Start(login)
		go func() {
			if err := c.sendJoins(ctx, []string{login}); err != nil {
				slog.WarnContext(ctx, "Rejoin failed", "channel", login, "error", err)
			}
		}()
	}
}

// replay routes the delayed messages of login in arrival order.
func (c *Client) replay(ctx context.Context, login string) {
	queue := c.delayed[login]
	if len(queue) == 0 {
		return
	}
	delete(c.delayed, login)
	metrics.DelayedMessages.Sub(float64(len(queue)))
	for _, msg := range queue {
		c.route(ctx, msg)
	}
}

func (c *Client) dropDelayed(login string) {
	if queue := c.delayed[login]; len(queue) > 0 {
		metrics.DelayedMessages.Sub(float64(len(queue)))
		delete(c.delayed, login)
	}
	delete(c.names, login)
}
