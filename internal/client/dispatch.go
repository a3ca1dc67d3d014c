package client

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/pscheid92/tmi/internal/metrics"
	"github.com/pscheid92/tmi/internal/platform/correlation"
)

// On registers fn for event, replacing an earlier handler. fn must be a
// func(context.Context, T) with the payload type of event.
func (c *Client) On(event Event, fn any) error {
	return c.registry.set(event, fn)
}

// emit schedules the handler of event, if any, and reports whether one was
// registered. It never waits for the handler.
func (c *Client) emit(ctx context.Context, event Event, payload any) bool {
	h, ok := c.registry.get(event)
	if !ok {
		return false
	}
	metrics.EventsDispatched.WithLabelValues(string(event)).Inc()

	ctx = correlation.WithSession(correlation.WithNewID(ctx), c.conn.Session())
	c.tasks.Add(1)
	c.opts.executor(func() {
		defer c.tasks.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.HandlerPanics.WithLabelValues(string(event)).Inc()
				slog.ErrorContext(ctx, "Event handler panic recovered",
					"event", event, "panic", r, "stack", string(debug.Stack()))
			}
		}()
		h(ctx, payload)
	})
	return true
}
