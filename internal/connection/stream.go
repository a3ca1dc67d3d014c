package connection

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pscheid92/tmi/internal/domain"
	"github.com/pscheid92/tmi/internal/irc"
	"github.com/pscheid92/tmi/internal/metrics"
)

// Next returns the next message from the server, answering PINGs on the way.
// A clean close by the server or by Close yields domain.ErrConnectionClosed.
// Other transport failures restart the connection when keep-alive is set.
func (c *Conn) Next(ctx context.Context) (*irc.Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if line, ok := c.popPending(); ok {
			if isPing(line) {
				c.answerPing(line)
				continue
			}
			msg := irc.Parse(line)
			metrics.MessagesReceived.WithLabelValues(msg.Command).Inc()
			return msg, nil
		}

		ws, gen, err := c.socket()
		if err != nil {
			return nil, err
		}
		if ws == nil {
			if err := c.Restart(ctx); err != nil {
				return nil, err
			}
			continue
		}

		lines, err := read(ctx, ws)
		if err == nil {
			c.pushPending(lines)
			continue
		}

		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case c.isStopped():
			return nil, domain.ErrConnectionClosed
		case c.replaced(gen):
			continue
		case c.State() == Restarting:
			if err := c.Restart(ctx); err != nil {
				return nil, err
			}
			continue
		case websocket.IsCloseError(err, websocket.CloseNormalClosure):
			slog.Info("Chat server closed the connection", "login", c.cfg.Login)
			c.drop(gen)
			return nil, domain.ErrConnectionClosed
		case !c.cfg.KeepAlive:
			c.drop(gen)
			return nil, fmt.Errorf("read: %w", err)
		}

		slog.Warn("Chat connection lost", "login", c.cfg.Login, "error", err)
		if err := c.restartFrom(ctx, gen); err != nil {
			return nil, err
		}
	}
}

func read(ctx context.Context, ws *websocket.Conn) ([]string, error) {
	stop := context.AfterFunc(ctx, func() { _ = ws.SetReadDeadline(time.Now()) })
	defer stop()

	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	_, data, err := ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return splitLines(string(data)), nil
}

func (c *Conn) answerPing(line string) {
	ws, _, err := c.socket()
	if err != nil || ws == nil {
		return
	}
	if err := c.write(ws, pong(line)); err != nil {
		slog.Debug("PONG failed", "error", err)
	}
}

func (c *Conn) popPending() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return "", false
	}
	line := c.pending[0]
	c.pending = c.pending[1:]
	return line, true
}

func (c *Conn) pushPending(lines []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, lines...)
}

// splitLines splits a frame into its non-empty CRLF-terminated lines.
func splitLines(frame string) []string {
	return strings.FieldsFunc(frame, func(r rune) bool { return r == '\r' || r == '\n' })
}

func isPing(line string) bool {
	return strings.HasPrefix(line, "PING")
}

// pong mirrors a PING line with PING replaced by PONG.
func pong(line string) *irc.Message {
	return irc.Parse("PONG" + strings.TrimPrefix(line, "PING"))
}
