package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/tmi/internal/domain"
	"github.com/pscheid92/tmi/internal/irc"
	"github.com/pscheid92/tmi/internal/metrics"
	"github.com/pscheid92/tmi/internal/platform/correlation"
)

const (
	DefaultURL   = "wss://irc-ws.chat.twitch.tv:443"
	Capabilities = "twitch.tv/membership twitch.tv/tags twitch.tv/commands"

	writeTimeout     = 10 * time.Second
	readTimeout      = 6 * time.Minute // server pings every ~5 minutes
	handshakeTimeout = 30 * time.Second
	closeGrace       = time.Second
	restartKey       = "restart"
)

type Config struct {
	URL       string
	Login     string
	Token     string
	KeepAlive bool
	Dialer    *websocket.Dialer
	Clock     clockwork.Clock
}

// Conn is a single logical chat connection. The underlying socket is replaced
// on every restart; Next must be called from one goroutine only.
type Conn struct {
	cfg         Config
	dialer      *websocket.Dialer
	clock       clockwork.Clock
	backoff     *Backoff
	restarts    singleflight.Group
	reconnected chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	mu         sync.Mutex
	ws         *websocket.Conn
	generation uint64
	session    string
	state      State
	pending    []string
	stopped    bool
}

func New(cfg Config) *Conn {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	cfg.Login = strings.ToLower(cfg.Login)

	dialer := cfg.Dialer
	if dialer == nil {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = handshakeTimeout
		dialer = &d
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		cfg:         cfg,
		dialer:      dialer,
		clock:       cfg.Clock,
		backoff:     NewBackoff(cfg.Clock),
		reconnected: make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (c *Conn) Login() string { return c.cfg.Login }

// Anonymous reports a read-only login that sends no PASS.
func (c *Conn) Anonymous() bool {
	return c.cfg.Token == "" && domain.IsAnonymousLogin(c.cfg.Login)
}

func (c *Conn) KeepAlive() bool { return c.cfg.KeepAlive }

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session is the id of the current socket, fresh on every reconnect.
func (c *Conn) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Reconnected receives a value after each successful restart. Notifications
// coalesce when nobody is listening.
func (c *Conn) Reconnected() <-chan struct{} {
	return c.reconnected
}

// Connect dials and logs in. For authenticated logins it returns the
// GLOBALUSERSTATE reply, or nil when validation ended early on another reply.
func (c *Conn) Connect(ctx context.Context) (*irc.Message, error) {
	if c.isStopped() {
		return nil, domain.ErrConnectionClosed
	}
	gus, err := c.open(ctx, false)
	if err != nil {
		c.setState(Disconnected)
		return nil, err
	}
	return gus, nil
}

// open dials a fresh socket, runs the handshake, and publishes the socket only
// once the handshake succeeded. With replay set, the GLOBALUSERSTATE is queued
// for Next so a reconnect refreshes the global state.
func (c *Conn) open(ctx context.Context, replay bool) (*irc.Message, error) {
	c.setState(Connecting)
	ws, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	c.setState(Authenticating)
	gus, leftover, err := c.handshake(ctx, ws)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	if replay && gus != nil {
		leftover = append([]string{gus.String()}, leftover...)
	}

	session := uuid.NewString()
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		_ = ws.Close()
		return nil, domain.ErrConnectionClosed
	}
	c.ws = ws
	c.generation++
	c.session = session
	c.pending = append(c.pending, leftover...)
	c.state = Ready
	c.mu.Unlock()

	slog.InfoContext(correlation.WithSession(ctx, session), "Connected to chat server", "login", c.cfg.Login, "url", c.cfg.URL)
	return gus, nil
}

// Send writes msg. With keep-alive, a write on a closed socket restarts the
// connection and retries once.
func (c *Conn) Send(ctx context.Context, msg *irc.Message) error {
	ws, gen, err := c.socket()
	if err != nil {
		return err
	}
	if ws != nil {
		err = c.write(ws, msg)
		if err == nil {
			return nil
		}
		if !c.cfg.KeepAlive || !isClosedErr(err) {
			return fmt.Errorf("send %s: %w", msg.Command, err)
		}
		slog.Warn("Send hit a closed connection, restarting", "command", msg.Command, "error", err)
	}

	if err := c.restartFrom(ctx, gen); err != nil {
		return fmt.Errorf("send %s: %w", msg.Command, err)
	}
	ws, _, err = c.socket()
	if err != nil {
		return err
	}
	if ws == nil {
		return domain.ErrNotConnected
	}
	if err := c.write(ws, msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Command, err)
	}
	return nil
}

// Restart drops the current socket, waits the next backoff delay and
// reconnects. Concurrent callers share the same in-flight restart.
func (c *Conn) Restart(ctx context.Context) error {
	ch := c.restarts.DoChan(restartKey, func() (any, error) {
		return nil, c.restart()
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// restartFrom restarts unless the socket of generation gen was already replaced.
func (c *Conn) restartFrom(ctx context.Context, gen uint64) error {
	if c.replaced(gen) {
		return nil
	}
	return c.Restart(ctx)
}

func (c *Conn) restart() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return domain.ErrConnectionClosed
	}
	old := c.ws
	c.ws = nil
	c.state = Restarting
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	ctx := correlation.WithNewID(c.ctx)
	for attempt := 1; ; attempt++ {
		delay := c.backoff.Next()
		if delay > 0 {
			slog.InfoContext(ctx, "Waiting before reconnect", "attempt", attempt, "delay", delay)
			select {
			case <-c.clock.After(delay):
			case <-c.ctx.Done():
				return domain.ErrConnectionClosed
			}
		}

		dialCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
		_, err := c.open(dialCtx, true)
		cancel()
		if err == nil {
			metrics.Reconnects.Inc()
			select {
			case c.reconnected <- struct{}{}:
			default:
			}
			return nil
		}

		if errors.Is(err, domain.ErrLoginFailed) || errors.Is(err, domain.ErrCapabilitiesRejected) {
			c.setState(Stopped)
			return err
		}
		if c.ctx.Err() != nil || errors.Is(err, domain.ErrConnectionClosed) {
			return domain.ErrConnectionClosed
		}
		metrics.ReconnectFailures.Inc()
		slog.WarnContext(ctx, "Reconnect attempt failed", "attempt", attempt, "error", err)
		c.setState(Restarting)
	}
}

// Close sends a normal close frame and tears the socket down. Blocked calls
// to Next and Restart return ErrConnectionClosed.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.state = Stopped
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	c.cancel()
	if ws == nil {
		return nil
	}

	c.writeMu.Lock()
	_ = ws.SetWriteDeadline(time.Now().Add(closeGrace))
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	if err := ws.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

func (c *Conn) write(ws *websocket.Conn, msg *irc.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFrame(ws, msg)
}

func writeFrame(ws *websocket.Conn, msg *irc.Message) error {
	start := time.Now()
	_ = ws.SetWriteDeadline(start.Add(writeTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, []byte(msg.String()+"\r\n")); err != nil {
		return err
	}
	metrics.SendDuration.Observe(time.Since(start).Seconds())
	metrics.MessagesSent.WithLabelValues(msg.Command).Inc()
	return nil
}

// socket returns the live socket and its generation. A nil socket without an
// error means a restart is due.
func (c *Conn) socket() (*websocket.Conn, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil, c.generation, domain.ErrConnectionClosed
	}
	if c.ws == nil && !c.cfg.KeepAlive {
		return nil, c.generation, domain.ErrNotConnected
	}
	return c.ws, c.generation, nil
}

func (c *Conn) replaced(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation != gen && c.ws != nil
}

func (c *Conn) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stopped {
		c.state = s
	}
}

// drop forgets the socket of generation gen after it ended for good.
func (c *Conn) drop(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == gen && c.ws != nil {
		_ = c.ws.Close()
		c.ws = nil
		c.state = Disconnected
	}
}

func isClosedErr(err error) bool {
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr) ||
		errors.Is(err, websocket.ErrCloseSent) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}
