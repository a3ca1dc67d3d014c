package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/pscheid92/tmi/internal/accumulator"
	"github.com/pscheid92/tmi/internal/connection"
	"github.com/pscheid92/tmi/internal/domain"
	"github.com/pscheid92/tmi/internal/irc"
	"github.com/pscheid92/tmi/internal/metrics"
)

// Conn is the message stream the client drives.
type Conn interface {
	Connect(ctx context.Context) (*irc.Message, error)
	Next(ctx context.Context) (*irc.Message, error)
	Send(ctx context.Context, msg *irc.Message) error
	Restart(ctx context.Context) error
	Reconnected() <-chan struct{}
	Login() string
	Anonymous() bool
	Session() string
	State() connection.State
	Close() error
}

var errAlreadyStarted = errors.New("client already started")

// clientCmd is the command interface for the read loop.
type clientCmd interface{ isClientCmd() }

type baseClientCmd struct{}

func (baseClientCmd) isClientCmd() {}

type joinCmd struct {
	baseClientCmd
	logins []string
	reply  chan []string
}

type partCmd struct {
	baseClientCmd
	logins []string
	reply  chan []string
}

type inbound struct {
	msg *irc.Message
	err error
}

// Client owns the read loop of one connection. The channel tables are
// written only by the loop and guarded for readers from other goroutines.
type Client struct {
	conn      Conn
	opts      options
	registry  *registry
	acc       *accumulator.Accumulator
	msgLimit  *rate.Limiter
	joinLimit *rate.Limiter

	cmds  chan clientCmd
	inbox chan inbound
	done  chan struct{}
	err   error
	tasks sync.WaitGroup

	started atomic.Bool
	cancel  context.CancelFunc

	mu      sync.RWMutex
	phase   State
	global  *domain.GlobalState
	byID    map[string]*domain.Channel
	byLogin map[string]*domain.Channel
	tracked map[string]struct{}

	// Owned by the loop.
	loopCtx context.Context
	delayed map[string][]*irc.Message
	names   map[string][]string
}

func New(conn Conn, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		conn:      conn,
		opts:      o,
		registry:  newRegistry(),
		msgLimit:  newLimiter(o.messageRate, messageWindow),
		joinLimit: newLimiter(o.joinRate, joinWindow),
		cmds:      make(chan clientCmd, 16),
		inbox:     make(chan inbound, 256),
		done:      make(chan struct{}),
		cancel:    func() {},
		phase:     Init,
		byID:      make(map[string]*domain.Channel),
		byLogin:   make(map[string]*domain.Channel),
		tracked:   make(map[string]struct{}),
		loopCtx:   context.Background(),
		delayed:   make(map[string][]*irc.Message),
		names:     make(map[string][]string),
	}
	c.acc = accumulator.New(accumulator.Config{
		Login:     conn.Login(),
		Anonymous: conn.Anonymous(),
		Timeout:   o.accumulationTimeout,
		Clock:     o.clock,
		OnReady:   c.promote,
	})
	return c
}

// Start connects, starts the read loop and joins logins. ctx bounds the
// lifetime of the loop; Close or a clean server close also end it.
func (c *Client) Start(ctx context.Context, logins ...string) error {
	if !c.started.CompareAndSwap(false, true) {
		return errAlreadyStarted
	}

	c.setPhase(Connecting)
	gus, err := c.conn.Connect(ctx)
	if err != nil {
		c.finish(err)
		return fmt.Errorf("connect: %w", err)
	}

	global := domain.NewGlobalState(c.conn.Login(), nil)
	if gus != nil {
		global = domain.NewGlobalState(c.conn.Login(), gus.TagValues())
	}
	c.mu.Lock()
	c.global = global
	c.phase = Ready
	c.mu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.loopCtx = loopCtx
	go c.read(loopCtx)
	go c.loop(loopCtx)

	c.emit(loopCtx, EventReady, global)
	if err := c.JoinChannels(ctx, logins...); err != nil {
		return fmt.Errorf("join channels: %w", err)
	}
	return nil
}

// Run starts the client and blocks until it stopped. A clean close of the
// connection returns nil.
func (c *Client) Run(ctx context.Context, logins ...string) error {
	if err := c.Start(ctx, logins...); err != nil {
		return err
	}
	return c.Wait()
}

// Wait blocks until the loop ended and every dispatched handler returned.
func (c *Client) Wait() error {
	<-c.done
	c.tasks.Wait()
	return c.err
}

// Close closes the connection and waits for the loop to end.
func (c *Client) Close() error {
	err := c.conn.Close()
	if c.started.Load() {
		<-c.done
	}
	return err
}

// State reports the lifecycle phase of the client.
func (c *Client) State() State {
	c.mu.RLock()
	phase := c.phase
	c.mu.RUnlock()

	switch phase {
	case Connecting:
		if c.conn.State() == connection.Authenticating {
			return Authenticating
		}
	case Ready:
		if c.conn.State() != connection.Ready {
			return Restarting
		}
	}
	return phase
}

// GlobalState is this client's identity from the last GLOBALUSERSTATE.
func (c *Client) GlobalState() *domain.GlobalState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.global
}

func (c *Client) ChannelByLogin(login string) (*domain.Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.byLogin[normalize(login)]
	return ch, ok
}

func (c *Client) ChannelByID(id string) (*domain.Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.byID[id]
	return ch, ok
}

// Channels returns the logins the client keeps joined, sorted.
func (c *Client) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	logins := make([]string, 0, len(c.tracked))
	for login := range c.tracked {
		logins = append(logins, login)
	}
	slices.Sort(logins)
	return logins
}

// JoinChannels joins logins and keeps them joined across reconnects.
// Logins already joined are skipped.
func (c *Client) JoinChannels(ctx context.Context, logins ...string) error {
	logins = normalizeAll(logins)
	if len(logins) == 0 {
		return nil
	}
	reply := make(chan []string, 1)
	send, err := c.request(ctx, joinCmd{logins: logins, reply: reply}, reply)
	if err != nil {
		return err
	}
	return c.sendJoins(ctx, send)
}

// PartChannels leaves logins and stops rejoining them.
func (c *Client) PartChannels(ctx context.Context, logins ...string) error {
	logins = normalizeAll(logins)
	if len(logins) == 0 {
		return nil
	}
	reply := make(chan []string, 1)
	send, err := c.request(ctx, partCmd{logins: logins, reply: reply}, reply)
	if err != nil {
		return err
	}
	for batch := range slices.Chunk(send, maxJoinBatch) {
		if err := c.conn.Send(ctx, irc.New("PART", channelList(batch))); err != nil {
			return err
		}
	}
	return nil
}

// SendMessage sends text to the chat of channel.
func (c *Client) SendMessage(ctx context.Context, channel, text string) error {
	if !c.started.Load() {
		return domain.ErrNotRunning
	}
	if err := c.msgLimit.Wait(ctx); err != nil {
		return err
	}
	return c.conn.Send(ctx, irc.New("PRIVMSG", "#"+normalize(channel)).WithTrailing(text))
}

// SendWhisper relays a whisper through this client's own channel.
func (c *Client) SendWhisper(ctx context.Context, target, text string) error {
	if !c.started.Load() {
		return domain.ErrNotRunning
	}
	if err := c.msgLimit.Wait(ctx); err != nil {
		return err
	}
	line := "/w " + normalize(target) + " " + text
	return c.conn.Send(ctx, irc.New("PRIVMSG", "#"+c.conn.Login()).WithTrailing(line))
}

func (c *Client) request(ctx context.Context, cmd clientCmd, reply chan []string) ([]string, error) {
	if !c.started.Load() {
		return nil, domain.ErrNotRunning
	}
	select {
	case c.cmds <- cmd:
	case <-c.done:
		return nil, domain.ErrNotRunning
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case logins := <-reply:
		return logins, nil
	case <-c.done:
		return nil, domain.ErrNotRunning
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// listRequests ask the server for the command, mod and VIP lists of a
// channel; their replies complete an authenticated accumulation.
var listRequests = []string{"/help", "/mods", "/vips"}

// sendJoins sends JOINs in batches, waiting on the join limiter per login.
// Authenticated clients follow up with the list requests of each channel.
func (c *Client) sendJoins(ctx context.Context, logins []string) error {
	size := min(maxJoinBatch, c.joinLimit.Burst())
	for batch := range slices.Chunk(logins, size) {
		if err := c.joinLimit.WaitN(ctx, len(batch)); err != nil {
			return err
		}
		if err := c.conn.Send(ctx, irc.New("JOIN", channelList(batch))); err != nil {
			return err
		}
		if c.conn.Anonymous() {
			continue
		}
		for _, login := range batch {
			for _, req := range listRequests {
				if err := c.msgLimit.Wait(ctx); err != nil {
					return err
				}
				if err := c.conn.Send(ctx, irc.New("PRIVMSG", "#"+login).WithTrailing(req)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (c *Client) read(ctx context.Context) {
	for {
		msg, err := c.conn.Next(ctx)
		select {
		case c.inbox <- inbound{msg: msg, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) loop(ctx context.Context) {
	c.finish(c.process(ctx))
}

func (c *Client) process(ctx context.Context) error {
	for {
		select {
		case in := <-c.inbox:
			if in.err != nil {
				return in.err
			}
			c.handle(ctx, in.msg)
		case e := <-c.acc.Expired():
			c.acc.Expire(e)
		case <-c.conn.Reconnected():
			c.rejoin(ctx)
		case cmd := <-c.cmds:
			c.apply(cmd)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// finish records how the client ended. Clean closes and cancellation are not errors.
func (c *Client) finish(err error) {
	c.acc.Close()
	c.cancel()

	phase := Stopped
	switch {
	case errors.Is(err, domain.ErrLoginFailed), errors.Is(err, domain.ErrCapabilitiesRejected):
		phase = LoginFailed
	case errors.Is(err, domain.ErrConnectionClosed), errors.Is(err, context.Canceled):
		err = nil
	}
	if err != nil {
		slog.Error("Client stopped", "error", err)
	} else {
		slog.Info("Client stopped")
	}

	_ = c.conn.Close()
	c.setPhase(phase)
	c.err = err
	close(c.done)
}

func (c *Client) apply(cmd clientCmd) {
	switch cmd := cmd.(type) {
	case joinCmd:
		var send []string
		for _, login := range cmd.logins {
			if c.isTracked(login) {
				continue
			}
			c.setTracked(login, true)
			if !c.isReady(login) {
				c.acc.Start(login)
			}
			send = append(send, login)
		}
		cmd.reply <- send
	case partCmd:
		var send []string
		for _, login := range cmd.logins {
			if !c.isTracked(login) {
				continue
			}
			c.setTracked(login, false)
			c.acc.Abort(login)
			c.dropDelayed(login)
			send = append(send, login)
		}
		cmd.reply <- send
	}
}

// rejoin restores every tracked login after a reconnect.
func (c *Client) rejoin(ctx context.Context) {
	logins := c.Channels()
	for _, login := range logins {
		if !c.isReady(login) {
			c.acc.Start(login)
		}
	}
	slog.InfoContext(ctx, "Rejoining channels after reconnect", "channels", len(logins))
	go func() {
		if err := c.sendJoins(ctx, logins); err != nil {
			slog.WarnContext(ctx, "Rejoin failed", "error", err)
		}
	}()
	c.emit(ctx, EventReconnect, domain.Reconnect{At: c.opts.clock.Now()})
}

// promote is called by the accumulator when a channel became ready.
func (c *Client) promote(ch *domain.Channel, complete bool) {
	c.mu.Lock()
	c.byLogin[ch.Login()] = ch
	if id := ch.ID(); id != "" {
		c.byID[id] = ch
	}
	ready := len(c.byLogin)
	c.mu.Unlock()

	metrics.ChannelsReady.Set(float64(ready))
	slog.Info("Channel ready", "channel", ch.Login(), "complete", complete)
	c.emit(c.loopCtx, EventChannelJoin, ch)
	c.replay(c.loopCtx, ch.Login())
}

func (c *Client) setPhase(s State) {
	c.mu.Lock()
	c.phase = s
	c.mu.Unlock()
}

func (c *Client) isTracked(login string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tracked[login]
	return ok
}

func (c *Client) setTracked(login string, tracked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tracked {
		c.tracked[login] = struct{}{}
	} else {
		delete(c.tracked, login)
	}
}

func (c *Client) isReady(login string) bool {
	_, ok := c.ChannelByLogin(login)
	return ok
}

func normalize(login string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(login), "#"))
}

func normalizeAll(logins []string) []string {
	out := make([]string, 0, len(logins))
	for _, login := range logins {
		if login = normalize(login); login != "" && !slices.Contains(out, login) {
			out = append(out, login)
		}
	}
	return out
}

func channelList(logins []string) string {
	names := make([]string, len(logins))
	for i, login := range logins {
		names[i] = "#" + login
	}
	return strings.Join(names, ",")
}
