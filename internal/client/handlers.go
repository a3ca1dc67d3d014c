package client

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pscheid92/tmi/internal/accumulator"
	"github.com/pscheid92/tmi/internal/domain"
	"github.com/pscheid92/tmi/internal/irc"
	"github.com/pscheid92/tmi/internal/metrics"
)

type commandHandler func(c *Client, ctx context.Context, msg *irc.Message) error

var commandHandlers = map[string]commandHandler{
	"PRIVMSG":         (*Client).onPrivmsg,
	"WHISPER":         (*Client).onWhisper,
	"JOIN":            (*Client).onJoin,
	"PART":            (*Client).onPart,
	"NOTICE":          (*Client).onNotice,
	"USERNOTICE":      (*Client).onUserNotice,
	"CLEARCHAT":       (*Client).onClearChat,
	"CLEARMSG":        (*Client).onClearMsg,
	"HOSTTARGET":      (*Client).onHostTarget,
	"ROOMSTATE":       (*Client).onRoomState,
	"USERSTATE":       (*Client).onUserState,
	"GLOBALUSERSTATE": (*Client).onGlobalUserState,
	"RECONNECT":       (*Client).onReconnect,
	"PING":            (*Client).onPing,
	"353":             (*Client).onNames,
	"366":             (*Client).onNamesEnd,
}

// handle stages channel replies for joining channels and routes everything else.
func (c *Client) handle(ctx context.Context, msg *irc.Message) {
	if login := msg.Channel(); login != "" && accumulator.IsPart(msg) && !c.isReady(login) {
		if c.isTracked(login) {
			c.acc.Add(msg)
		} else {
			slog.DebugContext(ctx, "Ignoring reply for channel not joined", "channel", login, "command", msg.Command)
		}
		return
	}
	c.route(ctx, msg)
}

func (c *Client) route(ctx context.Context, msg *irc.Message) {
	h, ok := commandHandlers[msg.Command]
	if !ok {
		metrics.UnknownCommands.Inc()
		c.emit(ctx, EventUnknownCommand, msg)
		return
	}

	err := h(c, ctx, msg)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrChannelNotPrepared):
		c.delay(ctx, msg)
	default:
		slog.WarnContext(ctx, "Command handler failed", "command", msg.Command, "error", err)
	}
}

// channel returns the ready channel msg belongs to.
func (c *Client) channel(msg *irc.Message) (*domain.Channel, error) {
	ch, ok := c.ChannelByLogin(msg.Channel())
	if !ok {
		return nil, domain.ErrChannelNotPrepared
	}
	return ch, nil
}

func (c *Client) onPrivmsg(ctx context.Context, msg *irc.Message) error {
	ch, err := c.channel(msg)
	if err != nil {
		return err
	}
	c.emit(ctx, EventMessage, domain.NewChatMessage(ch, msg))
	return nil
}

func (c *Client) onWhisper(ctx context.Context, msg *irc.Message) error {
	c.emit(ctx, EventWhisper, domain.NewWhisper(msg))
	return nil
}

func (c *Client) onJoin(ctx context.Context, msg *irc.Message) error {
	if msg.Nickname == c.conn.Login() {
		return nil
	}
	ch, err := c.channel(msg)
	if err != nil {
		return err
	}
	c.emit(ctx, EventUserJoin, domain.Membership{Channel: ch, Login: msg.Nickname})
	return nil
}

func (c *Client) onPart(ctx context.Context, msg *irc.Message) error {
	login := msg.Channel()
	if msg.Nickname == c.conn.Login() {
		c.setTracked(login, false)
		c.acc.Abort(login)
		c.dropDelayed(login)
		if ch, ok := c.ChannelByLogin(login); ok {
			c.emit(ctx, EventChannelPart, ch)
		}
		return nil
	}
	ch, err := c.channel(msg)
	if err != nil {
		return err
	}
	c.emit(ctx, EventUserPart, domain.Membership{Channel: ch, Login: msg.Nickname})
	return nil
}

func (c *Client) onNotice(ctx context.Context, msg *irc.Message) error {
	notice := domain.Notice{MsgID: msg.MsgID(), Text: msg.Trailing}
	if msg.Channel() != "" {
		ch, err := c.channel(msg)
		if err != nil {
			return err
		}
		notice.Channel = ch
		refreshLists(ch, msg)
	}
	c.emit(ctx, EventNotice, notice)
	return nil
}

// refreshLists applies /mods, /vips and /help replies to a ready channel.
func refreshLists(ch *domain.Channel, msg *irc.Message) {
	switch msg.MsgID() {
	case "room_mods":
		ch.SetMods(accumulator.ParseUserList(msg.Trailing))
	case "no_mods":
		ch.SetMods([]string{})
	case "vips_success":
		ch.SetVIPs(accumulator.ParseUserList(msg.Trailing))
	case "no_vips":
		ch.SetVIPs([]string{})
	case "cmds_available":
		ch.SetCommands(accumulator.ParseCommands(msg.Trailing))
	}
}

func (c *Client) onClearChat(ctx context.Context, msg *irc.Message) error {
	ch, err := c.channel(msg)
	if err != nil {
		return err
	}
	user, chat := domain.NewClear(ch, msg)
	if user != nil {
		c.emit(ctx, EventClearUser, user)
	} else {
		c.emit(ctx, EventClearChat, chat)
	}
	return nil
}

func (c *Client) onClearMsg(ctx context.Context, msg *irc.Message) error {
	ch, err := c.channel(msg)
	if err != nil {
		return err
	}
	c.emit(ctx, EventMessageDelete, domain.NewMessageDelete(ch, msg))
	return nil
}

func (c *Client) onHostTarget(ctx context.Context, msg *irc.Message) error {
	ch, err := c.channel(msg)
	if err != nil {
		return err
	}
	start, stop := domain.NewHost(ch, msg)
	if start != nil {
		c.emit(ctx, EventHostStart, start)
	} else {
		c.emit(ctx, EventHostStop, stop)
	}
	return nil
}

func (c *Client) onRoomState(ctx context.Context, msg *irc.Message) error {
	ch, err := c.channel(msg)
	if err != nil {
		return err
	}
	before := ch.ApplyRoomState(msg.TagValues())
	if id := ch.ID(); id != "" {
		c.mu.Lock()
		c.byID[id] = ch
		c.mu.Unlock()
	}
	c.emit(ctx, EventChannelUpdate, domain.ChannelUpdate{Channel: ch, Before: before, After: ch.RoomState()})
	return nil
}

func (c *Client) onUserState(ctx context.Context, msg *irc.Message) error {
	ch, err := c.channel(msg)
	if err != nil {
		return err
	}
	before := ch.ClientState()
	after := domain.NewLocalState(c.conn.Login(), ch.Login(), msg.TagValues())
	ch.SetClientState(after)
	c.emit(ctx, EventLocalStateUpdate, domain.LocalStateUpdate{Channel: ch, Before: before, After: after})
	return nil
}

func (c *Client) onGlobalUserState(ctx context.Context, msg *irc.Message) error {
	global := domain.NewGlobalState(c.conn.Login(), msg.TagValues())
	c.mu.Lock()
	c.global = global
	c.mu.Unlock()
	c.emit(ctx, EventGlobalStateUpdate, global)
	return nil
}

// onReconnect restarts in the background; the reader joins the same restart
// once the old socket goes away.
func (c *Client) onReconnect(ctx context.Context, _ *irc.Message) error {
	slog.InfoContext(ctx, "Server requested reconnect")
	go func() {
		if err := c.conn.Restart(ctx); err != nil {
			slog.WarnContext(ctx, "Restart after RECONNECT failed", "error", err)
		}
	}()
	return nil
}

// onPing keeps PING out of unknown_command. Conn.Next answers every PING
// before it reaches the loop.
func (c *Client) onPing(context.Context, *irc.Message) error {
	return nil
}

// onNames collects a refreshed names list of a ready channel.
func (c *Client) onNames(_ context.Context, msg *irc.Message) error {
	ch, err := c.channel(msg)
	if err != nil {
		return err
	}
	c.names[ch.Login()] = append(c.names[ch.Login()], accumulator.ParseNames(msg.Trailing)...)
	return nil
}

func (c *Client) onNamesEnd(ctx context.Context, msg *irc.Message) error {
	ch, err := c.channel(msg)
	if err != nil {
		return err
	}
	names := c.names[ch.Login()]
	delete(c.names, ch.Login())
	if names == nil {
		names = []string{}
	}
	ch.SetNames(names)
	c.emit(ctx, EventNamesUpdate, domain.NamesUpdate{Channel: ch, Names: names})
	return nil
}
