package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/pscheid92/tmi/internal/irc"
	"github.com/pscheid92/tmi/internal/tags"
)

// ReplyParent describes the message a chat message replies to.
type ReplyParent struct {
	MsgID       string
	UserID      string
	Login       string
	DisplayName string
	Body        string
}

// ChatMessage is a PRIVMSG delivered in a channel.
type ChatMessage struct {
	ID      string
	Channel *Channel
	Author  Author
	Content string
	// Action is set for "/me" messages; Content then holds the bare text.
	Action bool
	Emotes []tags.Emote
	Flags  []tags.Flag
	Bits   int
	SentAt time.Time
	Reply  *ReplyParent
	Tags   map[string]string
}

const actionPrefix = "\x01ACTION "

// NewChatMessage builds a chat message from a PRIVMSG.
func NewChatMessage(ch *Channel, msg *irc.Message) *ChatMessage {
	tv := msg.TagValues()
	content, action := splitAction(msg.Trailing)
	m := &ChatMessage{
		ID:      tv["id"],
		Channel: ch,
		Author:  NewAuthor(msg.Nickname, tv),
		Content: content,
		Action:  action,
		Emotes:  tags.ParseEmotes(tv["emotes"], content),
		Flags:   tags.ParseFlags(tv["flags"], content),
		Bits:    atoiOr(tv["bits"], 0),
		SentAt:  parseTimestamp(tv["tmi-sent-ts"]),
		Tags:    tv,
	}
	if id := tv["reply-parent-msg-id"]; id != "" {
		m.Reply = &ReplyParent{
			MsgID:       id,
			UserID:      tv["reply-parent-user-id"],
			Login:       tv["reply-parent-user-login"],
			DisplayName: tv["reply-parent-display-name"],
			Body:        tv["reply-parent-msg-body"],
		}
	}
	return m
}

func splitAction(text string) (string, bool) {
	if !strings.HasPrefix(text, actionPrefix) {
		return text, false
	}
	return strings.TrimSuffix(strings.TrimPrefix(text, actionPrefix), "\x01"), true
}

func parseTimestamp(ms string) time.Time {
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(n).UTC()
}

// Whisper is a private message to this client.
type Whisper struct {
	ID       string
	ThreadID string
	Author   Author
	Target   string
	Content  string
	Emotes   []tags.Emote
	Tags     map[string]string
}

// NewWhisper builds a whisper from a WHISPER message.
func NewWhisper(msg *irc.Message) *Whisper {
	tv := msg.TagValues()
	target := ""
	if len(msg.Middles) > 0 {
		target = msg.Middles[0]
	}
	return &Whisper{
		ID:       tv["message-id"],
		ThreadID: tv["thread-id"],
		Author:   NewAuthor(msg.Nickname, tv),
		Target:   target,
		Content:  msg.Trailing,
		Emotes:   tags.ParseEmotes(tv["emotes"], msg.Trailing),
		Tags:     tv,
	}
}

// Notice is a server NOTICE. Channel is nil for global notices.
type Notice struct {
	Channel *Channel
	MsgID   string
	Text    string
}

// Membership is a JOIN or PART of another user in a channel.
type Membership struct {
	Channel *Channel
	Login   string
}

// ChannelUpdate reports a room-state change.
type ChannelUpdate struct {
	Channel *Channel
	Before  RoomState
	After   RoomState
}

// LocalStateUpdate reports a change of this client's identity in a channel.
type LocalStateUpdate struct {
	Channel *Channel
	Before  LocalState
	After   LocalState
}

// NamesUpdate reports a refreshed names list of a ready channel.
type NamesUpdate struct {
	Channel *Channel
	Names   []string
}

// ClearUser is a timeout or ban of a single user.
type ClearUser struct {
	Channel     *Channel
	TargetLogin string
	TargetID    string
	// BanDuration is zero for permanent bans.
	BanDuration time.Duration
	SentAt      time.Time
}

// Permanent reports whether the user was banned rather than timed out.
func (c ClearUser) Permanent() bool {
	return c.BanDuration == 0
}

// ClearChat is a wipe of the whole chat history of a channel.
type ClearChat struct {
	Channel *Channel
	SentAt  time.Time
}

// NewClear splits a CLEARCHAT into a per-user clear or a whole-chat clear.
func NewClear(ch *Channel, msg *irc.Message) (*ClearUser, *ClearChat) {
	tv := msg.TagValues()
	sentAt := parseTimestamp(tv["tmi-sent-ts"])
	if !msg.HasTrailing || msg.Trailing == "" {
		return nil, &ClearChat{Channel: ch, SentAt: sentAt}
	}
	return &ClearUser{
		Channel:     ch,
		TargetLogin: msg.Trailing,
		TargetID:    tv["target-user-id"],
		BanDuration: time.Duration(atoiOr(tv["ban-duration"], 0)) * time.Second,
		SentAt:      sentAt,
	}, nil
}

// MessageDelete is a CLEARMSG removing one message.
type MessageDelete struct {
	Channel     *Channel
	TargetMsgID string
	Login       string
	Content     string
}

// NewMessageDelete builds the payload of a CLEARMSG.
func NewMessageDelete(ch *Channel, msg *irc.Message) *MessageDelete {
	tv := msg.TagValues()
	return &MessageDelete{
		Channel:     ch,
		TargetMsgID: tv["target-msg-id"],
		Login:       tv["login"],
		Content:     msg.Trailing,
	}
}

// HostStart is a HOSTTARGET naming a hosted channel.
type HostStart struct {
	Channel *Channel
	Target  string
	Viewers int
}

// HostStop is a HOSTTARGET ending a host.
type HostStop struct {
	Channel *Channel
	Viewers int
}

// NewHost splits a HOSTTARGET ":target viewers" into start or stop.
func NewHost(ch *Channel, msg *irc.Message) (*HostStart, *HostStop) {
	target, viewers, _ := strings.Cut(msg.Trailing, " ")
	n := atoiOr(viewers, 0)
	if target == "-" || target == "" {
		return nil, &HostStop{Channel: ch, Viewers: n}
	}
	return &HostStart{Channel: ch, Target: target, Viewers: n}, nil
}

// Reconnect is published after the connection was re-established.
type Reconnect struct {
	At time.Time
}
