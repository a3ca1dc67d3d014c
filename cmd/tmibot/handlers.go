package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pscheid92/tmi/internal/client"
	"github.com/pscheid92/tmi/internal/domain"
)

// registerHandlers logs the chat events a bot operator cares about.
func registerHandlers(bot *client.Client) error {
	return errors.Join(
		bot.On(client.EventReady, func(ctx context.Context, gs *domain.GlobalState) {
			slog.InfoContext(ctx, "Chat client ready", "login", gs.Login, "display_name", gs.DisplayName)
		}),
		bot.On(client.EventReconnect, func(ctx context.Context, r domain.Reconnect) {
			slog.InfoContext(ctx, "Chat client reconnected", "at", r.At)
		}),
		bot.On(client.EventChannelJoin, func(ctx context.Context, ch *domain.Channel) {
			slog.InfoContext(ctx, "Joined channel", "channel", ch.Login(), "room_id", ch.ID(), "chatters", len(ch.Names()))
		}),
		bot.On(client.EventChannelPart, func(ctx context.Context, ch *domain.Channel) {
			slog.InfoContext(ctx, "Parted channel", "channel", ch.Login())
		}),
		bot.On(client.EventMessage, func(ctx context.Context, m *domain.ChatMessage) {
			slog.DebugContext(ctx, "Message", "channel", m.Channel.Login(), "user", m.Author.Login, "text", m.Content, "action", m.Action)
		}),
		bot.On(client.EventWhisper, func(ctx context.Context, w *domain.Whisper) {
			slog.InfoContext(ctx, "Whisper", "from", w.Author.Login, "text", w.Content)
		}),
		bot.On(client.EventNotice, func(ctx context.Context, n domain.Notice) {
			attrs := []any{"msg_id", n.MsgID, "text", n.Text}
			if n.Channel != nil {
				attrs = append(attrs, "channel", n.Channel.Login())
			}
			slog.InfoContext(ctx, "Notice", attrs...)
		}),
		bot.On(client.EventRaid, func(ctx context.Context, r *domain.Raid) {
			slog.InfoContext(ctx, "Raid", "channel", r.Channel.Login(), "from", r.FromLogin, "viewers", r.ViewerCount)
		}),
		bot.On(client.EventUserEvent, func(ctx context.Context, e domain.UserNotice) {
			base := e.Base()
			slog.InfoContext(ctx, "User event", "channel", base.Channel.Login(), "kind", base.Kind, "user", base.Author.Login)
		}),
	)
}
