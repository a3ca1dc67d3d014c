package eventsub

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/nicklaw5/helix/v2"

	"github.com/pscheid92/tmi/internal/domain"
	"github.com/pscheid92/tmi/internal/metrics"
	apperrors "github.com/pscheid92/tmi/internal/platform/errors"
)

const (
	HeaderMessageID        = "Twitch-Eventsub-Message-Id"
	HeaderMessageTimestamp = "Twitch-Eventsub-Message-Timestamp"
	HeaderMessageSignature = "Twitch-Eventsub-Message-Signature"
	HeaderMessageType      = "Twitch-Eventsub-Message-Type"
	HeaderSubscriptionType = "Twitch-Eventsub-Subscription-Type"

	MessageTypeNotification = "notification"
	MessageTypeVerification = "webhook_callback_verification"
	MessageTypeRevocation   = "revocation"
)

const (
	// ReplayWindow bounds the age of an accepted delivery.
	ReplayWindow = 10 * time.Minute
	// Ids live as long as a replayed delivery could still pass the window.
	dedupTTL          = ReplayWindow
	maxBodySize       = 1 << 20
	processingTimeout = 5 * time.Second
)

type Handler struct {
	secret string
	dedup  domain.Deduper
	joiner domain.ChannelJoiner
	clock  clockwork.Clock
}

func NewHandler(secret string, dedup domain.Deduper, joiner domain.ChannelJoiner, clock clockwork.Clock) *Handler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Handler{secret: secret, dedup: dedup, joiner: joiner, clock: clock}
}

// HandleEventSub is the echo handler for POST /eventsub.
func (h *Handler) HandleEventSub(c echo.Context) error {
	req := c.Request()
	msgType := req.Header.Get(HeaderMessageType)
	subType := req.Header.Get(HeaderSubscriptionType)

	body, err := io.ReadAll(io.LimitReader(req.Body, maxBodySize+1))
	if err != nil {
		return apperrors.ValidationError("failed to read body")
	}
	if len(body) > maxBodySize {
		return apperrors.TooLargeError("body exceeds 1 MiB")
	}

	if !helix.VerifyEventSubNotification(h.secret, req.Header, string(body)) {
		record(subType, "invalid_signature")
		return apperrors.ForbiddenError("invalid signature")
	}
	if err := h.checkTimestamp(req.Header.Get(HeaderMessageTimestamp)); err != nil {
		record(subType, "stale")
		return err
	}

	var notification helix.EventSubNotification
	if err := json.Unmarshal(body, &notification); err != nil {
		record(subType, "malformed")
		return apperrors.ValidationError("malformed payload")
	}
	if notification.Subscription.Type != "" {
		subType = notification.Subscription.Type
	}

	if msgType == MessageTypeVerification {
		slog.InfoContext(req.Context(), "EventSub webhook verification", "subscription_type", subType)
		record(subType, "verified")
		return c.String(http.StatusOK, notification.Challenge)
	}

	if h.duplicate(req.Context(), req.Header.Get(HeaderMessageID)) {
		record(subType, "duplicate")
		return c.NoContent(http.StatusNoContent)
	}

	switch msgType {
	case MessageTypeRevocation:
		slog.WarnContext(req.Context(), "EventSub subscription revoked",
			"subscription_type", subType, "reason", notification.Subscription.Status)
		record(subType, "revoked")
	case MessageTypeNotification:
		record(subType, h.dispatch(req.Context(), subType, notification.Event))
	default:
		record(subType, "ignored")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) checkTimestamp(value string) error {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return apperrors.ValidationError("invalid message timestamp")
	}
	if age := h.clock.Since(ts); age > ReplayWindow || age < -ReplayWindow {
		return apperrors.ForbiddenError("message timestamp outside replay window").
			WithContext("age", age.Round(time.Second).String())
	}
	return nil
}

// duplicate fails open: a dedup outage must not drop deliveries.
func (h *Handler) duplicate(ctx context.Context, id string) bool {
	if h.dedup == nil || id == "" {
		return false
	}
	seen, err := h.dedup.Seen(ctx, id, dedupTTL)
	if err != nil {
		slog.WarnContext(ctx, "EventSub dedup unavailable, accepting delivery", "message_id", id, "error", err)
		return false
	}
	return seen
}

func (h *Handler) dispatch(ctx context.Context, subType string, raw json.RawMessage) string {
	ctx, cancel := context.WithTimeout(ctx, processingTimeout)
	defer cancel()

	switch subType {
	case helix.EventSubTypeStreamOnline:
		var event helix.EventSubStreamOnlineEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			slog.ErrorContext(ctx, "Failed to parse stream.online event", "error", err)
			return "failed"
		}
		return h.apply(ctx, "join", event.BroadcasterUserLogin, h.joiner.JoinChannels)
	case helix.EventSubTypeStreamOffline:
		var event helix.EventSubStreamOfflineEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			slog.ErrorContext(ctx, "Failed to parse stream.offline event", "error", err)
			return "failed"
		}
		return h.apply(ctx, "part", event.BroadcasterUserLogin, h.joiner.PartChannels)
	default:
		return "ignored"
	}
}

func (h *Handler) apply(ctx context.Context, action, login string, fn func(context.Context, ...string) error) string {
	if login == "" {
		return "ignored"
	}
	err := fn(ctx, login)
	if errors.Is(err, context.DeadlineExceeded) {
		slog.WarnContext(ctx, "EventSub channel update timed out", "action", action, "channel", login, "timeout", processingTimeout)
		return "failed"
	}
	if err != nil {
		slog.ErrorContext(ctx, "EventSub channel update failed", "action", action, "channel", login, "error", err)
		return "failed"
	}
	slog.InfoContext(ctx, "EventSub channel update", "action", action, "channel", login)
	return action
}

func record(subscriptionType, result string) {
	if subscriptionType == "" {
		subscriptionType = "unknown"
	}
	metrics.EventSubNotifications.WithLabelValues(subscriptionType, result).Inc()
}
