package client

import (
	"context"

	"github.com/pscheid92/tmi/internal/domain"
	"github.com/pscheid92/tmi/internal/irc"
)

type userNoticeKind struct {
	event Event
	build func(*domain.UserEvent) domain.UserNotice
}

// userNoticeKinds maps the msg-id of a USERNOTICE to its event.
var userNoticeKinds = map[string]userNoticeKind{
	"sub":                 {EventSub, func(e *domain.UserEvent) domain.UserNotice { return domain.NewSubscription(e) }},
	"resub":               {EventResub, func(e *domain.UserEvent) domain.UserNotice { return domain.NewSubscription(e) }},
	"subgift":             {EventSubGift, func(e *domain.UserEvent) domain.UserNotice { return domain.NewSubGift(e) }},
	"submysterygift":      {EventMysteryGift, func(e *domain.UserEvent) domain.UserNotice { return domain.NewMysteryGift(e) }},
	"primepaidupgrade":    {EventPrimePaidUpgrade, func(e *domain.UserEvent) domain.UserNotice { return domain.NewPrimePaidUpgrade(e) }},
	"giftpaidupgrade":     {EventGiftPaidUpgrade, func(e *domain.UserEvent) domain.UserNotice { return domain.NewGiftPaidUpgrade(e) }},
	"anongiftpaidupgrade": {EventGiftPaidUpgrade, func(e *domain.UserEvent) domain.UserNotice { return domain.NewGiftPaidUpgrade(e) }},
	"standardpayforward":  {EventStandardPayForward, func(e *domain.UserEvent) domain.UserNotice { return domain.NewPayForward(e) }},
	"communitypayforward": {EventCommunityPayForward, func(e *domain.UserEvent) domain.UserNotice { return domain.NewPayForward(e) }},
	"bitsbadgetier":       {EventBitsBadgeTier, func(e *domain.UserEvent) domain.UserNotice { return domain.NewBitsBadgeTier(e) }},
	"ritual":              {EventRitual, func(e *domain.UserEvent) domain.UserNotice { return domain.NewRitual(e) }},
	"raid":                {EventRaid, func(e *domain.UserEvent) domain.UserNotice { return domain.NewRaid(e) }},
	"unraid":              {EventUnraid, func(e *domain.UserEvent) domain.UserNotice { return domain.NewUnraid(e) }},
}

// onUserNotice fires the specific event of the notice, falling back to
// user_event when that has no handler.
func (c *Client) onUserNotice(ctx context.Context, msg *irc.Message) error {
	ch, err := c.channel(msg)
	if err != nil {
		return err
	}
	base := domain.NewUserEvent(ch, msg)
	kind, ok := userNoticeKinds[base.Kind]
	if !ok {
		c.emit(ctx, EventUnknownUserEvent, base)
		return nil
	}
	typed := kind.build(base)
	if !c.emit(ctx, kind.event, typed) {
		c.emit(ctx, EventUserEvent, typed)
	}
	return nil
}
