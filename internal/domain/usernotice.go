package domain

import (
	"strings"

	"github.com/pscheid92/tmi/internal/irc"
)

// UserNotice is implemented by every USERNOTICE payload.
type UserNotice interface {
	Base() *UserEvent
}

// UserEvent is the common part of every USERNOTICE. Unrecognized kinds are
// delivered as a bare *UserEvent.
type UserEvent struct {
	Kind          string
	Channel       *Channel
	Author        Author
	SystemMessage string
	Content       string
	// MsgParams holds the msg-param-* tags with the prefix removed.
	MsgParams map[string]string
	Tags      map[string]string
}

func (e *UserEvent) Base() *UserEvent { return e }

func (e *UserEvent) param(key string) string { return e.MsgParams[key] }

func (e *UserEvent) intParam(key string) int { return atoiOr(e.MsgParams[key], 0) }

func (e *UserEvent) boolParam(key string) bool {
	v := e.MsgParams[key]
	return v == "1" || v == "true"
}

const msgParamPrefix = "msg-param-"

// NewUserEvent builds the common part of a USERNOTICE.
func NewUserEvent(ch *Channel, msg *irc.Message) *UserEvent {
	tv := msg.TagValues()
	params := make(map[string]string)
	for k, v := range tv {
		if name, ok := strings.CutPrefix(k, msgParamPrefix); ok {
			params[name] = v
		}
	}
	return &UserEvent{
		Kind:          tv["msg-id"],
		Channel:       ch,
		Author:        NewAuthor("", tv),
		SystemMessage: tv["system-msg"],
		Content:       msg.Trailing,
		MsgParams:     params,
		Tags:          tv,
	}
}

// Subscription is a sub or resub.
type Subscription struct {
	*UserEvent
	CumulativeMonths int
	StreakMonths     int
	ShareStreak      bool
	Plan             string
	PlanName         string
}

func NewSubscription(e *UserEvent) *Subscription {
	return &Subscription{
		UserEvent:        e,
		CumulativeMonths: e.intParam("cumulative-months"),
		StreakMonths:     e.intParam("streak-months"),
		ShareStreak:      e.boolParam("should-share-streak"),
		Plan:             e.param("sub-plan"),
		PlanName:         e.param("sub-plan-name"),
	}
}

// SubGift is a gifted subscription to a single recipient.
type SubGift struct {
	*UserEvent
	Months           int
	RecipientID      string
	RecipientLogin   string
	RecipientName    string
	Plan             string
	PlanName         string
	GiftMonths       int
	SenderTotalGifts int
}

func NewSubGift(e *UserEvent) *SubGift {
	return &SubGift{
		UserEvent:        e,
		Months:           e.intParam("months"),
		RecipientID:      e.param("recipient-id"),
		RecipientLogin:   e.param("recipient-user-name"),
		RecipientName:    e.param("recipient-display-name"),
		Plan:             e.param("sub-plan"),
		PlanName:         e.param("sub-plan-name"),
		GiftMonths:       e.intParam("gift-months"),
		SenderTotalGifts: e.intParam("sender-count"),
	}
}

// MysteryGift is a batch of subscriptions gifted to random viewers.
type MysteryGift struct {
	*UserEvent
	Count            int
	Plan             string
	SenderTotalGifts int
}

func NewMysteryGift(e *UserEvent) *MysteryGift {
	return &MysteryGift{
		UserEvent:        e,
		Count:            e.intParam("mass-gift-count"),
		Plan:             e.param("sub-plan"),
		SenderTotalGifts: e.intParam("sender-count"),
	}
}

// PrimePaidUpgrade is a Prime subscription converted to a paid one.
type PrimePaidUpgrade struct {
	*UserEvent
	Plan string
}

func NewPrimePaidUpgrade(e *UserEvent) *PrimePaidUpgrade {
	return &PrimePaidUpgrade{UserEvent: e, Plan: e.param("sub-plan")}
}

// GiftPaidUpgrade is a gifted subscription the recipient continues paying for.
type GiftPaidUpgrade struct {
	*UserEvent
	Anonymous   bool
	SenderLogin string
	SenderName  string
	PromoName   string
	PromoGifts  int
}

func NewGiftPaidUpgrade(e *UserEvent) *GiftPaidUpgrade {
	return &GiftPaidUpgrade{
		UserEvent:   e,
		Anonymous:   e.Kind == "anongiftpaidupgrade",
		SenderLogin: e.param("sender-login"),
		SenderName:  e.param("sender-name"),
		PromoName:   e.param("promo-name"),
		PromoGifts:  e.intParam("promo-gift-total"),
	}
}

// PayForward is a viewer paying a received gift forward, to one user
// (standard) or to the community.
type PayForward struct {
	*UserEvent
	Community      bool
	PriorGifterID  string
	PriorGifter    string
	Anonymous      bool
	RecipientID    string
	RecipientLogin string
}

func NewPayForward(e *UserEvent) *PayForward {
	return &PayForward{
		UserEvent:      e,
		Community:      e.Kind == "communitypayforward",
		PriorGifterID:  e.param("prior-gifter-id"),
		PriorGifter:    e.param("prior-gifter-user-name"),
		Anonymous:      e.boolParam("prior-gifter-anonymous"),
		RecipientID:    e.param("recipient-id"),
		RecipientLogin: e.param("recipient-user-name"),
	}
}

// BitsBadgeTier is a new bits badge tier reached by the author.
type BitsBadgeTier struct {
	*UserEvent
	Threshold int
}

func NewBitsBadgeTier(e *UserEvent) *BitsBadgeTier {
	return &BitsBadgeTier{UserEvent: e, Threshold: e.intParam("threshold")}
}

// Ritual is a chat ritual such as a new chatter greeting.
type Ritual struct {
	*UserEvent
	Name string
}

func NewRitual(e *UserEvent) *Ritual {
	return &Ritual{UserEvent: e, Name: e.param("ritual-name")}
}

// Raid is an incoming raid.
type Raid struct {
	*UserEvent
	FromLogin   string
	FromName    string
	ViewerCount int
}

func NewRaid(e *UserEvent) *Raid {
	return &Raid{
		UserEvent:   e,
		FromLogin:   e.param("login"),
		FromName:    e.param("displayName"),
		ViewerCount: e.intParam("viewerCount"),
	}
}

// Unraid is a cancelled raid.
type Unraid struct {
	*UserEvent
}

func NewUnraid(e *UserEvent) *Unraid {
	return &Unraid{UserEvent: e}
}
