package client

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/pscheid92/tmi/internal/domain"
	"github.com/pscheid92/tmi/internal/irc"
)

// Event names a dispatchable event. Handlers are func(context.Context, T)
// where T is the payload type listed next to each name.
type Event string

const (
	// Connection lifecycle.
	EventReady             Event = "ready"               // *domain.GlobalState
	EventReconnect         Event = "reconnect"           // domain.Reconnect
	EventGlobalStateUpdate Event = "global_state_update" // *domain.GlobalState
	EventUnknownCommand    Event = "unknown_command"     // *irc.Message

	// Channel lifecycle.
	EventChannelJoin      Event = "channel_join"       // *domain.Channel
	EventChannelPart      Event = "channel_part"       // *domain.Channel
	EventChannelUpdate    Event = "channel_update"     // domain.ChannelUpdate
	EventLocalStateUpdate Event = "local_state_update" // domain.LocalStateUpdate
	EventNamesUpdate      Event = "names_update"       // domain.NamesUpdate
	EventUserJoin         Event = "user_join"          // domain.Membership
	EventUserPart         Event = "user_part"          // domain.Membership

	// Chat.
	EventMessage Event = "message" // *domain.ChatMessage
	EventWhisper Event = "whisper" // *domain.Whisper
	EventNotice  Event = "notice"  // domain.Notice

	// Moderation.
	EventClearUser     Event = "clear_user"     // *domain.ClearUser
	EventClearChat     Event = "clear_chat"     // *domain.ClearChat
	EventMessageDelete Event = "message_delete" // *domain.MessageDelete
	EventHostStart     Event = "host_start"     // *domain.HostStart
	EventHostStop      Event = "host_stop"      // *domain.HostStop

	// User events.
	EventSub                 Event = "sub"                 // *domain.Subscription
	EventResub               Event = "resub"               // *domain.Subscription
	EventSubGift             Event = "subgift"             // *domain.SubGift
	EventMysteryGift         Event = "submysterygift"      // *domain.MysteryGift
	EventPrimePaidUpgrade    Event = "primepaidupgrade"    // *domain.PrimePaidUpgrade
	EventGiftPaidUpgrade     Event = "giftpaidupgrade"     // *domain.GiftPaidUpgrade
	EventStandardPayForward  Event = "standardpayforward"  // *domain.PayForward
	EventCommunityPayForward Event = "communitypayforward" // *domain.PayForward
	EventBitsBadgeTier       Event = "bitsbadgetier"       // *domain.BitsBadgeTier
	EventRitual              Event = "ritual"              // *domain.Ritual
	EventRaid                Event = "raid"                // *domain.Raid
	EventUnraid              Event = "unraid"              // *domain.Unraid
	EventUserEvent           Event = "user_event"          // domain.UserNotice
	EventUnknownUserEvent    Event = "unknown_user_event"  // *domain.UserEvent
)

type handlerFunc func(ctx context.Context, payload any)

type binder func(fn any) (handlerFunc, bool)

func bind[T any](fn any) (handlerFunc, bool) {
	f, ok := fn.(func(context.Context, T))
	if !ok || f == nil {
		return nil, false
	}
	return func(ctx context.Context, payload any) { f(ctx, payload.(T)) }, true
}

var catalog = map[Event]binder{
	EventReady:             bind[*domain.GlobalState],
	EventReconnect:         bind[domain.Reconnect],
	EventGlobalStateUpdate: bind[*domain.GlobalState],
	EventUnknownCommand:    bind[*irc.Message],

	EventChannelJoin:      bind[*domain.Channel],
	EventChannelPart:      bind[*domain.Channel],
	EventChannelUpdate:    bind[domain.ChannelUpdate],
	EventLocalStateUpdate: bind[domain.LocalStateUpdate],
	EventNamesUpdate:      bind[domain.NamesUpdate],
	EventUserJoin:         bind[domain.Membership],
	EventUserPart:         bind[domain.Membership],

	EventMessage: bind[*domain.ChatMessage],
	EventWhisper: bind[*domain.Whisper],
	EventNotice:  bind[domain.Notice],

	EventClearUser:     bind[*domain.ClearUser],
	EventClearChat:     bind[*domain.ClearChat],
	EventMessageDelete: bind[*domain.MessageDelete],
	EventHostStart:     bind[*domain.HostStart],
	EventHostStop:      bind[*domain.HostStop],

	EventSub:                 bind[*domain.Subscription],
	EventResub:               bind[*domain.Subscription],
	EventSubGift:             bind[*domain.SubGift],
	EventMysteryGift:         bind[*domain.MysteryGift],
	EventPrimePaidUpgrade:    bind[*domain.PrimePaidUpgrade],
	EventGiftPaidUpgrade:     bind[*domain.GiftPaidUpgrade],
	EventStandardPayForward:  bind[*domain.PayForward],
	EventCommunityPayForward: bind[*domain.PayForward],
	EventBitsBadgeTier:       bind[*domain.BitsBadgeTier],
	EventRitual:              bind[*domain.Ritual],
	EventRaid:                bind[*domain.Raid],
	EventUnraid:              bind[*domain.Unraid],
	EventUserEvent:           bind[domain.UserNotice],
	EventUnknownUserEvent:    bind[*domain.UserEvent],
}

// Events lists every name accepted by On, sorted.
func Events() []Event {
	names := make([]Event, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// registry holds at most one handler per event.
type registry struct {
	mu       sync.RWMutex
	handlers map[Event]handlerFunc
}

func newRegistry() *registry {
	return &registry{handlers: make(map[Event]handlerFunc)}
}

func (r *registry) set(event Event, fn any) error {
	b, ok := catalog[event]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownEvent, event)
	}
	h, ok := b(fn)
	if !ok {
		return fmt.Errorf("%w: %T for %q", domain.ErrNotACallback, fn, event)
	}
	r.mu.Lock()
	r.handlers[event] = h
	r.mu.Unlock()
	return nil
}

func (r *registry) get(event Event) (handlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[event]
	return h, ok
}
