package domain

import (
	"strings"

	"github.com/pscheid92/tmi/internal/tags"
)

// AnonymousLoginPrefix marks read-only logins that need no token.
const AnonymousLoginPrefix = "justinfan"

// IsAnonymousLogin reports whether login is a token-less read-only login.
func IsAnonymousLogin(login string) bool {
	return strings.HasPrefix(strings.ToLower(login), AnonymousLoginPrefix)
}

// Identity is the part of a user's state shared by the global and the per-channel view.
type Identity struct {
	ID          string
	Login       string
	DisplayName string
	Color       string
	Badges      tags.BadgeSet
	BadgeInfo   tags.BadgeSet
	EmoteSets   []string
}

func newIdentity(login string, tv map[string]string) Identity {
	return Identity{
		ID:          tv["user-id"],
		Login:       login,
		DisplayName: tv["display-name"],
		Color:       tv["color"],
		Badges:      tags.ParseBadges(tv["badges"]),
		BadgeInfo:   tags.ParseBadges(tv["badge-info"]),
		EmoteSets:   tags.ParseEmoteSets(tv["emote-sets"]),
	}
}

// GlobalState is this client's whole-connection identity, from GLOBALUSERSTATE.
type GlobalState struct {
	Identity
}

// NewGlobalState builds the global identity from GLOBALUSERSTATE tags.
func NewGlobalState(login string, tv map[string]string) *GlobalState {
	return &GlobalState{Identity: newIdentity(login, tv)}
}

// LocalState is this client's identity inside one channel, from USERSTATE.
type LocalState struct {
	Identity
	Channel       string
	IsMod         bool
	IsVIP         bool
	IsBroadcaster bool
	IsSubscriber  bool
}

// NewLocalState builds the per-channel identity from USERSTATE tags.
func NewLocalState(login, channel string, tv map[string]string) LocalState {
	id := newIdentity(login, tv)
	return LocalState{
		Identity:      id,
		Channel:       channel,
		IsMod:         tv["mod"] == "1" || id.Badges.Has("moderator"),
		IsVIP:         tv["vip"] == "1" || id.Badges.Has("vip"),
		IsBroadcaster: id.Badges.Has("broadcaster"),
		IsSubscriber:  tv["subscriber"] == "1" || id.Badges.Has("subscriber") || id.Badges.Has("founder"),
	}
}

// Author is the sender of a chat message, whisper or user event.
type Author struct {
	ID            string
	Login         string
	DisplayName   string
	Color         string
	UserType      string
	Badges        tags.BadgeSet
	BadgeInfo     tags.BadgeSet
	IsMod         bool
	IsVIP         bool
	IsSubscriber  bool
	IsTurbo       bool
	IsBroadcaster bool
}

// NewAuthor builds the sender view from message tags. login falls back to the
// "login" tag used by USERNOTICE.
func NewAuthor(login string, tv map[string]string) Author {
	if login == "" {
		login = tv["login"]
	}
	badges := tags.ParseBadges(tv["badges"])
	return Author{
		ID:            tv["user-id"],
		Login:         login,
		DisplayName:   tv["display-name"],
		Color:         tv["color"],
		UserType:      tv["user-type"],
		Badges:        badges,
		BadgeInfo:     tags.ParseBadges(tv["badge-info"]),
		IsMod:         tv["mod"] == "1" || badges.Has("moderator"),
		IsVIP:         tv["vip"] == "1" || badges.Has("vip"),
		IsSubscriber:  tv["subscriber"] == "1" || badges.Has("subscriber") || badges.Has("founder"),
		IsTurbo:       tv["turbo"] == "1" || badges.Has("turbo"),
		IsBroadcaster: badges.Has("broadcaster"),
	}
}
