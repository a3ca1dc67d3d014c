package domain

import (
	"slices"
	"strconv"
	"sync"
)

// RoomState is the set of chat-mode flags of a channel.
type RoomState struct {
	EmoteOnly bool
	// FollowersOnlyMinutes is -1 when followers-only mode is off.
	FollowersOnlyMinutes int
	UniqueOnly           bool
	SubsOnly             bool
	SlowSeconds          int
	HasRituals           bool
}

// DefaultRoomState is the state of a room with every mode off.
func DefaultRoomState() RoomState {
	return RoomState{FollowersOnlyMinutes: -1}
}

// Apply returns s updated with the ROOMSTATE tags present in tv.
// Partial ROOMSTATE updates only carry the changed keys.
func (s RoomState) Apply(tv map[string]string) RoomState {
	if v, ok := tv["emote-only"]; ok {
		s.EmoteOnly = v == "1"
	}
	if v, ok := tv["followers-only"]; ok {
		s.FollowersOnlyMinutes = atoiOr(v, -1)
	}
	if v, ok := tv["r9k"]; ok {
		s.UniqueOnly = v == "1"
	}
	if v, ok := tv["subs-only"]; ok {
		s.SubsOnly = v == "1"
	}
	if v, ok := tv["slow"]; ok {
		s.SlowSeconds = atoiOr(v, 0)
	}
	if v, ok := tv["rituals"]; ok {
		s.HasRituals = v == "1"
	}
	return s
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// ChannelSnapshot carries everything a Channel is built from.
type ChannelSnapshot struct {
	ID          string
	Login       string
	RoomState   RoomState
	ClientState LocalState
	Names       []string
	Mods        []string
	VIPs        []string
	Commands    []string
}

// Channel is a joined room. It is created once the room is ready and then
// mutated in place by the client's read loop; readers get copies.
type Channel struct {
	mu sync.RWMutex

	id          string
	login       string
	roomState   RoomState
	clientState LocalState
	names       []string
	mods        []string
	vips        []string
	commands    []string
}

// NewChannel materializes a channel from its collected parts.
func NewChannel(s ChannelSnapshot) *Channel {
	return &Channel{
		id:          s.ID,
		login:       s.Login,
		roomState:   s.RoomState,
		clientState: s.ClientState,
		names:       slices.Clone(s.Names),
		mods:        slices.Clone(s.Mods),
		vips:        slices.Clone(s.VIPs),
		commands:    slices.Clone(s.Commands),
	}
}

func (c *Channel) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

func (c *Channel) Login() string {
	return c.login
}

func (c *Channel) RoomState() RoomState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomState
}

func (c *Channel) ClientState() LocalState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientState
}

func (c *Channel) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.names)
}

func (c *Channel) Mods() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.mods)
}

func (c *Channel) VIPs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.vips)
}

func (c *Channel) Commands() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.commands)
}

// Snapshot returns a copy of the channel's current contents.
func (c *Channel) Snapshot() ChannelSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ChannelSnapshot{
		ID:          c.id,
		Login:       c.login,
		RoomState:   c.roomState,
		ClientState: c.clientState,
		Names:       slices.Clone(c.names),
		Mods:        slices.Clone(c.mods),
		VIPs:        slices.Clone(c.vips),
		Commands:    slices.Clone(c.commands),
	}
}

// ApplyRoomState merges a ROOMSTATE update and returns the previous state.
func (c *Channel) ApplyRoomState(tv map[string]string) RoomState {
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.roomState
	c.roomState = c.roomState.Apply(tv)
	if id, ok := tv["room-id"]; ok && id != "" {
		c.id = id
	}
	return before
}

// SetClientState replaces this client's per-channel identity.
func (c *Channel) SetClientState(s LocalState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientState = s
}

func (c *Channel) SetNames(names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = slices.Clone(names)
}

func (c *Channel) SetMods(mods []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mods = slices.Clone(mods)
}

func (c *Channel) SetVIPs(vips []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vips = slices.Clone(vips)
}

func (c *Channel) SetCommands(commands []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = slices.Clone(commands)
}
