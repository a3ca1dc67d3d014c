package accumulator

import (
	"strings"

	"github.com/pscheid92/tmi/internal/domain"
	"github.com/pscheid92/tmi/internal/irc"
)

// Readiness orders how complete a channel's staged description is.
type Readiness int

const (
	NotReady Readiness = iota
	// ReadyAnon has the room state and a finished names list.
	ReadyAnon
	// Ready additionally has the local state and the command, mod and VIP lists.
	Ready
)

func (r Readiness) String() string {
	switch r {
	case ReadyAnon:
		return "ready_anon"
	case Ready:
		return "ready"
	default:
		return "not_ready"
	}
}

// Parts stages the replies describing one channel. Nil fields have not
// arrived yet.
type Parts struct {
	Login      string
	RoomState  map[string]string
	LocalState map[string]string
	Names      []string
	NamesDone  bool
	Commands   []string
	Mods       []string
	VIPs       []string
}

func (p *Parts) Readiness() Readiness {
	if p.RoomState == nil || !p.NamesDone {
		return NotReady
	}
	if p.LocalState == nil || p.Commands == nil || p.Mods == nil || p.VIPs == nil {
		return ReadyAnon
	}
	return Ready
}

// Channel materializes the staged parts. self is this client's login.
func (p *Parts) Channel(self string) *domain.Channel {
	snap := domain.ChannelSnapshot{
		ID:        p.RoomState["room-id"],
		Login:     p.Login,
		RoomState: domain.DefaultRoomState().Apply(p.RoomState),
		Names:     p.Names,
		Mods:      p.Mods,
		VIPs:      p.VIPs,
		Commands:  p.Commands,
	}
	if p.LocalState != nil {
		snap.ClientState = domain.NewLocalState(self, p.Login, p.LocalState)
	}
	return domain.NewChannel(snap)
}

type partKey struct {
	command string
	msgID   string
}

type applyFunc func(p *Parts, msg *irc.Message)

var partTable = map[partKey]applyFunc{
	{"ROOMSTATE", ""}:            applyRoomState,
	{"USERSTATE", ""}:            applyLocalState,
	{"353", ""}:                  applyNames,
	{"366", ""}:                  applyNamesEnd,
	{"NOTICE", "cmds_available"}: func(p *Parts, msg *irc.Message) { p.Commands = ParseCommands(msg.Trailing) },
	{"NOTICE", "room_mods"}:      func(p *Parts, msg *irc.Message) { p.Mods = ParseUserList(msg.Trailing) },
	{"NOTICE", "no_mods"}:        func(p *Parts, _ *irc.Message) { p.Mods = []string{} },
	{"NOTICE", "vips_success"}:   func(p *Parts, msg *irc.Message) { p.VIPs = ParseUserList(msg.Trailing) },
	{"NOTICE", "no_vips"}:        func(p *Parts, _ *irc.Message) { p.VIPs = []string{} },
}

// lookup finds the applier for msg; only NOTICEs are keyed by msg-id.
func lookup(msg *irc.Message) (applyFunc, bool) {
	key := partKey{command: msg.Command}
	if msg.Command == "NOTICE" {
		key.msgID = msg.MsgID()
	}
	fn, ok := partTable[key]
	return fn, ok
}

// IsPart reports whether msg is one of the replies that describe a channel.
func IsPart(msg *irc.Message) bool {
	_, ok := lookup(msg)
	return ok
}

func applyRoomState(p *Parts, msg *irc.Message) {
	if p.RoomState == nil {
		p.RoomState = make(map[string]string)
	}
	for k, v := range msg.TagValues() {
		p.RoomState[k] = v
	}
}

func applyLocalState(p *Parts, msg *irc.Message) {
	p.LocalState = msg.TagValues()
}

func applyNames(p *Parts, msg *irc.Message) {
	if p.NamesDone {
		p.Names, p.NamesDone = nil, false
	}
	p.Names = append(p.Names, ParseNames(msg.Trailing)...)
}

func applyNamesEnd(p *Parts, _ *irc.Message) {
	if p.Names == nil {
		p.Names = []string{}
	}
	p.NamesDone = true
}

// ParseNames splits the logins of a 353 names reply.
func ParseNames(text string) []string {
	return strings.Fields(text)
}

// ParseCommands extracts the command names from a cmds_available notice:
// "Commands available to you in this room (use /help <command> for details): /help /w /me More help: ...".
func ParseCommands(text string) []string {
	if i := strings.Index(text, "):"); i >= 0 {
		text = text[i+2:]
	} else if i := strings.Index(text, ":"); i >= 0 {
		text = text[i+1:]
	}

	commands := []string{}
	for _, field := range strings.Fields(text) {
		name, ok := strings.CutPrefix(field, "/")
		if !ok {
			if len(commands) > 0 {
				break
			}
			continue
		}
		if name != "" {
			commands = append(commands, name)
		}
	}
	return commands
}

// ParseUserList extracts logins from "The moderators of this channel are: a, b, c."
func ParseUserList(text string) []string {
	users := []string{}
	_, list, ok := strings.Cut(text, ":")
	if !ok {
		return users
	}
	list = strings.TrimSuffix(strings.TrimSpace(list), ".")
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			users = append(users, name)
		}
	}
	return users
}
