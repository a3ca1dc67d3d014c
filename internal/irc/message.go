package irc

import (
	"maps"
	"sort"
	"strings"
)

// MaxMiddles is the number of middle parameters after which the remainder of
// the line becomes the trailing parameter even without a leading colon.
const MaxMiddles = 14

// Tag is a single IRCv3 message tag value. HasValue distinguishes "key" from "key=".
type Tag struct {
	Value    string
	HasValue bool
}

// Message is one parsed protocol line.
//
// At most one of Servername and Nickname is set. User and Host are only
// meaningful together with Nickname.
type Message struct {
	Tags map[string]Tag

	Servername string
	Nickname   string
	User       string
	Host       string

	Command     string
	Middles     []string
	Trailing    string
	HasTrailing bool

	tagOrder     []string
	bareTrailing bool

	// rawTags and rawPrefix hold the parsed text, reused by String while the
	// fields above still describe it.
	rawTags   string
	hasTags   bool
	rawPrefix string
	hasPrefix bool
}

// New builds an outgoing message.
func New(command string, middles ...string) *Message {
	return &Message{Command: command, Middles: middles}
}

// WithTrailing sets the trailing parameter and returns m.
func (m *Message) WithTrailing(trailing string) *Message {
	m.Trailing = trailing
	m.HasTrailing = true
	m.bareTrailing = false
	return m
}

// WithTag sets a tag with a value and returns m.
func (m *Message) WithTag(key, value string) *Message {
	if m.Tags == nil {
		m.Tags = make(map[string]Tag)
	}
	m.Tags[key] = Tag{Value: value, HasValue: true}
	return m
}

// Tag returns the value of a tag and whether the key is present at all.
func (m *Message) Tag(key string) (string, bool) {
	t, ok := m.Tags[key]
	return t.Value, ok
}

// TagValues flattens Tags into a plain map. Keys without a value map to "".
func (m *Message) TagValues() map[string]string {
	out := make(map[string]string, len(m.Tags))
	for k, t := range m.Tags {
		out[k] = t.Value
	}
	return out
}

// Channel is the first middle starting with '#', without the '#'.
func (m *Message) Channel() string {
	for _, p := range m.Middles {
		if strings.HasPrefix(p, "#") {
			return p[1:]
		}
	}
	return ""
}

// MsgID returns the msg-id tag.
func (m *Message) MsgID() string {
	v, _ := m.Tag("msg-id")
	return v
}

// Parse decodes a raw protocol line. Trailing CR/LF must already be stripped.
func Parse(raw string) *Message {
	m := &Message{}
	rest := raw

	if strings.HasPrefix(rest, "@") {
		var block string
		block, rest, _ = strings.Cut(rest[1:], " ")
		m.parseTags(block)
		m.rawTags, m.hasTags = block, true
	}

	if strings.HasPrefix(rest, ":") {
		var prefix string
		prefix, rest, _ = strings.Cut(rest[1:], " ")
		m.parsePrefix(prefix)
		m.rawPrefix, m.hasPrefix = prefix, true
	}

	command, params, hasParams := strings.Cut(rest, " ")
	m.Command = command
	if hasParams {
		m.parseParams(params)
	}
	return m
}

func (m *Message) parseTags(block string) {
	m.Tags = make(map[string]Tag)
	for _, item := range strings.Split(block, ";") {
		key, value, hasValue := strings.Cut(item, "=")
		if _, dup := m.Tags[key]; !dup {
			m.tagOrder = append(m.tagOrder, key)
		}
		if hasValue {
			m.Tags[key] = Tag{Value: UnescapeTagValue(value), HasValue: true}
		} else {
			m.Tags[key] = Tag{}
		}
	}
}

func (m *Message) parsePrefix(prefix string) {
	switch {
	case strings.Contains(prefix, "@"):
		nickUser, host, _ := strings.Cut(prefix, "@")
		nick, user, _ := strings.Cut(nickUser, "!")
		m.Nickname, m.User, m.Host = nick, user, host
	case strings.Contains(prefix, "."):
		m.Servername = prefix
	default:
		m.Nickname = prefix
	}
}

func (m *Message) parseParams(params string) {
	m.Middles = []string{}
	rest := params
	for len(m.Middles) < MaxMiddles {
		if strings.HasPrefix(rest, ":") {
			m.Trailing = rest[1:]
			m.HasTrailing = true
			return
		}
		token, remainder, more := strings.Cut(rest, " ")
		m.Middles = append(m.Middles, token)
		if !more {
			return
		}
		rest = remainder
	}

	// Fifteenth token: trailing with or without its colon.
	m.HasTrailing = true
	if strings.HasPrefix(rest, ":") {
		m.Trailing = rest[1:]
		return
	}
	m.Trailing = rest
	m.bareTrailing = true
}

// String serializes the message. Parsed messages reproduce their original bytes.
func (m *Message) String() string {
	var b strings.Builder

	if block, ok := m.parsedTags(); ok {
		b.WriteByte('@')
		b.WriteString(block)
		b.WriteByte(' ')
	} else if len(m.Tags) > 0 {
		b.WriteByte('@')
		for i, key := range m.orderedTagKeys() {
			if i > 0 {
				b.WriteByte(';')
			}
			b.WriteString(key)
			if t := m.Tags[key]; t.HasValue {
				b.WriteByte('=')
				b.WriteString(EscapeTagValue(t.Value))
			}
		}
		b.WriteByte(' ')
	}

	if prefix, ok := m.parsedPrefix(); ok {
		b.WriteByte(':')
		b.WriteString(prefix)
		b.WriteByte(' ')
	} else if prefix := m.prefix(); prefix != "" {
		b.WriteByte(':')
		b.WriteString(prefix)
		b.WriteByte(' ')
	}

	b.WriteString(m.Command)
	for _, p := range m.Middles {
		b.WriteByte(' ')
		b.WriteString(p)
	}
	if m.HasTrailing {
		b.WriteByte(' ')
		if !m.bareTrailing {
			b.WriteByte(':')
		}
		b.WriteString(m.Trailing)
	}
	return b.String()
}

// parsedTags returns the parsed tag block unless Tags changed since.
func (m *Message) parsedTags() (string, bool) {
	if !m.hasTags {
		return "", false
	}
	var parsed Message
	parsed.parseTags(m.rawTags)
	if !maps.Equal(parsed.Tags, m.Tags) {
		return "", false
	}
	return m.rawTags, true
}

// parsedPrefix returns the parsed prefix unless the prefix fields changed since.
func (m *Message) parsedPrefix() (string, bool) {
	if !m.hasPrefix {
		return "", false
	}
	var parsed Message
	parsed.parsePrefix(m.rawPrefix)
	if parsed.Servername != m.Servername || parsed.Nickname != m.Nickname ||
		parsed.User != m.User || parsed.Host != m.Host {
		return "", false
	}
	return m.rawPrefix, true
}

func (m *Message) prefix() string {
	if m.Servername != "" {
		return m.Servername
	}
	if m.Nickname == "" {
		return ""
	}
	p := m.Nickname
	if m.User != "" {
		p += "!" + m.User
	}
	if m.Host != "" {
		p += "@" + m.Host
	}
	return p
}

// orderedTagKeys keeps the parsed order while it still describes Tags exactly.
func (m *Message) orderedTagKeys() []string {
	if len(m.tagOrder) == len(m.Tags) {
		valid := true
		for _, k := range m.tagOrder {
			if _, ok := m.Tags[k]; !ok {
				valid = false
				break
			}
		}
		if valid {
			return m.tagOrder
		}
	}
	keys := make([]string, 0, len(m.Tags))
	for k := range m.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
