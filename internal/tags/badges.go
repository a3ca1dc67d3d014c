// Package tags decodes the compact tag grammars used by chat messages:
// badges ("name/version,..."), emote ranges ("id:start-end,.../...") and
// moderation flags ("start-end:C.L/C.L,...").
package tags

import "strings"

// BadgeSet maps badge name to badge version (or, for badge-info, to its detail).
type BadgeSet map[string]string

// Has reports whether the badge is present.
func (b BadgeSet) Has(name string) bool {
	_, ok := b[name]
	return ok
}

// Get returns the badge version or "".
func (b BadgeSet) Get(name string) string {
	return b[name]
}

// ParseBadges decodes "subscriber/12,vip/1". An empty string yields an empty set.
func ParseBadges(raw string) BadgeSet {
	set := make(BadgeSet)
	if raw == "" {
		return set
	}
	for _, item := range strings.Split(raw, ",") {
		if item == "" {
			continue
		}
		name, version, _ := strings.Cut(item, "/")
		set[name] = version
	}
	return set
}

// ParseEmoteSets decodes the comma list of emote set ids.
func ParseEmoteSets(raw string) []string {
	if raw == "" {
		return []string{}
	}
	sets := make([]string, 0, strings.Count(raw, ",")+1)
	for _, s := range strings.Split(raw, ",") {
		if s != "" {
			sets = append(sets, s)
		}
	}
	return sets
}
