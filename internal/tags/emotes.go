package tags

import (
	"sort"
	"strconv"
	"strings"
)

// Span is a half-open range of code points within message content.
type Span struct {
	Start int
	End   int
}

// Emote is one occurrence of an emote in the content.
type Emote struct {
	ID   string
	Span Span
	Name string
}

// ParseEmotes decodes "25:0-4,6-10/1902:12-16" against content. The wire end
// index is inclusive; Span.End is exclusive so runes[Start:End] is the emote text.
func ParseEmotes(raw, content string) []Emote {
	emotes := []Emote{}
	if raw == "" {
		return emotes
	}

	runes := []rune(content)
	for _, group := range strings.Split(raw, "/") {
		id, ranges, ok := strings.Cut(group, ":")
		if !ok || id == "" {
			continue
		}
		for _, r := range strings.Split(ranges, ",") {
			span, ok := parseSpan(r, len(runes))
			if !ok {
				continue
			}
			emotes = append(emotes, Emote{
				ID:   id,
				Span: span,
				Name: string(runes[span.Start:span.End]),
			})
		}
	}

	sort.SliceStable(emotes, func(i, j int) bool { return emotes[i].Span.Start < emotes[j].Span.Start })
	return emotes
}

// parseSpan decodes "start-end" and clamps it to limit code points.
func parseSpan(raw string, limit int) (Span, bool) {
	from, to, ok := strings.Cut(raw, "-")
	if !ok {
		return Span{}, false
	}
	start, err := strconv.Atoi(from)
	if err != nil || start < 0 {
		return Span{}, false
	}
	end, err := strconv.Atoi(to)
	if err != nil || end < start {
		return Span{}, false
	}
	if start > limit {
		start = limit
	}
	if end >= limit {
		end = limit
	} else {
		end++
	}
	return Span{Start: start, End: end}, true
}
