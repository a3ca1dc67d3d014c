package tags

import (
	"sort"
	"strconv"
	"strings"
)

// FlagScore is one category/level pair of a flagged span, e.g. "P.6".
type FlagScore struct {
	Category string
	Level    int
}

// Flag marks a span of content the moderation filter scored.
type Flag struct {
	Span   Span
	Scores []FlagScore
	Text   string
}

// ParseFlags decodes "0-4:A.3/P.6,10-14:" against content.
func ParseFlags(raw, content string) []Flag {
	flags := []Flag{}
	if raw == "" {
		return flags
	}

	runes := []rune(content)
	for _, item := range strings.Split(raw, ",") {
		rangePart, scorePart, _ := strings.Cut(item, ":")
		span, ok := parseSpan(rangePart, len(runes))
		if !ok {
			continue
		}
		flags = append(flags, Flag{
			Span:   span,
			Scores: parseScores(scorePart),
			Text:   string(runes[span.Start:span.End]),
		})
	}

	sort.SliceStable(flags, func(i, j int) bool { return flags[i].Span.Start < flags[j].Span.Start })
	return flags
}

func parseScores(raw string) []FlagScore {
	scores := []FlagScore{}
	if raw == "" {
		return scores
	}
	for _, s := range strings.Split(raw, "/") {
		category, level, ok := strings.Cut(s, ".")
		if !ok || category == "" {
			continue
		}
		n, err := strconv.Atoi(level)
		if err != nil {
			continue
		}
		scores = append(scores, FlagScore{Category: category, Level: n})
	}
	return scores
}
