package irc

import "strings"

var tagEscaper = strings.NewReplacer(`\`, `\\`, " ", `\s`, ";", `\:`)

// EscapeTagValue encodes a tag value for the wire. CR and LF are left untouched.
func EscapeTagValue(value string) string {
	return tagEscaper.Replace(value)
}

// UnescapeTagValue decodes a wire tag value. An unknown escape sequence keeps the
// character after the backslash; a lone trailing backslash is dropped.
func UnescapeTagValue(value string) string {
	if !strings.Contains(value, `\`) {
		return value
	}

	var b strings.Builder
	b.Grow(len(value))

	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(value) {
			break
		}
		i++
		switch value[i] {
		case 's':
			b.WriteByte(' ')
		case ':':
			b.WriteByte(';')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte(value[i])
		}
	}
	return b.String()
}
