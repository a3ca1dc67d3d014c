package connection

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestBackoff_Sequence(t *testing.T) {
	b := NewBackoff(clockwork.NewFakeClock())

	var got []time.Duration
	for range 9 {
		got = append(got, b.Next())
	}

	s := time.Second
	assert.Equal(t, []time.Duration{0, 1 * s, 2 * s, 4 * s, 8 * s, 16 * s, 16 * s, 16 * s, 16 * s}, got)
}

func TestBackoff_ResetsAfterQuietMinute(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := NewBackoff(clock)

	b.Next()
	b.Next()
	assert.Equal(t, 2*time.Second, b.Next())

	clock.Advance(61 * time.Second)
	assert.Equal(t, time.Duration(0), b.Next())
	assert.Equal(t, time.Second, b.Next())
}

func TestBackoff_GapWithinMinuteKeepsGrowing(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := NewBackoff(clock)

	b.Next()
	clock.Advance(60 * time.Second)
	assert.Equal(t, time.Second, b.Next())
}

func TestBackoff_Reset(t *testing.T) {
	b := NewBackoff(clockwork.NewFakeClock())
	b.Next()
	b.Next()

	b.Reset()
	assert.Equal(t, time.Duration(0), b.Next())
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"PING :tmi.twitch.tv", ":a!a@a PRIVMSG #x :hi"}, splitLines("PING :tmi.twitch.tv\r\n:a!a@a PRIVMSG #x :hi\r\n"))
	assert.Empty(t, splitLines("\r\n"))
}

func TestPong(t *testing.T) {
	assert.Equal(t, "PONG :tmi.twitch.tv", pong("PING :tmi.twitch.tv").String())
}

func TestOAuthToken(t *testing.T) {
	assert.Equal(t, "oauth:abc", oauthToken("abc"))
	assert.Equal(t, "oauth:abc", oauthToken("oauth:abc"))
}
