package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAll(t *testing.T) {
	assert.Equal(t, []string{"ronni", "bobross"}, normalizeAll([]string{"#Ronni", " bobross ", "", "RONNI", "#"}))
}

func TestChannelList(t *testing.T) {
	assert.Equal(t, "#a,#b", channelList([]string{"a", "b"}))
}

func TestUserNoticeKindsAreInCatalog(t *testing.T) {
	for id, kind := range userNoticeKinds {
		_, ok := catalog[kind.event]
		assert.True(t, ok, id)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "login_failed", LoginFailed.String())
	assert.Equal(t, "unknown", State(99).String())
}
