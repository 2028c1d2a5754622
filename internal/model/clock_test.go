package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	sec, err := ParseClock("22:30")
	require.NoError(t, err)
	assert.Equal(t, 22*3600+30*60, sec)

	sec, err = ParseClock("01:02:03")
	require.NoError(t, err)
	assert.Equal(t, 3723, sec)

	for _, bad := range []string{"", "24:00", "12", "12:60", "ab:cd", "1:2:3:4", "-1:00"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestEventTypesExcludeAll(t *testing.T) {
	assert.True(t, EventTypes[ActivityText])
	assert.True(t, EventTypes[ActivityVoice])
	assert.False(t, EventTypes[ActivityAll])
	assert.True(t, ValidActivityTypes[ActivityAll])
}

func TestParseEventType(t *testing.T) {
	typ, err := ParseEventType("voice")
	require.NoError(t, err)
	assert.Equal(t, ActivityVoice, typ)

	for _, bad := range []string{"all", "", "TEXT"} {
		_, err := ParseEventType(bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}
