package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/guildkeeper/internal/model"
)

const rulesYAML = `guild_id: g1
timezone: Asia/Seoul
retention_days: 7
levels:
  1: 100
  2: 400
categories:
  - category: music
    multiplier: 1.5
  - category: afk
    multiplier: 0
channels:
  - channel_id: c-music
    category: music
hot_times:
  - type: voice
    start: "22:00"
    end: "02:00"
    multiplier: 2
    enabled: true
exclusions:
  - target_type: role
    target_id: muted
---
guild_id: g2
hot_times:
  - type: all
    start: "12:00"
    end: "13:00"
    multiplier: 1.5
    enabled: true
    channel_ids: [c1]
`

func TestImportExportRules(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	docs, err := UnmarshalRules([]byte(rulesYAML))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	total := 0
	for _, d := range docs {
		n, err := ImportRules(ctx, s, s, d)
		require.NoError(t, err)
		total += n
	}
	assert.Equal(t, 9, total)

	cat, err := s.ChannelCategory(ctx, "g1", "c-music")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryMusic, cat)

	g1, err := s.ExportRules(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", g1.Timezone)
	require.NotNil(t, g1.RetentionDays)
	assert.Equal(t, 7, *g1.RetentionDays)
	assert.Equal(t, map[int]int64{1: 100, 2: 400}, g1.Levels)
	assert.Len(t, g1.Categories, 2)
	require.Len(t, g1.HotTimes, 1)
	assert.Equal(t, model.ActivityVoice, g1.HotTimes[0].Type)
	require.Len(t, g1.Exclusions, 1)

	g2, err := s.ExportRules(ctx, "g2")
	require.NoError(t, err)
	assert.Nil(t, g2.RetentionDays)
	require.Len(t, g2.HotTimes, 1)
	assert.Equal(t, []string{"c1"}, g2.HotTimes[0].ChannelIDs)

	// Exported documents import cleanly into a fresh store.
	out, err := MarshalRules([]*GuildRules{g2, g1})
	require.NoError(t, err)

	fresh := newTestStore(t)
	again, err := UnmarshalRules(out)
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, "g1", again[0].GuildID)
	for _, d := range again {
		_, err := ImportRules(ctx, fresh, fresh, d)
		require.NoError(t, err)
	}

	// Imported ids are kept, so re-importing does not duplicate windows.
	_, err = ImportRules(ctx, fresh, fresh, again[0])
	require.NoError(t, err)
	windows, err := fresh.HotTimes(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, windows, 1)
}

func TestImportRulesRequiresGuild(t *testing.T) {
	s := newTestStore(t)
	_, err := ImportRules(context.Background(), s, s, &GuildRules{})
	assert.ErrorIs(t, err, model.ErrValidation)
}
