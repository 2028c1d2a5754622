package model

import "time"

// ChannelCategory groups channels that share a reward multiplier.
type ChannelCategory string

const (
	CategoryNormal  ChannelCategory = "normal"
	CategoryMusic   ChannelCategory = "music"
	CategoryAFK     ChannelCategory = "afk"
	CategoryPremium ChannelCategory = "premium"
)

// ValidCategories are the allowed channel categories.
var ValidCategories = map[ChannelCategory]bool{
	CategoryNormal:  true,
	CategoryMusic:   true,
	CategoryAFK:     true,
	CategoryPremium: true,
}

// CategoryMultiplier scales rewards earned in channels of one category.
type CategoryMultiplier struct {
	GuildID    string          `json:"guild_id" yaml:"-"`
	Category   ChannelCategory `json:"category" yaml:"category"`
	Multiplier float64         `json:"multiplier" yaml:"multiplier"`
}

// ChannelCategoryAssignment maps a channel to its category.
type ChannelCategoryAssignment struct {
	GuildID   string          `json:"guild_id" yaml:"-"`
	ChannelID string          `json:"channel_id" yaml:"channel_id"`
	Category  ChannelCategory `json:"category" yaml:"category"`
}

// HotTimeWindow grants a bonus multiplier during a daily time-of-day range.
// Start and End are "HH:MM" in the guild's time zone; Start > End wraps midnight.
type HotTimeWindow struct {
	ID         string       `json:"id" yaml:"id,omitempty"`
	GuildID    string       `json:"guild_id" yaml:"-"`
	Type       ActivityType `json:"type" yaml:"type"`
	Start      string       `json:"start" yaml:"start"`
	End        string       `json:"end" yaml:"end"`
	Multiplier float64      `json:"multiplier" yaml:"multiplier"`
	Enabled    bool         `json:"enabled" yaml:"enabled"`
	ChannelIDs []string     `json:"channel_ids,omitempty" yaml:"channel_ids,omitempty"`

	// Malformed is set when the stored window could not be decoded. Such a window
	// never matches.
	Malformed error `json:"-" yaml:"-"`
}

// ExclusionTarget says what an exclusion rule matches against.
type ExclusionTarget string

const (
	ExcludeChannel ExclusionTarget = "channel"
	ExcludeRole    ExclusionTarget = "role"
)

// ExclusionRule removes all rewards for a channel or a role.
type ExclusionRule struct {
	ID         string          `json:"id" yaml:"id,omitempty"`
	GuildID    string          `json:"guild_id" yaml:"-"`
	TargetType ExclusionTarget `json:"target_type" yaml:"target_type"`
	TargetID   string          `json:"target_id" yaml:"target_id"`
}

// GuildSettings holds per-guild scalar settings.
type GuildSettings struct {
	GuildID       string    `json:"guild_id"`
	Timezone      string    `json:"timezone,omitempty"`
	RetentionDays int       `json:"retention_days"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
