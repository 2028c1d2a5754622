// Package store defines the storage ports of the rules engine and their SQLite implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rcliao/guildkeeper/internal/level"
	"github.com/rcliao/guildkeeper/internal/model"
)

// ErrNotDeparted is returned by PurgeMemberData when the member no longer has an
// expired departed record, e.g. because they rejoined (and maybe left again) after
// the expiry query ran.
var ErrNotDeparted = errors.New("member is not departed")

// GuildRuleConfig is the read-only view of per-guild reward rules.
type GuildRuleConfig interface {
	// CategoryMultipliers returns the configured category multipliers of a guild.
	CategoryMultipliers(ctx context.Context, guildID string) ([]model.CategoryMultiplier, error)

	// ChannelCategory returns the category of a channel, CategoryNormal when unmapped.
	ChannelCategory(ctx context.Context, guildID, channelID string) (model.ChannelCategory, error)

	// HotTimes returns every hot-time window of a guild, enabled or not.
	HotTimes(ctx context.Context, guildID string) ([]model.HotTimeWindow, error)

	// Exclusions returns the channel and role exclusions of a guild.
	Exclusions(ctx context.Context, guildID string) ([]model.ExclusionRule, error)

	// LevelCurve returns the guild's custom curve, or the default curve when none is set.
	LevelCurve(ctx context.Context, guildID string) (level.Curve, error)

	// Timezone returns the guild's IANA time zone name, empty when unset.
	Timezone(ctx context.Context, guildID string) (string, error)
}

// RuleAdmin mutates guild rules. Used by configuration tooling, never by the engine.
type RuleAdmin interface {
	SaveCategoryMultiplier(ctx context.Context, m model.CategoryMultiplier) error
	SaveChannelCategory(ctx context.Context, a model.ChannelCategoryAssignment) error
	SaveHotTime(ctx context.Context, w model.HotTimeWindow) (*model.HotTimeWindow, error)
	DeleteHotTime(ctx context.Context, guildID, id string) error
	SaveExclusion(ctx context.Context, r model.ExclusionRule) (*model.ExclusionRule, error)
	DeleteExclusion(ctx context.Context, guildID, id string) error
	SaveLevelCurve(ctx context.Context, guildID string, c level.Curve) error
	SaveTimezone(ctx context.Context, guildID, tz string) error
}

// RetentionStore persists departed-member records and purges member data.
type RetentionStore interface {
	// FindExpiredDeparted returns departed records of all guilds with expires_at <= now.
	FindExpiredDeparted(ctx context.Context, now time.Time) ([]model.RetentionRecord, error)

	// PurgeMemberData deletes all guild-scoped data of the member and marks the record
	// purged, as one transaction. Returns ErrNotDeparted unless the record is still
	// departed and expired at now.
	PurgeMemberData(ctx context.Context, guildID, userID string, now time.Time) error

	// UpsertDeparture creates or replaces the member's record with a departed one.
	UpsertDeparture(ctx context.Context, r model.RetentionRecord) error

	// DeleteRetentionRecord removes the member's record (rejoin).
	DeleteRetentionRecord(ctx context.Context, guildID, userID string) error

	// ListRetentionRecords returns a guild's records, newest departure first.
	ListRetentionRecords(ctx context.Context, guildID string) ([]model.RetentionRecord, error)

	// RetentionSettings returns the guild's settings, or nil when none are stored.
	RetentionSettings(ctx context.Context, guildID string) (*model.GuildSettings, error)

	// SaveRetentionSettings stores the guild's retention days.
	SaveRetentionSettings(ctx context.Context, guildID string, days int) error
}

// AwardParams holds a resolved reward to persist.
type AwardParams struct {
	GuildID  string
	UserID   string
	XP       int64
	Currency int64
	Reason   string
	At       time.Time
}

// MemberBalance is a member's running totals after an award.
type MemberBalance struct {
	GuildID  string `json:"guild_id"`
	UserID   string `json:"user_id"`
	XP       int64  `json:"xp"`
	Currency int64  `json:"currency"`
}

// LedgerStore records rewards against member balances.
type LedgerStore interface {
	// RecordAward adds xp and currency and appends a transaction row, atomically.
	RecordAward(ctx context.Context, p AwardParams) (*MemberBalance, error)

	// MemberXP returns the member's xp, 0 when the member has none.
	MemberXP(ctx context.Context, guildID, userID string) (int64, error)
}

// Store is everything the SQLite implementation provides.
type Store interface {
	GuildRuleConfig
	RuleAdmin
	RetentionStore
	LedgerStore

	// Close closes the store.
	Close() error
}
