package model

import "time"

// RetentionState is the lifecycle state of a departed member's retained data.
// A member with no record is active.
type RetentionState string

const (
	StateDeparted RetentionState = "departed"
	StatePurged   RetentionState = "purged"
)

// RetentionRecord tracks a member who left a guild and when their data expires.
type RetentionRecord struct {
	GuildID   string         `json:"guild_id"`
	UserID    string         `json:"user_id"`
	LeftAt    time.Time      `json:"left_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	State     RetentionState `json:"state"`
	PurgedAt  *time.Time     `json:"purged_at,omitempty"`
}

// Expired reports whether the retention window has elapsed at now.
func (r RetentionRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
