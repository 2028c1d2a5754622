// Package model defines the core guild progression data types.
package model

import (
	"fmt"
	"time"
)

// ActivityType is the kind of member activity that earns rewards.
type ActivityType string

const (
	ActivityText  ActivityType = "text"
	ActivityVoice ActivityType = "voice"
	ActivityAll   ActivityType = "all"
)

// ValidActivityTypes are the allowed activity types.
var ValidActivityTypes = map[ActivityType]bool{
	ActivityText:  true,
	ActivityVoice: true,
	ActivityAll:   true,
}

// EventTypes are the activity types an event can carry. ActivityAll only
// scopes hot-time windows.
var EventTypes = map[ActivityType]bool{
	ActivityText:  true,
	ActivityVoice: true,
}

// ParseEventType returns the activity type of an event, rejecting "all".
func ParseEventType(s string) (ActivityType, error) {
	t := ActivityType(s)
	if !EventTypes[t] {
		return "", ValidationError("parse event", fmt.Errorf("unknown activity type %q (use text or voice)", s))
	}
	return t, nil
}

// ActivityEvent is a unit of member behavior eligible for a reward.
type ActivityEvent struct {
	GuildID   string       `json:"guild_id"`
	UserID    string       `json:"user_id"`
	ChannelID string       `json:"channel_id"`
	RoleIDs   []string     `json:"role_ids,omitempty"`
	Type      ActivityType `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
}
