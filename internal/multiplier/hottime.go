// Package multiplier resolves the effective reward multiplier of an activity event.
package multiplier

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rcliao/guildkeeper/internal/model"
)

// Policy decides how several simultaneously matching hot-time windows combine.
type Policy string

const (
	// PolicyMax applies only the highest matching multiplier.
	PolicyMax Policy = "max"
	// PolicyProduct multiplies all matching multipliers.
	PolicyProduct Policy = "product"
	// PolicySum adds the bonus part (m - 1) of every matching window to 1.
	PolicySum Policy = "sum"
)

// ParsePolicy parses a policy name. An empty name is PolicyMax.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyMax, nil
	case PolicyMax, PolicyProduct, PolicySum:
		return p, nil
	default:
		return "", fmt.Errorf("unknown hot time policy %q (valid: max, product, sum)", s)
	}
}

// window is a parsed hot-time window.
type window struct {
	model.HotTimeWindow
	start, end int
}

func parseWindow(w model.HotTimeWindow) (window, error) {
	pw := window{HotTimeWindow: w}
	if w.Malformed != nil {
		return pw, model.ConfigError("hot time "+w.ID, w.Malformed)
	}
	var err error
	if pw.start, err = model.ParseClock(w.Start); err != nil {
		return pw, model.ConfigError("hot time "+w.ID, err)
	}
	if pw.end, err = model.ParseClock(w.End); err != nil {
		return pw, model.ConfigError("hot time "+w.ID, err)
	}
	if w.Multiplier <= 0 {
		return pw, model.ConfigError("hot time "+w.ID, fmt.Errorf("multiplier %v must be positive", w.Multiplier))
	}
	if !model.ValidActivityTypes[w.Type] {
		return pw, model.ConfigError("hot time "+w.ID, fmt.Errorf("unknown activity type %q", w.Type))
	}
	return pw, nil
}

// contains reports whether sec (seconds since midnight) is in [start, end).
// A window with start == end covers the whole day; start > end wraps midnight.
func (w window) contains(sec int) bool {
	switch {
	case w.start == w.end:
		return true
	case w.start < w.end:
		return sec >= w.start && sec < w.end
	default:
		return sec >= w.start || sec < w.end
	}
}

func (w window) admits(activity model.ActivityType, channelID string) bool {
	if w.Type != model.ActivityAll && w.Type != activity {
		return false
	}
	return len(w.ChannelIDs) == 0 || slices.Contains(w.ChannelIDs, channelID)
}

// Query identifies the event a hot-time lookup is for.
type Query struct {
	GuildID   string
	Activity  model.ActivityType
	ChannelID string
	Instant   time.Time
	// Location is the guild's time zone. Nil means UTC.
	Location *time.Location
}

// Match returns the enabled windows of the guild that apply to q. Malformed windows
// are skipped and reported as configuration errors.
func Match(q Query, windows []model.HotTimeWindow) (matched []model.HotTimeWindow, invalid []error) {
	loc := q.Location
	if loc == nil {
		loc = time.UTC
	}
	local := q.Instant.In(loc)
	sec := local.Hour()*3600 + local.Minute()*60 + local.Second()

	for _, w := range windows {
		if w.GuildID != "" && w.GuildID != q.GuildID {
			continue
		}
		if !w.Enabled {
			continue
		}
		pw, err := parseWindow(w)
		if err != nil {
			invalid = append(invalid, err)
			continue
		}
		if pw.admits(q.Activity, q.ChannelID) && pw.contains(sec) {
			matched = append(matched, w)
		}
	}
	return matched, invalid
}

// Combine folds the multipliers of matched windows under policy. No windows yield 1.
func Combine(matched []model.HotTimeWindow, policy Policy) float64 {
	if len(matched) == 0 {
		return 1
	}
	switch policy {
	case PolicyProduct:
		m := 1.0
		for _, w := range matched {
			m *= w.Multiplier
		}
		return m
	case PolicySum:
		m := 1.0
		for _, w := range matched {
			m += w.Multiplier - 1
		}
		return max(m, 0)
	default:
		m := matched[0].Multiplier
		for _, w := range matched[1:] {
			m = max(m, w.Multiplier)
		}
		return m
	}
}

// HotTime returns the hot-time multiplier for q: 1 when no window matches.
func HotTime(q Query, windows []model.HotTimeWindow, policy Policy) float64 {
	matched, _ := Match(q, windows)
	return Combine(matched, policy)
}
