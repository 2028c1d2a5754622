package multiplier

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rcliao/guildkeeper/internal/metrics"
	"github.com/rcliao/guildkeeper/internal/model"
	"github.com/rcliao/guildkeeper/internal/store"
)

// Verdict is the outcome of resolving an activity event.
type Verdict struct {
	Excluded   bool                 `json:"excluded"`
	ExcludedBy *model.ExclusionRule `json:"excluded_by,omitempty"`

	// Multiplier is the effective multiplier; 0 when excluded.
	Multiplier         float64               `json:"multiplier"`
	Category           model.ChannelCategory `json:"category,omitempty"`
	CategoryMultiplier float64               `json:"category_multiplier,omitempty"`
	HotTimeMultiplier  float64               `json:"hot_time_multiplier,omitempty"`
	HotTimes           []string              `json:"hot_times,omitempty"`
}

// Apply scales a base award by the verdict, rounding down. Excluded events and
// non-positive bases award nothing.
func (v Verdict) Apply(base int64) int64 {
	if v.Excluded || base <= 0 || v.Multiplier <= 0 {
		return 0
	}
	f := math.Floor(float64(base) * v.Multiplier)
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(f)
}

// Resolver combines exclusions, category multipliers and hot times into one verdict.
// It keeps no state between calls; every rule is read through the config port.
type Resolver struct {
	rules    store.GuildRuleConfig
	policy   Policy
	location *time.Location
	log      logrus.FieldLogger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPolicy sets how overlapping hot times combine.
func WithPolicy(p Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

// WithLocation sets the time zone used for guilds without one.
func WithLocation(loc *time.Location) Option {
	return func(r *Resolver) {
		if loc != nil {
			r.location = loc
		}
	}
}

// WithLogger sets the logger for skipped rules.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// NewResolver creates a resolver reading rules from rules.
func NewResolver(rules store.GuildRuleConfig, opts ...Option) *Resolver {
	r := &Resolver{
		rules:    rules,
		policy:   PolicyMax,
		location: time.UTC,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the effective multiplier for ev. Exclusions short-circuit every
// other rule; otherwise the category multiplier is applied first and the hot-time
// bonus on top of it. Errors are storage failures the caller may retry.
func (r *Resolver) Resolve(ctx context.Context, ev model.ActivityEvent) (Verdict, error) {
	v, err := r.resolve(ctx, ev)
	switch {
	case err != nil:
		metrics.ObserveResolution("error")
	case v.Excluded:
		metrics.ObserveResolution("excluded")
	default:
		metrics.ObserveResolution("rewarded")
	}
	return v, err
}

func (r *Resolver) resolve(ctx context.Context, ev model.ActivityEvent) (Verdict, error) {
	exclusions, err := r.rules.Exclusions(ctx, ev.GuildID)
	if err != nil {
		return Verdict{}, model.StorageError("load exclusions", err)
	}
	if rule := matchExclusion(ev, exclusions); rule != nil {
		return Verdict{Excluded: true, ExcludedBy: rule}, nil
	}

	category, err := r.rules.ChannelCategory(ctx, ev.GuildID, ev.ChannelID)
	if err != nil {
		return Verdict{}, model.StorageError("load channel category", err)
	}
	categories, err := r.rules.CategoryMultipliers(ctx, ev.GuildID)
	if err != nil {
		return Verdict{}, model.StorageError("load category multipliers", err)
	}
	catMult := r.categoryMultiplier(ev.GuildID, category, categories)

	windows, err := r.rules.HotTimes(ctx, ev.GuildID)
	if err != nil {
		return Verdict{}, model.StorageError("load hot times", err)
	}
	loc, err := r.guildLocation(ctx, ev.GuildID)
	if err != nil {
		return Verdict{}, err
	}
	matched, invalid := Match(Query{
		GuildID:   ev.GuildID,
		Activity:  ev.Type,
		ChannelID: ev.ChannelID,
		Instant:   ev.Timestamp,
		Location:  loc,
	}, windows)
	for _, e := range invalid {
		r.log.WithField("guild_id", ev.GuildID).WithError(e).Warn("skipping hot time window")
	}
	hot := Combine(matched, r.policy)

	v := Verdict{
		Multiplier:         catMult * hot,
		Category:           category,
		CategoryMultiplier: catMult,
		HotTimeMultiplier:  hot,
	}
	for _, w := range matched {
		v.HotTimes = append(v.HotTimes, w.ID)
	}
	return v, nil
}

func matchExclusion(ev model.ActivityEvent, rules []model.ExclusionRule) *model.ExclusionRule {
	for i, rule := range rules {
		if rule.GuildID != "" && rule.GuildID != ev.GuildID {
			continue
		}
		switch rule.TargetType {
		case model.ExcludeChannel:
			if rule.TargetID == ev.ChannelID {
				return &rules[i]
			}
		case model.ExcludeRole:
			if slices.Contains(ev.RoleIDs, rule.TargetID) {
				return &rules[i]
			}
		}
	}
	return nil
}

func (r *Resolver) categoryMultiplier(guildID string, category model.ChannelCategory, configured []model.CategoryMultiplier) float64 {
	for _, c := range configured {
		if c.Category != category {
			continue
		}
		if c.Multiplier < 0 || math.IsNaN(c.Multiplier) || math.IsInf(c.Multiplier, 0) {
			err := model.ConfigError("category multiplier", fmt.Errorf("%s multiplier %v is invalid", category, c.Multiplier))
			r.log.WithField("guild_id", guildID).WithError(err).Warn("ignoring category multiplier")
			return 1
		}
		return c.Multiplier
	}
	return 1
}

func (r *Resolver) guildLocation(ctx context.Context, guildID string) (*time.Location, error) {
	tz, err := r.rules.Timezone(ctx, guildID)
	if err != nil {
		return nil, model.StorageError("load timezone", err)
	}
	if tz == "" {
		return r.location, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		r.log.WithField("guild_id", guildID).WithError(model.ConfigError("timezone", err)).Warn("using default timezone")
		return r.location, nil
	}
	return loc, nil
}
