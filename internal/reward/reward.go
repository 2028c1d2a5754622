// Package reward applies resolved multipliers to activity awards and persists them.
package reward

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/rcliao/guildkeeper/internal/level"
	"github.com/rcliao/guildkeeper/internal/model"
	"github.com/rcliao/guildkeeper/internal/multiplier"
	"github.com/rcliao/guildkeeper/internal/store"
)

// Resolver produces the verdict for an activity event. *multiplier.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, ev model.ActivityEvent) (multiplier.Verdict, error)
}

// Base is the unscaled award for one activity.
type Base struct {
	XP       int64 `json:"xp"`
	Currency int64 `json:"currency"`
}

// Result is the outcome of one award.
type Result struct {
	Verdict        multiplier.Verdict `json:"verdict"`
	XPGained       int64              `json:"xp_gained"`
	CurrencyGained int64              `json:"currency_gained"`
	TotalXP        int64              `json:"total_xp"`
	TotalCurrency  int64              `json:"total_currency"`
	PreviousLevel  int                `json:"previous_level"`
	Level          int                `json:"level"`
	LeveledUp      bool               `json:"leveled_up"`
	Progress       level.Progress     `json:"progress"`
}

// Service awards xp and currency for member activity.
type Service struct {
	resolver Resolver
	rules    store.GuildRuleConfig
	ledger   store.LedgerStore
	k        int64
	log      logrus.FieldLogger
}

// NewService creates an award service. k is the default-curve multiplier for guilds
// without a custom level table; non-positive means level.DefaultMultiplier.
func NewService(resolver Resolver, rules store.GuildRuleConfig, ledger store.LedgerStore, k int64, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		resolver: resolver,
		rules:    rules,
		ledger:   ledger,
		k:        k,
		log:      log.WithField("component", "reward"),
	}
}

// Award resolves ev, scales base by the verdict and records the result. Excluded events
// and awards that round down to nothing are not written.
func (s *Service) Award(ctx context.Context, ev model.ActivityEvent, base Base) (*Result, error) {
	v, err := s.resolver.Resolve(ctx, ev)
	if err != nil {
		return nil, err
	}
	res := &Result{Verdict: v}
	if v.Excluded {
		return res, nil
	}

	res.XPGained = v.Apply(base.XP)
	res.CurrencyGained = v.Apply(base.Currency)

	curve, err := s.Curve(ctx, ev.GuildID)
	if err != nil {
		return nil, err
	}

	if res.XPGained == 0 && res.CurrencyGained == 0 {
		xp, err := s.ledger.MemberXP(ctx, ev.GuildID, ev.UserID)
		if err != nil {
			return nil, model.StorageError("member xp", err)
		}
		res.TotalXP = xp
		res.Progress = level.ProgressFor(xp, curve)
		res.Level = res.Progress.Level
		res.PreviousLevel = res.Level
		return res, nil
	}

	at := ev.Timestamp
	bal, err := s.ledger.RecordAward(ctx, store.AwardParams{
		GuildID:  ev.GuildID,
		UserID:   ev.UserID,
		XP:       res.XPGained,
		Currency: res.CurrencyGained,
		Reason:   string(ev.Type),
		At:       at,
	})
	if err != nil {
		return nil, model.StorageError("record award", err)
	}

	res.TotalXP = bal.XP
	res.TotalCurrency = bal.Currency
	res.PreviousLevel = level.LevelForXP(bal.XP-res.XPGained, curve)
	res.Progress = level.ProgressFor(bal.XP, curve)
	res.Level = res.Progress.Level
	res.LeveledUp = res.Level > res.PreviousLevel

	if res.LeveledUp {
		s.log.WithFields(logrus.Fields{
			"guild_id": ev.GuildID,
			"user_id":  ev.UserID,
			"level":    res.Level,
		}).Info("member leveled up")
	}
	return res, nil
}

// Curve returns the guild's level curve. A guild without a custom table uses the
// default curve with the service's multiplier.
func (s *Service) Curve(ctx context.Context, guildID string) (level.Curve, error) {
	c, err := s.rules.LevelCurve(ctx, guildID)
	if err != nil {
		return level.Curve{}, model.StorageError("level curve", err)
	}
	if c.Multiplier <= 0 {
		c.Multiplier = s.k
	}
	return c, nil
}
