// Package retention tracks departed members and purges their data once the
// guild's retention window has elapsed.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rcliao/guildkeeper/internal/model"
	"github.com/rcliao/guildkeeper/internal/store"
)

// DefaultRetentionDays applies to guilds without their own setting.
const DefaultRetentionDays = 3

// Service records departures and rejoins.
type Service struct {
	store       store.RetentionStore
	defaultDays int
	log         logrus.FieldLogger
	now         func() time.Time
}

// NewService creates a retention service. A negative defaultDays falls back to
// DefaultRetentionDays.
func NewService(st store.RetentionStore, defaultDays int, log logrus.FieldLogger) *Service {
	if defaultDays < 0 {
		defaultDays = DefaultRetentionDays
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store:       st,
		defaultDays: defaultDays,
		log:         log.WithField("component", "retention"),
		now:         time.Now,
	}
}

// OnMemberDeparture starts the retention clock for a member. A repeat departure
// restarts it. Negative retentionDays is treated as 0.
func (s *Service) OnMemberDeparture(ctx context.Context, guildID, userID string, retentionDays int) (*model.RetentionRecord, error) {
	if retentionDays < 0 {
		retentionDays = 0
	}
	now := s.now().UTC()
	r := model.RetentionRecord{
		GuildID:   guildID,
		UserID:    userID,
		LeftAt:    now,
		ExpiresAt: now.AddDate(0, 0, retentionDays),
		State:     model.StateDeparted,
	}
	if err := s.store.UpsertDeparture(ctx, r); err != nil {
		return nil, model.StorageError("record departure", err)
	}

	s.log.WithFields(logrus.Fields{
		"guild_id":   guildID,
		"user_id":    userID,
		"expires_at": r.ExpiresAt,
	}).Info("member departed")
	return &r, nil
}

// HandleLeave records a departure using the guild's configured retention days.
func (s *Service) HandleLeave(ctx context.Context, guildID, userID string) (*model.RetentionRecord, error) {
	return s.OnMemberDeparture(ctx, guildID, userID, s.RetentionDays(ctx, guildID))
}

// HandleJoin forgets a pending departure so the member keeps their data.
// After a purge there is nothing left to keep.
func (s *Service) HandleJoin(ctx context.Context, guildID, userID string) error {
	if err := s.store.DeleteRetentionRecord(ctx, guildID, userID); err != nil {
		return model.StorageError("record rejoin", err)
	}
	s.log.WithFields(logrus.Fields{"guild_id": guildID, "user_id": userID}).Info("member rejoined")
	return nil
}

// RetentionDays returns the guild's retention days, or the default when the guild has
// none or the lookup fails.
func (s *Service) RetentionDays(ctx context.Context, guildID string) int {
	st, err := s.store.RetentionSettings(ctx, guildID)
	if err != nil {
		s.log.WithError(err).WithField("guild_id", guildID).Warn("retention settings lookup failed, using default")
		return s.defaultDays
	}
	if st == nil {
		return s.defaultDays
	}
	return st.RetentionDays
}

// Settings returns the guild's retention settings, filled with the default when unset.
func (s *Service) Settings(ctx context.Context, guildID string) (model.GuildSettings, error) {
	st, err := s.store.RetentionSettings(ctx, guildID)
	if err != nil {
		return model.GuildSettings{}, model.StorageError("retention settings", err)
	}
	if st == nil {
		return model.GuildSettings{GuildID: guildID, RetentionDays: s.defaultDays}, nil
	}
	return *st, nil
}

// SaveSettings stores the guild's retention days. Existing departures keep their expiry.
func (s *Service) SaveSettings(ctx context.Context, guildID string, days int) error {
	if days < 0 {
		return model.ValidationError("save retention settings", fmt.Errorf("retention days %d is negative", days))
	}
	if err := s.store.SaveRetentionSettings(ctx, guildID, days); err != nil {
		return model.StorageError("save retention settings", err)
	}
	return nil
}

// ListDeparted returns the guild's departed and purged records, newest first.
func (s *Service) ListDeparted(ctx context.Context, guildID string) ([]model.RetentionRecord, error) {
	recs, err := s.store.ListRetentionRecords(ctx, guildID)
	if err != nil {
		return nil, model.StorageError("list departed", err)
	}
	return recs, nil
}
