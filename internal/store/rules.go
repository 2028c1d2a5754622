package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rcliao/guildkeeper/internal/level"
	"github.com/rcliao/guildkeeper/internal/model"
)

func (s *SQLiteStore) CategoryMultipliers(ctx context.Context, guildID string) ([]model.CategoryMultiplier, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guild_id, category, multiplier FROM category_multipliers
		 WHERE guild_id = ? ORDER BY category`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CategoryMultiplier
	for rows.Next() {
		var m model.CategoryMultiplier
		if err := rows.Scan(&m.GuildID, &m.Category, &m.Multiplier); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ChannelCategory(ctx context.Context, guildID, channelID string) (model.ChannelCategory, error) {
	var c model.ChannelCategory
	err := s.db.QueryRowContext(ctx,
		`SELECT category FROM channel_categories WHERE guild_id = ? AND channel_id = ?`,
		guildID, channelID).Scan(&c)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CategoryNormal, nil
	}
	if err != nil {
		return "", err
	}
	return c, nil
}

// ChannelCategories returns every channel assignment of a guild.
func (s *SQLiteStore) ChannelCategories(ctx context.Context, guildID string) ([]model.ChannelCategoryAssignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guild_id, channel_id, category FROM channel_categories
		 WHERE guild_id = ? ORDER BY channel_id`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ChannelCategoryAssignment
	for rows.Next() {
		var a model.ChannelCategoryAssignment
		if err := rows.Scan(&a.GuildID, &a.ChannelID, &a.Category); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) HotTimes(ctx context.Context, guildID string) ([]model.HotTimeWindow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, guild_id, type, start_time, end_time, multiplier, enabled, channel_ids
		 FROM hot_times WHERE guild_id = ? ORDER BY start_time, id`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HotTimeWindow
	for rows.Next() {
		w, err := scanHotTime(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanHotTime(row scanner) (model.HotTimeWindow, error) {
	var w model.HotTimeWindow
	var enabled int
	var channels sql.NullString
	err := row.Scan(&w.ID, &w.GuildID, &w.Type, &w.Start, &w.End, &w.Multiplier, &enabled, &channels)
	if err != nil {
		return w, err
	}
	w.Enabled = enabled == 1
	if channels.Valid && channels.String != "" {
		if err := json.Unmarshal([]byte(channels.String), &w.ChannelIDs); err != nil {
			w.ChannelIDs = nil
			w.Malformed = fmt.Errorf("decode channel_ids: %w", err)
		}
	}
	return w, nil
}

func (s *SQLiteStore) Exclusions(ctx context.Context, guildID string) ([]model.ExclusionRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, guild_id, target_type, target_id FROM exclusions
		 WHERE guild_id = ? ORDER BY target_type, target_id`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ExclusionRule
	for rows.Next() {
		var r model.ExclusionRule
		if err := rows.Scan(&r.ID, &r.GuildID, &r.TargetType, &r.TargetID); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) LevelCurve(ctx context.Context, guildID string) (level.Curve, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT level, required_xp FROM level_requirements WHERE guild_id = ?`, guildID)
	if err != nil {
		return level.Curve{}, err
	}
	defer rows.Close()

	thresholds := map[int]int64{}
	for rows.Next() {
		var lvl int
		var xp int64
		if err := rows.Scan(&lvl, &xp); err != nil {
			return level.Curve{}, err
		}
		thresholds[lvl] = xp
	}
	if err := rows.Err(); err != nil {
		return level.Curve{}, err
	}
	return level.NewCustom(thresholds), nil
}

func (s *SQLiteStore) Timezone(ctx context.Context, guildID string) (string, error) {
	var tz sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT timezone FROM guild_settings WHERE guild_id = ?`, guildID).Scan(&tz)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return tz.String, nil
}

func (s *SQLiteStore) SaveCategoryMultiplier(ctx context.Context, m model.CategoryMultiplier) error {
	if !model.ValidCategories[m.Category] {
		return model.ValidationError("save category multiplier", fmt.Errorf("unknown category %q", m.Category))
	}
	if m.Multiplier < 0 {
		return model.ValidationError("save category multiplier", fmt.Errorf("multiplier %v is negative", m.Multiplier))
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO category_multipliers (guild_id, category, multiplier, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (guild_id, category) DO UPDATE SET
		 multiplier = excluded.multiplier, updated_at = excluded.updated_at`,
		m.GuildID, string(m.Category), m.Multiplier, formatTime(s.now()))
	return err
}

func (s *SQLiteStore) SaveChannelCategory(ctx context.Context, a model.ChannelCategoryAssignment) error {
	if !model.ValidCategories[a.Category] {
		return model.ValidationError("save channel category", fmt.Errorf("unknown category %q", a.Category))
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channel_categories (guild_id, channel_id, category) VALUES (?, ?, ?)
		 ON CONFLICT (guild_id, channel_id) DO UPDATE SET category = excluded.category`,
		a.GuildID, a.ChannelID, string(a.Category))
	return err
}

// SaveHotTime inserts the window, or replaces it when its ID already exists.
func (s *SQLiteStore) SaveHotTime(ctx context.Context, w model.HotTimeWindow) (*model.HotTimeWindow, error) {
	if w.Type == "" {
		w.Type = model.ActivityAll
	}
	if !model.ValidActivityTypes[w.Type] {
		return nil, model.ValidationError("save hot time", fmt.Errorf("unknown activity type %q", w.Type))
	}
	if w.Multiplier <= 0 {
		return nil, model.ValidationError("save hot time", fmt.Errorf("multiplier %v must be positive", w.Multiplier))
	}
	if _, err := model.ParseClock(w.Start); err != nil {
		return nil, model.ValidationError("save hot time", fmt.Errorf("start: %w", err))
	}
	if _, err := model.ParseClock(w.End); err != nil {
		return nil, model.ValidationError("save hot time", fmt.Errorf("end: %w", err))
	}
	if w.ID == "" {
		w.ID = s.newID()
	}

	var channels *string
	if len(w.ChannelIDs) > 0 {
		b, err := json.Marshal(w.ChannelIDs)
		if err != nil {
			return nil, fmt.Errorf("encode channel_ids: %w", err)
		}
		c := string(b)
		channels = &c
	}
	enabled := 0
	if w.Enabled {
		enabled = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hot_times (id, guild_id, type, start_time, end_time, multiplier, enabled, channel_ids, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		 type = excluded.type, start_time = excluded.start_time, end_time = excluded.end_time,
		 multiplier = excluded.multiplier, enabled = excluded.enabled, channel_ids = excluded.channel_ids`,
		w.ID, w.GuildID, string(w.Type), w.Start, w.End, w.Multiplier, enabled, channels, formatTime(s.now()))
	if err != nil {
		return nil, fmt.Errorf("insert hot time: %w", err)
	}
	return &w, nil
}

func (s *SQLiteStore) DeleteHotTime(ctx context.Context, guildID, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM hot_times WHERE id = ? AND guild_id = ?`, id, guildID)
	return err
}

// SaveExclusion stores the rule. Saving an existing target returns the stored rule.
func (s *SQLiteStore) SaveExclusion(ctx context.Context, r model.ExclusionRule) (*model.ExclusionRule, error) {
	if r.TargetType != model.ExcludeChannel && r.TargetType != model.ExcludeRole {
		return nil, model.ValidationError("save exclusion", fmt.Errorf("unknown target type %q", r.TargetType))
	}
	if r.ID == "" {
		r.ID = s.newID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO exclusions (id, guild_id, target_type, target_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.GuildID, string(r.TargetType), r.TargetID, formatTime(s.now()))
	if err != nil {
		return nil, fmt.Errorf("insert exclusion: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM exclusions WHERE guild_id = ? AND target_type = ? AND target_id = ?`,
		r.GuildID, string(r.TargetType), r.TargetID).Scan(&r.ID)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) DeleteExclusion(ctx context.Context, guildID, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM exclusions WHERE id = ? AND guild_id = ?`, id, guildID)
	return err
}

// SaveLevelCurve replaces the guild's level table. A default curve clears it.
func (s *SQLiteStore) SaveLevelCurve(ctx context.Context, guildID string, c level.Curve) error {
	if err := c.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM level_requirements WHERE guild_id = ?`, guildID); err != nil {
		return err
	}
	if c.Kind == level.Custom {
		for lvl, xp := range c.Thresholds {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO level_requirements (guild_id, level, required_xp) VALUES (?, ?, ?)`,
				guildID, lvl, xp)
			if err != nil {
				return fmt.Errorf("insert level %d: %w", lvl, err)
			}
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) SaveTimezone(ctx context.Context, guildID, tz string) error {
	now := formatTime(s.now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guild_settings (guild_id, timezone, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (guild_id) DO UPDATE SET timezone = excluded.timezone, updated_at = excluded.updated_at`,
		guildID, tz, now, now)
	return err
}
