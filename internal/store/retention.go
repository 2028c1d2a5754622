package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rcliao/guildkeeper/internal/model"
)

// memberTables hold guild-scoped member data removed by a purge.
var memberTables = []string{
	"member_xp",
	"wallets",
	"currency_transactions",
	"daily_rewards",
	"member_items",
}

func (s *SQLiteStore) FindExpiredDeparted(ctx context.Context, now time.Time) ([]model.RetentionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guild_id, user_id, left_at, expires_at, state, purged_at
		 FROM retention_records WHERE state = ? AND expires_at <= ?
		 ORDER BY expires_at, guild_id, user_id`,
		string(model.StateDeparted), formatTime(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (s *SQLiteStore) PurgeMemberData(ctx context.Context, guildID, userID string, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Re-check inside the transaction: a rejoin deletes the record and a new
	// departure moves expires_at forward.
	var n int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM retention_records
		 WHERE guild_id = ? AND user_id = ? AND state = ? AND expires_at <= ?`,
		guildID, userID, string(model.StateDeparted), formatTime(now)).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotDeparted
	}

	for _, table := range memberTables {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE guild_id = ? AND user_id = ?`, guildID, userID)
		if err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE retention_records SET state = ?, purged_at = ? WHERE guild_id = ? AND user_id = ?`,
		string(model.StatePurged), formatTime(s.now()), guildID, userID)
	if err != nil {
		return fmt.Errorf("mark purged: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) UpsertDeparture(ctx context.Context, r model.RetentionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO retention_records (guild_id, user_id, left_at, expires_at, state, purged_at)
		 VALUES (?, ?, ?, ?, ?, NULL)
		 ON CONFLICT (guild_id, user_id) DO UPDATE SET
		 left_at = excluded.left_at, expires_at = excluded.expires_at,
		 state = excluded.state, purged_at = NULL`,
		r.GuildID, r.UserID, formatTime(r.LeftAt), formatTime(r.ExpiresAt), string(model.StateDeparted))
	return err
}

func (s *SQLiteStore) DeleteRetentionRecord(ctx context.Context, guildID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM retention_records WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	return err
}

func (s *SQLiteStore) ListRetentionRecords(ctx context.Context, guildID string) ([]model.RetentionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guild_id, user_id, left_at, expires_at, state, purged_at
		 FROM retention_records WHERE guild_id = ? ORDER BY left_at DESC`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]model.RetentionRecord, error) {
	var out []model.RetentionRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRecord(row scanner) (model.RetentionRecord, error) {
	var r model.RetentionRecord
	var leftAt, expiresAt string
	var purgedAt sql.NullString

	err := row.Scan(&r.GuildID, &r.UserID, &leftAt, &expiresAt, &r.State, &purgedAt)
	if err != nil {
		return r, err
	}
	r.LeftAt = parseTime(leftAt)
	r.ExpiresAt = parseTime(expiresAt)
	if purgedAt.Valid {
		t := parseTime(purgedAt.String)
		r.PurgedAt = &t
	}
	return r, nil
}

func (s *SQLiteStore) RetentionSettings(ctx context.Context, guildID string) (*model.GuildSettings, error) {
	var st model.GuildSettings
	var tz sql.NullString
	var days sql.NullInt64
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT guild_id, timezone, retention_days, created_at, updated_at
		 FROM guild_settings WHERE guild_id = ?`, guildID).
		Scan(&st.GuildID, &tz, &days, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !days.Valid {
		return nil, nil
	}
	st.Timezone = tz.String
	st.RetentionDays = int(days.Int64)
	st.CreatedAt = parseTime(createdAt)
	st.UpdatedAt = parseTime(updatedAt)
	return &st, nil
}

func (s *SQLiteStore) SaveRetentionSettings(ctx context.Context, guildID string, days int) error {
	if days < 0 {
		return model.ValidationError("save retention settings", fmt.Errorf("retention days %d is negative", days))
	}
	now := formatTime(s.now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guild_settings (guild_id, retention_days, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (guild_id) DO UPDATE SET
		 retention_days = excluded.retention_days, updated_at = excluded.updated_at`,
		guildID, days, now, now)
	return err
}
