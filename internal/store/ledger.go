package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s *SQLiteStore) RecordAward(ctx context.Context, p AwardParams) (*MemberBalance, error) {
	at := p.At
	if at.IsZero() {
		at = s.now()
	}
	ts := formatTime(at)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO member_xp (guild_id, user_id, xp, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (guild_id, user_id) DO UPDATE SET
		 xp = xp + excluded.xp, updated_at = excluded.updated_at`,
		p.GuildID, p.UserID, p.XP, ts)
	if err != nil {
		return nil, fmt.Errorf("update xp: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallets (guild_id, user_id, balance, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (guild_id, user_id) DO UPDATE SET
		 balance = balance + excluded.balance, updated_at = excluded.updated_at`,
		p.GuildID, p.UserID, p.Currency, ts)
	if err != nil {
		return nil, fmt.Errorf("update wallet: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO currency_transactions (id, guild_id, user_id, xp, amount, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.newID(), p.GuildID, p.UserID, p.XP, p.Currency, p.Reason, ts)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	b := &MemberBalance{GuildID: p.GuildID, UserID: p.UserID}
	err = tx.QueryRowContext(ctx,
		`SELECT x.xp, w.balance FROM member_xp x
		 JOIN wallets w ON w.guild_id = x.guild_id AND w.user_id = x.user_id
		 WHERE x.guild_id = ? AND x.user_id = ?`, p.GuildID, p.UserID).Scan(&b.XP, &b.Currency)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *SQLiteStore) MemberXP(ctx context.Context, guildID, userID string) (int64, error) {
	var xp int64
	err := s.db.QueryRowContext(ctx,
		`SELECT xp FROM member_xp WHERE guild_id = ? AND user_id = ?`, guildID, userID).Scan(&xp)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return xp, err
}

// TransactionCount returns how many ledger rows a member has.
func (s *SQLiteStore) TransactionCount(ctx context.Context, guildID, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM currency_transactions WHERE guild_id = ? AND user_id = ?`,
		guildID, userID).Scan(&n)
	return n, err
}
