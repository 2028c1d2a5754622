package store

import (
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex // guards entropy
	entropy *rand.Rand

	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := newStore(db)
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func newStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
}

func (s *SQLiteStore) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS guild_settings (
		guild_id       TEXT PRIMARY KEY,
		timezone       TEXT,
		retention_days INTEGER,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS level_requirements (
		guild_id    TEXT NOT NULL,
		level       INTEGER NOT NULL,
		required_xp INTEGER NOT NULL,
		PRIMARY KEY (guild_id, level)
	);

	CREATE TABLE IF NOT EXISTS category_multipliers (
		guild_id   TEXT NOT NULL,
		category   TEXT NOT NULL,
		multiplier REAL NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (guild_id, category)
	);

	CREATE TABLE IF NOT EXISTS channel_categories (
		guild_id   TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		category   TEXT NOT NULL,
		PRIMARY KEY (guild_id, channel_id)
	);

	CREATE TABLE IF NOT EXISTS hot_times (
		id          TEXT PRIMARY KEY,
		guild_id    TEXT NOT NULL,
		type        TEXT NOT NULL DEFAULT 'all',
		start_time  TEXT NOT NULL,
		end_time    TEXT NOT NULL,
		multiplier  REAL NOT NULL,
		enabled     INTEGER NOT NULL DEFAULT 1,
		channel_ids TEXT,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_hot_times_guild ON hot_times(guild_id);

	CREATE TABLE IF NOT EXISTS exclusions (
		id          TEXT PRIMARY KEY,
		guild_id    TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id   TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		UNIQUE (guild_id, target_type, target_id)
	);

	CREATE TABLE IF NOT EXISTS retention_records (
		guild_id   TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		left_at    TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		state      TEXT NOT NULL DEFAULT 'departed',
		purged_at  TEXT,
		PRIMARY KEY (guild_id, user_id)
	);
	CREATE INDEX IF NOT EXISTS idx_retention_expires ON retention_records(state, expires_at);

	CREATE TABLE IF NOT EXISTS member_xp (
		guild_id   TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		xp         INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (guild_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS wallets (
		guild_id   TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		balance    INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (guild_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS currency_transactions (
		id         TEXT PRIMARY KEY,
		guild_id   TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		xp         INTEGER NOT NULL,
		amount     INTEGER NOT NULL,
		reason     TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_member ON currency_transactions(guild_id, user_id);

	CREATE TABLE IF NOT EXISTS daily_rewards (
		guild_id        TEXT NOT NULL,
		user_id         TEXT NOT NULL,
		streak          INTEGER NOT NULL DEFAULT 0,
		last_claimed_at TEXT,
		PRIMARY KEY (guild_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS member_items (
		guild_id    TEXT NOT NULL,
		user_id     TEXT NOT NULL,
		item_id     TEXT NOT NULL,
		quantity    INTEGER NOT NULL DEFAULT 1,
		acquired_at TEXT NOT NULL,
		PRIMARY KEY (guild_id, user_id, item_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// timeLayout is fixed-width UTC with nanoseconds, so stored timestamps order
// exactly as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
