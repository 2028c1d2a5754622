package store

import (
	"context"
	"fmt"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath      string       `json:"db_path"`
	DBSizeBytes int64        `json:"db_size_bytes"`
	Departed    int          `json:"departed"`
	Purged      int          `json:"purged"`
	Guilds      []GuildStats `json:"guilds"`
}

// GuildStats holds per-guild counts.
type GuildStats struct {
	GuildID    string `json:"guild_id"`
	Members    int    `json:"members"`
	Departed   int    `json:"departed"`
	Purged     int    `json:"purged"`
	HotTimes   int    `json:"hot_times"`
	Exclusions int    `json:"exclusions"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	// DB file size
	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(state = 'departed'), 0), COALESCE(SUM(state = 'purged'), 0) FROM retention_records`).
		Scan(&st.Departed, &st.Purged)
	if err != nil {
		return st, fmt.Errorf("count retention records: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		WITH guilds AS (
			SELECT guild_id FROM member_xp
			UNION SELECT guild_id FROM retention_records
			UNION SELECT guild_id FROM hot_times
			UNION SELECT guild_id FROM exclusions
		)
		SELECT g.guild_id,
			(SELECT COUNT(*) FROM member_xp m WHERE m.guild_id = g.guild_id),
			(SELECT COUNT(*) FROM retention_records r WHERE r.guild_id = g.guild_id AND r.state = 'departed'),
			(SELECT COUNT(*) FROM retention_records r WHERE r.guild_id = g.guild_id AND r.state = 'purged'),
			(SELECT COUNT(*) FROM hot_times h WHERE h.guild_id = g.guild_id),
			(SELECT COUNT(*) FROM exclusions e WHERE e.guild_id = g.guild_id)
		FROM guilds g ORDER BY g.guild_id`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var g GuildStats
		if err := rows.Scan(&g.GuildID, &g.Members, &g.Departed, &g.Purged, &g.HotTimes, &g.Exclusions); err != nil {
			return st, fmt.Errorf("scan guild stats: %w", err)
		}
		st.Guilds = append(st.Guilds, g)
	}

	return st, rows.Err()
}
