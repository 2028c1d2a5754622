package retention

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/rcliao/guildkeeper/internal/model"
	"github.com/rcliao/guildkeeper/internal/store"
)

// DefaultPurgeTimeout bounds a single member purge.
const DefaultPurgeTimeout = 30 * time.Second

// PurgeFailure is one member whose purge failed during a sweep.
type PurgeFailure struct {
	GuildID string `json:"guild_id"`
	UserID  string `json:"user_id"`
	Err     error  `json:"-"`
	Error   string `json:"error"`
}

// SweepResult summarises one sweep.
type SweepResult struct {
	RunID        string         `json:"run_id"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	CleanedCount int            `json:"cleaned_count"`
	SkippedCount int            `json:"skipped_count"`
	Failures     []PurgeFailure `json:"failures,omitempty"`

	// Err is set when the sweep stopped early: the expiry query failed or ctx ended.
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

// Outcome classifies the result for metrics: ok, partial or error.
func (r SweepResult) Outcome() string {
	switch {
	case r.Err != nil:
		return "error"
	case len(r.Failures) > 0:
		return "partial"
	default:
		return "ok"
	}
}

// Duration is how long the sweep ran.
func (r SweepResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *SweepResult) fail(err error) {
	r.Err = err
	r.Error = err.Error()
}

// SweeperConfig tunes a Sweeper.
type SweeperConfig struct {
	// PurgeTimeout bounds each member purge. Zero means DefaultPurgeTimeout.
	PurgeTimeout time.Duration
	// PurgeRate caps purges per second. Zero means unlimited.
	PurgeRate float64
}

// Sweeper purges the data of every departed member whose retention has expired.
type Sweeper struct {
	store   store.RetentionStore
	timeout time.Duration
	limiter *rate.Limiter
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewSweeper creates a sweeper over st.
func NewSweeper(st store.RetentionStore, cfg SweeperConfig, log logrus.FieldLogger) *Sweeper {
	if cfg.PurgeTimeout <= 0 {
		cfg.PurgeTimeout = DefaultPurgeTimeout
	}
	limit := rate.Inf
	if cfg.PurgeRate > 0 {
		limit = rate.Limit(cfg.PurgeRate)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sweeper{
		store:   st,
		timeout: cfg.PurgeTimeout,
		limiter: rate.NewLimiter(limit, 1),
		log:     log.WithField("component", "sweeper"),
		now:     time.Now,
	}
}

// SweepExpired purges every expired departed member across all guilds. Each member is
// purged in its own transaction; a failure is recorded and the sweep moves on.
// Cancelling ctx stops the sweep between members, never inside a purge.
func (s *Sweeper) SweepExpired(ctx context.Context) SweepResult {
	res := SweepResult{
		RunID:     ulid.Make().String(),
		StartedAt: s.now(),
	}
	log := s.log.WithField("run_id", res.RunID)

	records, err := s.store.FindExpiredDeparted(ctx, res.StartedAt)
	if err != nil {
		res.fail(model.StorageError("find expired departed", err))
		res.FinishedAt = s.now()
		return res
	}

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			res.fail(err)
			break
		}
		if err := s.limiter.Wait(ctx); err != nil {
			res.fail(err)
			break
		}

		err := s.purge(ctx, r, res.StartedAt)
		switch {
		case err == nil:
			res.CleanedCount++
		case errors.Is(err, store.ErrNotDeparted):
			res.SkippedCount++
			log.WithFields(logrus.Fields{"guild_id": r.GuildID, "user_id": r.UserID}).
				Debug("member no longer departed, skipped")
		default:
			err = model.StorageError("purge member data", err)
			res.Failures = append(res.Failures, PurgeFailure{
				GuildID: r.GuildID,
				UserID:  r.UserID,
				Err:     err,
				Error:   err.Error(),
			})
			log.WithError(err).WithFields(logrus.Fields{"guild_id": r.GuildID, "user_id": r.UserID}).
				Warn("purge failed")
		}
	}

	res.FinishedAt = s.now()
	return res
}

// purge runs one member purge. The purge keeps running if ctx is cancelled mid-way.
func (s *Sweeper) purge(ctx context.Context, r model.RetentionRecord, now time.Time) error {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	return s.store.PurgeMemberData(pctx, r.GuildID, r.UserID, now)
}
