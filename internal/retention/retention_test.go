package retention

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/guildkeeper/internal/model"
	"github.com/rcliao/guildkeeper/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// clock is a settable time source shared by service and sweeper.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *clock { return &clock{t: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store   *store.SQLiteStore
	svc     *Service
	sweeper *Sweeper
	clock   *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newTestStore(t)
	c := newClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	svc := NewService(st, DefaultRetentionDays, quietLogger())
	svc.now = c.Now
	sw := NewSweeper(st, SweeperConfig{}, quietLogger())
	sw.now = c.Now
	return &fixture{store: st, svc: svc, sweeper: sw, clock: c}
}

func (f *fixture) award(t *testing.T, guildID, userID string, xp int64) {
	t.Helper()
	_, err := f.store.RecordAward(context.Background(), store.AwardParams{
		GuildID: guildID, UserID: userID, XP: xp, Currency: xp / 10, Reason: "test",
	})
	require.NoError(t, err)
}

func (f *fixture) xp(t *testing.T, guildID, userID string) int64 {
	t.Helper()
	xp, err := f.store.MemberXP(context.Background(), guildID, userID)
	require.NoError(t, err)
	return xp
}

func TestOnMemberDepartureSetsExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.OnMemberDeparture(ctx, "g1", "u1", 3)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now(), r.LeftAt)
	assert.Equal(t, f.clock.Now().AddDate(0, 0, 3), r.ExpiresAt)
	assert.Equal(t, model.StateDeparted, r.State)

	r, err = f.svc.OnMemberDeparture(ctx, "g1", "u2", -5)
	require.NoError(t, err)
	assert.Equal(t, r.LeftAt, r.ExpiresAt, "negative days clamp to 0")
}

func TestRepeatDepartureResetsClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.OnMemberDeparture(ctx, "g1", "u1", 3)
	require.NoError(t, err)
	f.clock.Advance(48 * time.Hour)
	_, err = f.svc.OnMemberDeparture(ctx, "g1", "u1", 3)
	require.NoError(t, err)

	recs, err := f.svc.ListDeparted(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, f.clock.Now().AddDate(0, 0, 3), recs[0].ExpiresAt)
}

func TestHandleLeaveUsesGuildSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.HandleLeave(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().AddDate(0, 0, DefaultRetentionDays), r.ExpiresAt)

	require.NoError(t, f.svc.SaveSettings(ctx, "g2", 10))
	r, err = f.svc.HandleLeave(ctx, "g2", "u1")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().AddDate(0, 0, 10), r.ExpiresAt)

	st, err := f.svc.Settings(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, DefaultRetentionDays, st.RetentionDays)

	assert.ErrorIs(t, f.svc.SaveSettings(ctx, "g1", -1), model.ErrValidation)
}

func TestSweepPurgesOnlyExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.award(t, "g1", "gone", 500)
	f.award(t, "g1", "recent", 300)
	_, err := f.svc.OnMemberDeparture(ctx, "g1", "gone", 3)
	require.NoError(t, err)
	f.clock.Advance(3 * 24 * time.Hour)
	_, err = f.svc.OnMemberDeparture(ctx, "g1", "recent", 3)
	require.NoError(t, err)

	res := f.sweeper.SweepExpired(ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.CleanedCount)
	assert.Empty(t, res.Failures)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "ok", res.Outcome())

	assert.Zero(t, f.xp(t, "g1", "gone"))
	assert.Equal(t, int64(300), f.xp(t, "g1", "recent"), "record expiring in the future must not be purged")
}

func TestSweepIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, u := range []string{"a", "b", "c"} {
		f.award(t, "g1", u, 100)
		_, err := f.svc.OnMemberDeparture(ctx, "g1", u, 1)
		require.NoError(t, err)
	}
	f.clock.Advance(25 * time.Hour)

	first := f.sweeper.SweepExpired(ctx)
	assert.Equal(t, 3, first.CleanedCount)

	second := f.sweeper.SweepExpired(ctx)
	assert.Equal(t, 0, second.CleanedCount)
	assert.Equal(t, 0, second.SkippedCount)
}

func TestSweepZeroRetentionPurgesAtNextSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.award(t, "g1", "u1", 100)
	_, err := f.svc.OnMemberDeparture(ctx, "g1", "u1", 0)
	require.NoError(t, err)

	res := f.sweeper.SweepExpired(ctx)
	assert.Equal(t, 1, res.CleanedCount)
}

func TestRejoinBeforeExpiryKeepsData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.award(t, "g1", "u1", 250)
	_, err := f.svc.HandleLeave(ctx, "g1", "u1")
	require.NoError(t, err)
	f.clock.Advance(24 * time.Hour)
	require.NoError(t, f.svc.HandleJoin(ctx, "g1", "u1"))
	f.clock.Advance(7 * 24 * time.Hour)

	res := f.sweeper.SweepExpired(ctx)
	assert.Equal(t, 0, res.CleanedCount)
	assert.Equal(t, int64(250), f.xp(t, "g1", "u1"))
}

func TestRejoinAfterPurgeStartsFresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.award(t, "g1", "u1", 250)
	_, err := f.svc.OnMemberDeparture(ctx, "g1", "u1", 1)
	require.NoError(t, err)
	f.clock.Advance(48 * time.Hour)
	f.sweeper.SweepExpired(ctx)

	require.NoError(t, f.svc.HandleJoin(ctx, "g1", "u1"))
	assert.Zero(t, f.xp(t, "g1", "u1"))
	recs, err := f.svc.ListDeparted(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

// flakyStore fails purges for selected members and can simulate a rejoin
// between the expiry query and the purge.
type flakyStore struct {
	store.RetentionStore
	fail    map[string]bool
	rejoin  map[string]bool
	cancel  context.CancelFunc
	purged  []string
	purgeCt []error
}

func (s *flakyStore) PurgeMemberData(ctx context.Context, guildID, userID string, now time.Time) error {
	if s.cancel != nil {
		s.cancel()
	}
	s.purgeCt = append(s.purgeCt, ctx.Err())
	if s.fail[userID] {
		return errors.New("database is locked")
	}
	if s.rejoin[userID] {
		if err := s.RetentionStore.DeleteRetentionRecord(ctx, guildID, userID); err != nil {
			return err
		}
	}
	err := s.RetentionStore.PurgeMemberData(ctx, guildID, userID, now)
	if err == nil {
		s.purged = append(s.purged, userID)
	}
	return err
}

func TestSweepIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, u := range []string{"a", "b", "c"} {
		f.award(t, "g1", u, 100)
		_, err := f.svc.OnMemberDeparture(ctx, "g1", u, 1)
		require.NoError(t, err)
	}
	f.clock.Advance(48 * time.Hour)

	flaky := &flakyStore{RetentionStore: f.store, fail: map[string]bool{"b": true}}
	sw := NewSweeper(flaky, SweeperConfig{}, quietLogger())
	sw.now = f.clock.Now

	res := sw.SweepExpired(ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.CleanedCount)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "b", res.Failures[0].UserID)
	assert.ErrorIs(t, res.Failures[0].Err, model.ErrStorage)
	assert.Equal(t, "partial", res.Outcome())

	assert.Equal(t, int64(100), f.xp(t, "g1", "b"))

	// The failed member is retried by the next sweep.
	res = f.sweeper.SweepExpired(ctx)
	assert.Equal(t, 1, res.CleanedCount)
}

func TestSweepSkipsMemberWhoRejoinedMidSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.award(t, "g1", "u1", 100)
	_, err := f.svc.OnMemberDeparture(ctx, "g1", "u1", 0)
	require.NoError(t, err)

	flaky := &flakyStore{RetentionStore: f.store, rejoin: map[string]bool{"u1": true}}
	sw := NewSweeper(flaky, SweeperConfig{}, quietLogger())
	sw.now = f.clock.Now

	res := sw.SweepExpired(ctx)
	assert.Equal(t, 0, res.CleanedCount)
	assert.Equal(t, 1, res.SkippedCount)
	assert.Equal(t, int64(100), f.xp(t, "g1", "u1"))
}

func TestSweepStopsBetweenRecordsOnCancel(t *testing.T) {
	f := newFixture(t)

	for _, u := range []string{"a", "b", "c"} {
		_, err := f.svc.OnMemberDeparture(context.Background(), "g1", u, 0)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	flaky := &flakyStore{RetentionStore: f.store, cancel: cancel}
	sw := NewSweeper(flaky, SweeperConfig{}, quietLogger())
	sw.now = f.clock.Now

	res := sw.SweepExpired(ctx)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 1, res.CleanedCount, "the in-flight purge completes")
	require.Len(t, flaky.purgeCt, 1)
	assert.NoError(t, flaky.purgeCt[0], "purge context is detached from cancellation")
}

type failingFind struct {
	store.RetentionStore
}

func (failingFind) FindExpiredDeparted(context.Context, time.Time) ([]model.RetentionRecord, error) {
	return nil, errors.New("no such table")
}

func TestSweepReportsQueryFailure(t *testing.T) {
	f := newFixture(t)
	sw := NewSweeper(failingFind{f.store}, SweeperConfig{}, quietLogger())

	res := sw.SweepExpired(context.Background())
	assert.ErrorIs(t, res.Err, model.ErrStorage)
	assert.Equal(t, "error", res.Outcome())
	assert.NotEmpty(t, res.Error)
}

func TestSweepRateLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, u := range []string{"a", "b", "c"} {
		_, err := f.svc.OnMemberDeparture(ctx, "g1", u, 0)
		require.NoError(t, err)
	}

	sw := NewSweeper(f.store, SweeperConfig{PurgeRate: 20}, quietLogger())
	sw.now = f.clock.Now

	start := time.Now()
	res := sw.SweepExpired(ctx)
	assert.Equal(t, 3, res.CleanedCount)
	// burst of 1 at 20/s: two waits of ~50ms
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
