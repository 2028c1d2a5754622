package retention

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/rcliao/guildkeeper/internal/metrics"
)

// DefaultInterval is how often the scheduler sweeps.
const DefaultInterval = time.Hour

// ExpirySweeper runs one sweep. *Sweeper implements it.
type ExpirySweeper interface {
	SweepExpired(ctx context.Context) SweepResult
}

// Observer receives every finished sweep.
type Observer func(SweepResult)

// Scheduler runs the sweeper periodically. Ticks never overlap: a tick that fires while a
// sweep is still running is skipped.
type Scheduler struct {
	sweeper    ExpirySweeper
	log        logrus.FieldLogger
	runOnStart bool

	mu        sync.Mutex
	cron      *cron.Cron
	job       cron.Job
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
	last      *SweepResult
	observers []Observer

	busy sync.Mutex // held for the duration of a sweep
	wg   sync.WaitGroup
}

// NewScheduler creates a scheduler. With runOnStart, Start sweeps once immediately.
func NewScheduler(sweeper ExpirySweeper, runOnStart bool, log logrus.FieldLogger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		sweeper:    sweeper,
		runOnStart: runOnStart,
		log:        log.WithField("component", "scheduler"),
	}
}

// OnSweep registers an observer for finished sweeps.
func (s *Scheduler) OnSweep(fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Start begins sweeping every interval. Intervals under a second are rounded up to one.
func (s *Scheduler) Start(interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already running")
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	logger := cronLogger{log: s.log}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New(cron.WithLogger(logger))
	s.job = cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).
		Then(cron.FuncJob(s.tick))
	s.cron.Schedule(cron.Every(interval), s.job)
	s.cron.Start()
	s.running = true

	if s.runOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.job.Run()
		}()
	}

	s.log.WithField("interval", interval.String()).Info("retention scheduler started")
	return nil
}

// Stop cancels any in-progress sweep between members and waits until it finishes,
// or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	cronDone := s.cron.Stop()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("retention scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow sweeps immediately. It returns false without sweeping when a sweep is
// already in progress.
func (s *Scheduler) RunNow(ctx context.Context) (SweepResult, bool) {
	return s.execute(ctx)
}

// Last returns the most recent sweep result.
func (s *Scheduler) Last() (SweepResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return SweepResult{}, false
	}
	return *s.last, true
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	s.execute(ctx)
}

func (s *Scheduler) execute(ctx context.Context) (res SweepResult, ran bool) {
	if !s.busy.TryLock() {
		s.log.Debug("sweep already in progress, skipped")
		return SweepResult{}, false
	}
	defer s.busy.Unlock()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res.fail(fmt.Errorf("sweep panic: %v", p))
			if res.StartedAt.IsZero() {
				res.StartedAt = start
			}
			res.FinishedAt = time.Now()
		}
		s.record(res)
		ran = true
	}()

	return s.sweeper.SweepExpired(ctx), true
}

func (s *Scheduler) record(res SweepResult) {
	entry := s.log.WithFields(logrus.Fields{
		"run_id":   res.RunID,
		"cleaned":  res.CleanedCount,
		"skipped":  res.SkippedCount,
		"failures": len(res.Failures),
		"duration": res.Duration().String(),
	})
	switch res.Outcome() {
	case "error":
		entry.WithError(res.Err).Error("retention sweep stopped early")
	case "partial":
		entry.Warn("retention sweep finished with failures")
	default:
		entry.Info("retention sweep finished")
	}

	metrics.ObserveSweep(res.Outcome(), res.CleanedCount, len(res.Failures), res.Duration(), res.FinishedAt)

	s.mu.Lock()
	s.last = &res
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(res)
	}
}
