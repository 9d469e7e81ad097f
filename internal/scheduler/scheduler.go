// Package scheduler runs jobs at fixed local times using a minute ticker.
// It is deliberately small: two jobs, wall-clock triggers, no cron syntax.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Trigger describes when a job fires: at Hour o'clock, every day or only on
// Weekday when set.
type Trigger struct {
	Weekday *time.Weekday
	Hour    int
}

// Job is a named unit of scheduled work.
type Job struct {
	Name    string
	Trigger Trigger
	Run     func(ctx context.Context, now time.Time) error
}

type jobState struct {
	job      Job
	mu       sync.Mutex // guards against overlapping runs
	lastFire string     // date of the last firing, YYYY-MM-DD
}

// Scheduler ticks once a minute and fires each job at most once per matching
// day. A job still running when its next trigger arrives is skipped for that
// day.
type Scheduler struct {
	jobs       []*jobState
	runTimeout time.Duration
	now        func() time.Time
}

func New(runTimeout time.Duration) *Scheduler {
	if runTimeout <= 0 {
		runTimeout = 5 * time.Minute
	}
	return &Scheduler{
		runTimeout: runTimeout,
		now:        time.Now,
	}
}

func (s *Scheduler) Add(j Job) {
	s.jobs = append(s.jobs, &jobState{job: j})
}

// Start blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	slog.InfoContext(ctx, "Scheduler started", "jobs", len(s.jobs))

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx, s.now())
		}
	}
}

// Tick fires every job whose trigger matches now. Exported so tests can
// drive the scheduler without a real clock.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	for _, st := range s.jobs {
		if !matches(st.job.Trigger, now) {
			continue
		}
		day := now.Format("2006-01-02")
		if st.lastFire == day {
			continue
		}
		if !st.mu.TryLock() {
			slog.WarnContext(ctx, "Skipping job, previous run still in progress",
				"job", st.job.Name)
			continue
		}
		st.lastFire = day
		go s.fire(ctx, st, now)
	}
}

func (s *Scheduler) fire(ctx context.Context, st *jobState, now time.Time) {
	defer st.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	slog.InfoContext(runCtx, "Running scheduled job", "job", st.job.Name)
	start := time.Now()
	if err := st.job.Run(runCtx, now); err != nil {
		slog.ErrorContext(runCtx, "Scheduled job failed",
			"job", st.job.Name,
			"duration", time.Since(start).String(),
			"error", err)
		return
	}
	slog.InfoContext(runCtx, "Scheduled job finished",
		"job", st.job.Name,
		"duration", time.Since(start).String())
}

func matches(t Trigger, now time.Time) bool {
	if now.Hour() != t.Hour {
		return false
	}
	if t.Weekday != nil && now.Weekday() != *t.Weekday {
		return false
	}
	return true
}
