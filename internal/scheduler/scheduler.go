package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	ReapIdleSessionsSpec = "* * * * *"
	PruneHistorySpec     = "0 * * * *"

	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0

	jobTimeout = 5 * time.Minute
)

// SessionReaper closes model sessions nobody used for a while.
type SessionReaper interface {
	ReapIdle(ctx context.Context, idle time.Duration) (int, error)
}

// HistoryPruner deletes chat messages created before a cutoff.
type HistoryPruner interface {
	PruneMessages(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	SessionIdleTimeout time.Duration
	HistoryRetention   time.Duration
}

type Scheduler struct {
	ctx    context.Context
	cron   *cron.Cron
	reaper SessionReaper
	pruner HistoryPruner
	cfg    Config
	now    func() time.Time
	log    *slog.Logger
}

func New(
	ctx context.Context,
	reaper SessionReaper,
	pruner HistoryPruner,
	cfg Config,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:    ctx,
		cron:   c,
		reaper: reaper,
		pruner: pruner,
		cfg:    cfg,
		now:    time.Now,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(ReapIdleSessionsSpec, s.reapIdleSessions); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(PruneHistorySpec, s.pruneHistory); err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

// Stop stops scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) reapIdleSessions() {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	if ctx.Err() != nil {
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	}

	reaped, err := s.reaper.ReapIdle(ctx, s.cfg.SessionIdleTimeout)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to reap idle sessions",
			"error", err,
			"reaped", reaped,
			"idleTimeout", s.cfg.SessionIdleTimeout)

		return
	}

	if reaped > 0 {
		s.log.InfoContext(ctx, "Idle sessions are reaped",
			"reaped", reaped,
			"idleTimeout", s.cfg.SessionIdleTimeout)
	}
}

func (s *Scheduler) pruneHistory() {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	if ctx.Err() != nil {
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	}

	cutoff := s.now().Add(-s.cfg.HistoryRetention)

	pruned, err := s.pruner.PruneMessages(ctx, cutoff)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to prune chat history",
			"error", err,
			"cutoff", cutoff)

		return
	}

	s.log.InfoContext(ctx, "Chat history is pruned",
		"pruned", pruned,
		"cutoff", cutoff)
}
