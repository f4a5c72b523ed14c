package scheduler

import (
	"context"
	"fmt"
	"time"

	"recruitment-portal/internal/logging"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSpec re-reads the timers once a minute.
const DefaultSpec = "@every 1m"

const runTimeout = 30 * time.Second

// Refresher re-reads timer deadlines and updates the last-known cache.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler runs the refresher on a cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	log       *zap.Logger
}

// New registers the refresh job; an empty spec means DefaultSpec.
func New(spec string, refresher Refresher, log *zap.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	log = logging.OrNop(log)
	cronLog := cron.PrintfLogger(zap.NewStdLog(log.Named("cron")))
	s := &Scheduler{
		cron:      cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.SkipIfStillRunning(cronLog))),
		refresher: refresher,
		log:       log,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunOnce performs a single refresh and logs the outcome.
func (s *Scheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()
	if err := s.refresher.Refresh(ctx); err != nil {
		s.log.Warn("timer refresh failed", zap.Error(err))
		return
	}
	s.log.Debug("timers refreshed")
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running refresh until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
