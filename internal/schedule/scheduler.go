package schedule

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Runner is the re-sync entry point the scheduler drives.
type Runner interface {
	Resync(ctx context.Context) error
}

// Scheduler re-runs the migration on a cron spec until the process stops.
// A tick that fires while the previous re-sync is still in flight is skipped,
// so two runs never write concurrently.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
}

func New() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Scheduler{cron: cron.New(cron.WithParser(parser))}
}

func (s *Scheduler) Schedule(spec string, runner Runner) error {
	if _, err := s.cron.AddFunc(spec, s.wrap(spec, runner)); err != nil {
		return err
	}
	logutil.GetLogger(context.Background()).Info("re-sync scheduled", zap.String("spec", spec))
	return nil
}

func (s *Scheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx = ctx
	s.cron.Start()
}

// Stop waits for an in-flight re-sync to finish before returning.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) wrap(spec string, runner Runner) func() {
	var running atomic.Bool
	return func() {
		if !running.CompareAndSwap(false, true) {
			logutil.GetLogger(context.Background()).Info("re-sync skipped: previous run still in flight",
				zap.String("spec", spec))
			return
		}
		defer running.Store(false)

		ctx := s.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		logger := logutil.GetLogger(ctx).With(zap.String("spec", spec))
		start := time.Now()
		logger.Info("re-sync started")
		err := runner.Resync(ctx)
		elapsed := time.Since(start)
		if err != nil {
			logger.Error("re-sync finished", zap.Error(err), zap.Duration("duration", elapsed))
			return
		}
		logger.Info("re-sync finished", zap.Duration("duration", elapsed))
	}
}
