package cmd

import (
	"context"
	"fmt"

	"backtest-worker/internal/service"
	"backtest-worker/pkg/logger"
	"backtest-worker/pkg/utils"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DispatchScheduler calls the dispatcher on a cron schedule, in process.
type DispatchScheduler struct {
	ctx        context.Context
	log        *logger.Logger
	cron       *cron.Cron
	dispatcher service.DispatcherService
	maxJobs    int
}

func NewDispatchScheduler(ctx context.Context, log *logger.Logger, dispatcher service.DispatcherService, maxJobs int) *DispatchScheduler {
	cronLog := cronLogger{log: log}
	return &DispatchScheduler{
		ctx: ctx,
		log: log,
		cron: cron.New(
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
			cron.WithLogger(cronLog),
		),
		dispatcher: dispatcher,
		maxJobs:    maxJobs,
	}
}

// Start registers the dispatch job and, when sweep is true, the stale job
// sweep on the same schedule.
func (s *DispatchScheduler) Start(spec string, sweep bool) error {
	if _, err := s.cron.AddFunc(spec, s.dispatch); err != nil {
		return fmt.Errorf("invalid dispatcher cron %q: %w", spec, err)
	}
	if sweep {
		if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
			return fmt.Errorf("invalid dispatcher cron %q: %w", spec, err)
		}
	}
	s.cron.Start()
	s.log.Info("Dispatch scheduler started", zap.String("cron", spec), zap.Bool("stale_sweep", sweep))
	return nil
}

func (s *DispatchScheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("Dispatch scheduler stopped")
}

func (s *DispatchScheduler) dispatch() {
	if !utils.ShouldContinue(s.ctx, s.log) {
		return
	}
	outcomes, err := s.dispatcher.Dispatch(s.ctx, s.maxJobs)
	if err != nil {
		s.log.ErrorContext(s.ctx, "Scheduled dispatch failed", logger.ErrorField(err))
		return
	}
	if len(outcomes) > 0 {
		failed := 0
		for _, o := range outcomes {
			if !o.Success {
				failed++
			}
		}
		s.log.InfoContext(s.ctx, "Scheduled dispatch finished",
			logger.IntField("job_count", len(outcomes)),
			logger.IntField("failed_count", failed))
	}
}

func (s *DispatchScheduler) sweep() {
	if !utils.ShouldContinue(s.ctx, s.log) {
		return
	}
	if _, err := s.dispatcher.SweepStale(s.ctx); err != nil {
		s.log.ErrorContext(s.ctx, "Stale job sweep failed", logger.ErrorField(err))
	}
}

// cronLogger adapts the zap wrapper to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
