package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backtest-worker/config"
	"backtest-worker/internal/dto"
	"backtest-worker/internal/model"
	"backtest-worker/internal/repository"
	"backtest-worker/pkg/common"
	"backtest-worker/pkg/logger"
	"backtest-worker/pkg/metrics"
	"backtest-worker/pkg/utils"

	"golang.org/x/sync/errgroup"
)

// persistTimeout bounds the writes that record a job's terminal state. They
// run detached from the caller so a cancelled request or a shutdown signal
// cannot leave a claimed job in running.
const persistTimeout = 10 * time.Second

// DispatcherService claims queued backtest jobs and runs them.
type DispatcherService interface {
	// Dispatch runs up to maxJobs queued jobs concurrently and reports one
	// outcome per claimed job. Only a failed claim returns an error.
	Dispatch(ctx context.Context, maxJobs int) ([]dto.JobOutcome, error)
	// SweepStale fails jobs stuck in running longer than the configured
	// stale_after. It does nothing when stale_after is zero.
	SweepStale(ctx context.Context) (int64, error)
}

type dispatcherService struct {
	cfg              *config.Config
	log              *logger.Logger
	jobRepo          repository.JobRepository
	notificationSink repository.NotificationSink
	backtestService  BacktestService
	metrics          *metrics.Recorder
}

func NewDispatcherService(
	cfg *config.Config,
	log *logger.Logger,
	jobRepo repository.JobRepository,
	notificationSink repository.NotificationSink,
	backtestService BacktestService,
	recorder *metrics.Recorder,
) DispatcherService {
	return &dispatcherService{
		cfg:              cfg,
		log:              log,
		jobRepo:          jobRepo,
		notificationSink: notificationSink,
		backtestService:  backtestService,
		metrics:          recorder,
	}
}

func (s *dispatcherService) Dispatch(ctx context.Context, maxJobs int) ([]dto.JobOutcome, error) {
	if maxJobs <= 0 {
		maxJobs = s.cfg.Dispatcher.MaxJobs
	}

	jobs, err := s.jobRepo.ClaimQueued(ctx, maxJobs)
	if err != nil {
		s.metrics.RecordDispatchError()
		s.log.ErrorContext(ctx, "Failed to claim queued backtest jobs", logger.ErrorField(err))
		return nil, fmt.Errorf("failed to claim queued jobs: %w", err)
	}
	if len(jobs) == 0 {
		s.log.DebugContext(ctx, "No queued backtest jobs")
		return []dto.JobOutcome{}, nil
	}

	s.metrics.RecordClaimed(len(jobs))
	s.log.InfoContext(ctx, "Start running backtest jobs",
		logger.IntField("job_count", len(jobs)),
		logger.IntField("max_jobs", maxJobs))

	outcomes := make([]dto.JobOutcome, len(jobs))
	var g errgroup.Group
	g.SetLimit(len(jobs))
	for i, job := range jobs {
		g.Go(func() error {
			outcomes[i] = s.runJob(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, nil
}

// runJob never returns an error: every failure, panics included, ends up on
// the job record and in the outcome.
func (s *dispatcherService) runJob(ctx context.Context, job model.BacktestJob) dto.JobOutcome {
	start := time.Now()
	log := s.log.With(
		logger.StringField("job_id", job.ID.String()),
		logger.StringField("strategy_id", job.StrategyID.String()),
	)

	jobCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.cfg.Dispatcher.JobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, s.cfg.Dispatcher.JobTimeout)
	}
	defer cancel()

	var run *BacktestRun
	err := utils.RunSafe(func() error {
		var err error
		run, err = s.backtestService.Run(jobCtx, job)
		return err
	})

	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancelPersist()

	if err != nil {
		return s.fail(persistCtx, log, job, err, start)
	}

	payload, err := json.Marshal(run.Result)
	if err != nil {
		return s.fail(persistCtx, log, job, fmt.Errorf("failed to marshal result: %w", err), start)
	}
	if err := s.jobRepo.MarkDone(persistCtx, job.ID, payload); err != nil {
		return s.fail(persistCtx, log, job, fmt.Errorf("failed to store result: %w", err), start)
	}

	s.metrics.RecordJob(string(model.JobStatusDone), time.Since(start))
	log.InfoContext(ctx, "Backtest job done",
		logger.StringField("symbol", run.Params.Symbol),
		logger.StringField("timeframe", run.Params.Timeframe),
		logger.Float64Field("win_rate", run.Result.Metrics.WinRate),
		logger.DurationField("duration", time.Since(start)))

	s.afterDone(persistCtx, log, job, run)

	return dto.JobOutcome{ID: job.ID.String(), Success: true, Result: run.Result}
}

// afterDone records history and notifies the user. The job is already done,
// so failures here are only logged.
func (s *dispatcherService) afterDone(ctx context.Context, log *logger.Logger, job model.BacktestJob, run *BacktestRun) {
	summary := run.Result.Metrics

	history := &model.BacktestHistory{
		JobID:       job.ID,
		StrategyID:  job.StrategyID,
		UserID:      job.UserID,
		Symbol:      run.Params.Symbol,
		Timeframe:   run.Params.Timeframe,
		TotalTrades: summary.TotalTrades,
		WinRate:     summary.WinRate,
		Return:      summary.Return,
		DataSource:  run.Result.DataSource,
	}
	if !summary.ProfitFactor.IsInf() {
		history.ProfitFactor = utils.ToPointer(float64(summary.ProfitFactor))
	}
	if err := s.jobRepo.AppendHistory(ctx, history); err != nil {
		log.ErrorContext(ctx, "Failed to append backtest history", logger.ErrorField(err))
	}

	notification := dto.Notification{
		UserID:  job.UserID.String(),
		Type:    common.NOTIFICATION_TYPE_BACKTEST,
		Title:   common.NOTIFICATION_TITLE_BACKTEST,
		Message: fmt.Sprintf("Your backtest for %s (%s) has completed with a %.2f%% win rate over %d trades.", run.Params.Symbol, run.Params.Timeframe, summary.WinRate, summary.TotalTrades),
		Data: dto.NotificationData{
			JobID:        job.ID.String(),
			StrategyID:   job.StrategyID.String(),
			WinRate:      summary.WinRate,
			ProfitFactor: summary.ProfitFactor,
		},
	}
	if err := s.notificationSink.Send(ctx, notification); err != nil {
		log.ErrorContext(ctx, "Failed to send backtest notification", logger.ErrorField(err))
	}
}

func (s *dispatcherService) fail(ctx context.Context, log *logger.Logger, job model.BacktestJob, cause error, start time.Time) dto.JobOutcome {
	s.metrics.RecordJob(string(model.JobStatusFailed), time.Since(start))
	log.ErrorContext(ctx, "Backtest job failed", logger.ErrorField(cause))

	if err := s.jobRepo.MarkFailed(ctx, job.ID, cause.Error()); err != nil {
		log.ErrorContext(ctx, "Failed to mark backtest job failed", logger.ErrorField(err))
	}
	return dto.JobOutcome{ID: job.ID.String(), Success: false, Error: cause.Error()}
}

func (s *dispatcherService) SweepStale(ctx context.Context) (int64, error) {
	if s.cfg.Dispatcher.StaleAfter <= 0 {
		return 0, nil
	}

	n, err := s.jobRepo.FailStale(ctx, utils.TimeNow().Add(-s.cfg.Dispatcher.StaleAfter))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.metrics.RecordStaleJobs(n)
		s.log.WarnContext(ctx, "Failed stale running backtest jobs", logger.IntField("job_count", int(n)))
	}
	return n, nil
}
