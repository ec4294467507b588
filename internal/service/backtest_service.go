package service

import (
	"context"
	"fmt"

	"backtest-worker/internal/backtest"
	"backtest-worker/internal/dto"
	"backtest-worker/internal/model"
	"backtest-worker/internal/repository"
	"backtest-worker/internal/strategy"
	"backtest-worker/pkg/logger"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// BacktestRun is one finished pipeline run of a job.
type BacktestRun struct {
	Params dto.BacktestParams
	Result *dto.BacktestResult
}

// BacktestService runs a single claimed job through market data, the
// simulator and the metrics calculator, and serves job lookups.
type BacktestService interface {
	Run(ctx context.Context, job model.BacktestJob) (*BacktestRun, error)
	GetJob(ctx context.Context, id uuid.UUID) (*dto.JobView, error)
}

type backtestService struct {
	log          *logger.Logger
	validator    *goValidator.Validate
	jobRepo      repository.JobRepository
	strategyRepo repository.StrategyRepository
	marketData   MarketDataProvider
}

func NewBacktestService(
	log *logger.Logger,
	validator *goValidator.Validate,
	jobRepo repository.JobRepository,
	strategyRepo repository.StrategyRepository,
	marketData MarketDataProvider,
) BacktestService {
	return &backtestService{
		log:          log,
		validator:    validator,
		jobRepo:      jobRepo,
		strategyRepo: strategyRepo,
		marketData:   marketData,
	}
}

func (s *backtestService) Run(ctx context.Context, job model.BacktestJob) (*BacktestRun, error) {
	params, err := job.DecodeParams()
	if err != nil {
		return nil, err
	}
	params = params.WithDefaults()
	if err := s.validator.Struct(params); err != nil {
		return nil, fmt.Errorf("invalid backtest params: %w", err)
	}

	st, err := s.strategyRepo.FindByID(ctx, job.StrategyID)
	if err != nil {
		return nil, err
	}
	rules, err := st.DecodeRules()
	if err != nil {
		return nil, err
	}
	compiled, err := strategy.Compile(rules)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", st.ID, err)
	}

	series, err := s.marketData.Fetch(ctx, params.Symbol, params.Timeframe, params.StartDate, params.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch market data: %w", err)
	}

	result, sim, err := backtest.Run(ctx, series.Candles, compiled, params)
	if err != nil {
		return nil, err
	}
	result.DataSource = series.DataSource

	s.log.InfoContext(ctx, "Backtest simulation finished",
		logger.StringField("job_id", job.ID.String()),
		logger.StringField("symbol", params.Symbol),
		logger.StringField("timeframe", params.Timeframe),
		logger.StringField("data_source", series.DataSource),
		logger.IntField("candle_count", len(series.Candles)),
		logger.IntField("total_trades", result.Metrics.TotalTrades),
		logger.BoolField("open_position_at_end", sim.OpenPosition != nil))

	return &BacktestRun{Params: params, Result: result}, nil
}

func (s *backtestService) GetJob(ctx context.Context, id uuid.UUID) (*dto.JobView, error) {
	job, err := s.jobRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &dto.JobView{
		ID:         job.ID.String(),
		StrategyID: job.StrategyID.String(),
		UserID:     job.UserID.String(),
		Status:     string(job.Status),
		Error:      job.Error.String,
	}
	if params, err := job.DecodeParams(); err == nil {
		view.Params = params
	}
	result, err := job.DecodeResult()
	if err != nil {
		return nil, err
	}
	view.Result = result
	return view, nil
}
