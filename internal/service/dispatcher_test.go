package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"backtest-worker/internal/dto"
	"backtest-worker/internal/model"
	"backtest-worker/internal/repository"
	"backtest-worker/mocks"
	"backtest-worker/pkg/logger"
	"backtest-worker/pkg/metrics"
	"backtest-worker/pkg/utils"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gorm.io/datatypes"
)

type fakeJobRepo struct {
	mu        sync.Mutex
	jobs      []*model.BacktestJob
	history   []model.BacktestHistory
	claimErr  error
	lastLimit int
	cutoff    time.Time
}

func (f *fakeJobRepo) ClaimQueued(_ context.Context, limit int) ([]model.BacktestJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	if f.claimErr != nil {
		return nil, f.claimErr
	}

	sort.SliceStable(f.jobs, func(i, j int) bool { return f.jobs[i].CreatedAt.Before(f.jobs[j].CreatedAt) })
	claimed := []model.BacktestJob{}
	for _, job := range f.jobs {
		if len(claimed) == limit {
			break
		}
		if job.Status == model.JobStatusQueued {
			job.Status = model.JobStatusRunning
			claimed = append(claimed, *job)
		}
	}
	return claimed, nil
}

func (f *fakeJobRepo) transition(id uuid.UUID, next model.JobStatus, apply func(*model.BacktestJob)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.ID != id {
			continue
		}
		if !job.Status.CanTransition(next) {
			return fmt.Errorf("%w: %s -> %s", repository.ErrInvalidTransition, job.Status, next)
		}
		job.Status = next
		apply(job)
		return nil
	}
	return repository.ErrJobNotFound
}

func (f *fakeJobRepo) MarkDone(ctx context.Context, id uuid.UUID, result []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.transition(id, model.JobStatusDone, func(job *model.BacktestJob) { job.Result = datatypes.JSON(result) })
}

func (f *fakeJobRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.transition(id, model.JobStatusFailed, func(job *model.BacktestJob) {
		job.Error.String, job.Error.Valid = reason, true
	})
}

func (f *fakeJobRepo) FindByID(_ context.Context, id uuid.UUID) (*model.BacktestJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.ID == id {
			cp := *job
			return &cp, nil
		}
	}
	return nil, repository.ErrJobNotFound
}

func (f *fakeJobRepo) AppendHistory(ctx context.Context, history *model.BacktestHistory, _ ...utils.DBOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, *history)
	return nil
}

func (f *fakeJobRepo) FailStale(_ context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoff = olderThan
	var n int64
	for _, job := range f.jobs {
		if job.Status == model.JobStatusRunning && job.UpdatedAt.Before(olderThan) {
			job.Status = model.JobStatusFailed
			n++
		}
	}
	return n, nil
}

func (f *fakeJobRepo) status(id uuid.UUID) model.JobStatus {
	job, _ := f.FindByID(context.Background(), id)
	return job.Status
}

type fakeStrategyRepo struct {
	strategies map[uuid.UUID]*model.Strategy
	panicOn    uuid.UUID
}

func (f *fakeStrategyRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Strategy, error) {
	if id == f.panicOn {
		panic("nil rules")
	}
	st, ok := f.strategies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrStrategyNotFound, id)
	}
	return st, nil
}

const winningRules = `{
	"entry": {"rules": [{"type": "indicator_threshold", "params": {"indicator": "close", "operator": "above", "value": 99}}]},
	"exit": {"rules": [{"type": "take_profit", "params": {"percent": 5}}]}
}`

type dispatcherFixture struct {
	jobs       *fakeJobRepo
	strategies *fakeStrategyRepo
	marketData *mocks.MockMarketDataProvider
	sink       *mocks.MockNotificationSink
	strategyID uuid.UUID
	dispatcher DispatcherService
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	ctrl := gomock.NewController(t)
	strategyID := uuid.New()
	f := &dispatcherFixture{
		jobs: &fakeJobRepo{},
		strategies: &fakeStrategyRepo{strategies: map[uuid.UUID]*model.Strategy{
			strategyID: {ID: strategyID, Name: "breakout", Rules: datatypes.JSON(winningRules)},
		}},
		marketData: mocks.NewMockMarketDataProvider(ctrl),
		sink:       mocks.NewMockNotificationSink(ctrl),
		strategyID: strategyID,
	}

	cfg := testConfig()
	backtestService := NewBacktestService(logger.NewNop(), goValidator.New(), f.jobs, f.strategies, f.marketData)
	f.dispatcher = NewDispatcherService(cfg, logger.NewNop(), f.jobs, f.sink, backtestService, metrics.NewRecorder())
	return f
}

func (f *dispatcherFixture) addJob(symbol string, age time.Duration) *model.BacktestJob {
	job := &model.BacktestJob{
		ID:         uuid.New(),
		StrategyID: f.strategyID,
		UserID:     uuid.New(),
		Params:     datatypes.JSON(fmt.Sprintf(`{"symbol":%q,"timeframe":"1d","start_date":"2024-01-01T00:00:00Z","end_date":"2024-01-31T00:00:00Z","initial_capital":10000}`, symbol)),
		Status:     model.JobStatusQueued,
		CreatedAt:  day0.Add(-age),
		UpdatedAt:  day0.Add(-age),
	}
	f.jobs.jobs = append(f.jobs.jobs, job)
	return job
}

func winningSeries(symbol string) dto.CandleSeries {
	return dto.CandleSeries{Symbol: symbol, Timeframe: "1d", DataSource: "cache", Candles: dailyCandles(100, 110)}
}

func TestDispatch_IsolatesFailingJob(t *testing.T) {
	f := newDispatcherFixture(t)
	job1 := f.addJob("BTCUSDT", 3*time.Hour)
	job2 := f.addJob("BROKEN", 2*time.Hour)
	job3 := f.addJob("ETHUSDT", time.Hour)

	f.marketData.EXPECT().Fetch(gomock.Any(), "BTCUSDT", "1d", gomock.Any(), gomock.Any()).Return(winningSeries("BTCUSDT"), nil)
	f.marketData.EXPECT().Fetch(gomock.Any(), "BROKEN", "1d", gomock.Any(), gomock.Any()).Return(dto.CandleSeries{}, errors.New("data fetch exploded"))
	f.marketData.EXPECT().Fetch(gomock.Any(), "ETHUSDT", "1d", gomock.Any(), gomock.Any()).Return(winningSeries("ETHUSDT"), nil)

	var (
		mu   sync.Mutex
		sent []dto.Notification
	)
	f.sink.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, n dto.Notification) error {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, n)
		return nil
	}).Times(2)

	outcomes, err := f.dispatcher.Dispatch(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, job1.ID.String(), outcomes[0].ID)
	assert.True(t, outcomes[0].Success)
	require.NotNil(t, outcomes[0].Result)
	assert.Len(t, outcomes[0].Result.Trades, 1)
	assert.Equal(t, 100.0, outcomes[0].Result.WinRate)
	assert.True(t, outcomes[0].Result.ProfitFactor.IsInf())

	assert.Equal(t, job2.ID.String(), outcomes[1].ID)
	assert.False(t, outcomes[1].Success)
	assert.Nil(t, outcomes[1].Result)
	assert.Contains(t, outcomes[1].Error, "data fetch exploded")

	assert.Equal(t, job3.ID.String(), outcomes[2].ID)
	assert.True(t, outcomes[2].Success)

	assert.Equal(t, model.JobStatusDone, f.jobs.status(job1.ID))
	assert.Equal(t, model.JobStatusFailed, f.jobs.status(job2.ID))
	assert.Equal(t, model.JobStatusDone, f.jobs.status(job3.ID))

	failed, err := f.jobs.FindByID(context.Background(), job2.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, failed.Error.String)

	done, err := f.jobs.FindByID(context.Background(), job1.ID)
	require.NoError(t, err)
	result, err := done.DecodeResult()
	require.NoError(t, err)
	assert.Equal(t, "cache", result.DataSource)
	assert.Equal(t, 10000.0, result.EquityCurve[0].Equity)

	require.Len(t, f.jobs.history, 2)
	for _, h := range f.jobs.history {
		assert.Nil(t, h.ProfitFactor)
		assert.Equal(t, 1, h.TotalTrades)
	}

	require.Len(t, sent, 2)
	for _, n := range sent {
		assert.Equal(t, "backtest", n.Type)
		assert.Equal(t, "Backtest Completed", n.Title)
		assert.NotEqual(t, job2.ID.String(), n.Data.JobID)
		assert.Equal(t, f.strategyID.String(), n.Data.StrategyID)
		assert.Equal(t, 100.0, n.Data.WinRate)
	}
}

func TestDispatch_NoQueuedJobs(t *testing.T) {
	f := newDispatcherFixture(t)
	f.addJob("BTCUSDT", time.Hour).Status = model.JobStatusDone

	outcomes, err := f.dispatcher.Dispatch(context.Background(), 3)
	require.NoError(t, err)
	assert.NotNil(t, outcomes)
	assert.Empty(t, outcomes)
}

func TestDispatch_ClaimFailure(t *testing.T) {
	f := newDispatcherFixture(t)
	f.jobs.claimErr = errors.New("connection refused")

	outcomes, err := f.dispatcher.Dispatch(context.Background(), 3)
	assert.ErrorContains(t, err, "connection refused")
	assert.Nil(t, outcomes)
}

func TestDispatch_MaxJobs(t *testing.T) {
	f := newDispatcherFixture(t)
	for i := 0; i < 5; i++ {
		f.addJob("BTCUSDT", time.Duration(5-i)*time.Hour)
	}
	f.marketData.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(winningSeries("BTCUSDT"), nil).AnyTimes()
	f.sink.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	outcomes, err := f.dispatcher.Dispatch(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, outcomes, 2)
	assert.Equal(t, 2, f.jobs.lastLimit)

	outcomes, err = f.dispatcher.Dispatch(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, outcomes, 3)
	assert.Equal(t, 3, f.jobs.lastLimit)
}

func TestDispatch_JobFailures(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(f *dispatcherFixture, job *model.BacktestJob)
		wantErr string
	}{
		{
			name: "strategy not found",
			prepare: func(f *dispatcherFixture, job *model.BacktestJob) {
				job.StrategyID = uuid.New()
			},
			wantErr: "strategy not found",
		},
		{
			name: "panic in pipeline",
			prepare: func(f *dispatcherFixture, job *model.BacktestJob) {
				f.strategies.panicOn = job.StrategyID
			},
			wantErr: "panic recovered: nil rules",
		},
		{
			name: "invalid params",
			prepare: func(f *dispatcherFixture, job *model.BacktestJob) {
				job.Params = datatypes.JSON(`{"symbol":"BTCUSDT","timeframe":"2d","start_date":"2024-01-01T00:00:00Z","end_date":"2024-01-31T00:00:00Z"}`)
			},
			wantErr: "invalid backtest params",
		},
		{
			name: "unknown rule",
			prepare: func(f *dispatcherFixture, job *model.BacktestJob) {
				id := uuid.New()
				f.strategies.strategies[id] = &model.Strategy{ID: id, Rules: datatypes.JSON(`{"entry":{"rules":[{"type":"moon_phase"}]}}`)}
				job.StrategyID = id
			},
			wantErr: "unknown rule",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatcherFixture(t)
			job := f.addJob("BTCUSDT", time.Hour)
			tt.prepare(f, job)

			outcomes, err := f.dispatcher.Dispatch(context.Background(), 1)
			require.NoError(t, err)
			require.Len(t, outcomes, 1)
			assert.False(t, outcomes[0].Success)
			assert.Contains(t, outcomes[0].Error, tt.wantErr)
			assert.Equal(t, model.JobStatusFailed, f.jobs.status(job.ID))
			assert.Empty(t, f.jobs.history)
		})
	}
}

func TestDispatch_JobTimeout(t *testing.T) {
	f := newDispatcherFixture(t)
	f.dispatcher.(*dispatcherService).cfg.Dispatcher.JobTimeout = 20 * time.Millisecond
	job := f.addJob("SLOW", time.Hour)

	f.marketData.EXPECT().Fetch(gomock.Any(), "SLOW", gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _, _ string, _, _ time.Time) (dto.CandleSeries, error) {
			<-ctx.Done()
			return dto.CandleSeries{}, ctx.Err()
		})

	outcomes, err := f.dispatcher.Dispatch(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Success)
	assert.Contains(t, outcomes[0].Error, context.DeadlineExceeded.Error())
	assert.Equal(t, model.JobStatusFailed, f.jobs.status(job.ID))
}

func TestDispatch_CallerCancelStillMarksFailed(t *testing.T) {
	f := newDispatcherFixture(t)
	job := f.addJob("BTCUSDT", time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.marketData.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(jobCtx context.Context, _, _ string, _, _ time.Time) (dto.CandleSeries, error) {
			cancel()
			<-jobCtx.Done()
			return dto.CandleSeries{}, jobCtx.Err()
		})

	outcomes, err := f.dispatcher.Dispatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Success)
	assert.Contains(t, outcomes[0].Error, context.Canceled.Error())

	stored, err := f.jobs.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, stored.Status)
	assert.Contains(t, stored.Error.String, context.Canceled.Error())
}

func TestDispatch_NotificationFailureKeepsJobDone(t *testing.T) {
	f := newDispatcherFixture(t)
	job := f.addJob("BTCUSDT", time.Hour)

	f.marketData.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(winningSeries("BTCUSDT"), nil)
	f.sink.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("webhook down"))

	outcomes, err := f.dispatcher.Dispatch(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Success)
	assert.Equal(t, model.JobStatusDone, f.jobs.status(job.ID))
}

func TestDispatch_EmptySeriesCompletes(t *testing.T) {
	f := newDispatcherFixture(t)
	job := f.addJob("BTCUSDT", time.Hour)

	f.marketData.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(dto.CandleSeries{DataSource: "synthetic", Candles: []dto.Candle{}}, nil)
	f.sink.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)

	outcomes, err := f.dispatcher.Dispatch(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, outcomes[0].Success)

	result := outcomes[0].Result
	assert.Empty(t, result.Trades)
	assert.Equal(t, 0.0, result.WinRate)
	assert.Equal(t, dto.ProfitFactor(0), result.ProfitFactor)
	assert.Equal(t, []dto.EquityPoint{{Timestamp: day0, Equity: 10000}}, result.EquityCurve)
	assert.Equal(t, model.JobStatusDone, f.jobs.status(job.ID))

	require.Len(t, f.jobs.history, 1)
	require.NotNil(t, f.jobs.history[0].ProfitFactor)
	assert.Equal(t, 0.0, *f.jobs.history[0].ProfitFactor)
}

func TestSweepStale(t *testing.T) {
	f := newDispatcherFixture(t)
	job := f.addJob("BTCUSDT", 48*time.Hour)
	job.Status = model.JobStatusRunning

	n, err := f.dispatcher.SweepStale(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, f.jobs.cutoff.IsZero(), "sweep must be disabled by default")

	f.dispatcher.(*dispatcherService).cfg.Dispatcher.StaleAfter = time.Hour
	n, err = f.dispatcher.SweepStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, model.JobStatusFailed, f.jobs.status(job.ID))
}

func TestBacktestService_GetJob(t *testing.T) {
	f := newDispatcherFixture(t)
	job := f.addJob("BTCUSDT", time.Hour)
	svc := NewBacktestService(logger.NewNop(), goValidator.New(), f.jobs, f.strategies, f.marketData)

	view, err := svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "queued", view.Status)
	assert.Equal(t, "BTCUSDT", view.Params.Symbol)
	assert.Nil(t, view.Result)

	_, err = svc.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrJobNotFound)
}
