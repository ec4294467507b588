package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestJobStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobStatusQueued, JobStatusRunning, true},
		{JobStatusRunning, JobStatusDone, true},
		{JobStatusRunning, JobStatusFailed, true},
		{JobStatusQueued, JobStatusDone, false},
		{JobStatusQueued, JobStatusFailed, false},
		{JobStatusRunning, JobStatusQueued, false},
		{JobStatusDone, JobStatusFailed, false},
		{JobStatusFailed, JobStatusRunning, false},
		{JobStatusDone, JobStatusRunning, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestBacktestJob_Decode(t *testing.T) {
	job := BacktestJob{
		ID:     uuid.New(),
		Params: datatypes.JSON(`{"symbol":"BTCUSDT","timeframe":"1h","start_date":"2024-01-01T00:00:00Z","end_date":"2024-02-01T00:00:00Z"}`),
	}

	params, err := job.DecodeParams()
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", params.Symbol)
	assert.Equal(t, "1h", params.Timeframe)

	result, err := job.DecodeResult()
	require.NoError(t, err)
	assert.Nil(t, result)

	job.Result = datatypes.JSON(`{"trades":[],"metrics":{"win_rate":50,"profit_factor":null},"candle_count":3}`)
	result, err = job.DecodeResult()
	require.NoError(t, err)
	assert.Equal(t, 3, result.CandleCount)
	assert.True(t, result.Metrics.ProfitFactor.IsInf())

	job.Params = nil
	_, err = job.DecodeParams()
	assert.Error(t, err)

	job.Params = datatypes.JSON(`{"symbol":`)
	_, err = job.DecodeParams()
	assert.Error(t, err)
}
