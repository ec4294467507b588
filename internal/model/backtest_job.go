package model

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"backtest-worker/internal/dto"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// CanTransition reports whether a job may move from s to next.
// The only valid moves are queued -> running -> done|failed.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusRunning
	case JobStatusRunning:
		return next == JobStatusDone || next == JobStatusFailed
	default:
		return false
	}
}

type BacktestJob struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	StrategyID uuid.UUID      `gorm:"type:uuid;not null;index"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;index"`
	Params     datatypes.JSON `gorm:"type:jsonb;not null"`
	Status     JobStatus      `gorm:"type:varchar(20);not null;index:idx_backtest_jobs_status_created,priority:1"`
	Result     datatypes.JSON `gorm:"type:jsonb"`
	Error      sql.NullString `gorm:"type:text"`
	CreatedAt  time.Time      `gorm:"not null;index:idx_backtest_jobs_status_created,priority:2"`
	UpdatedAt  time.Time      `gorm:"not null"`
}

func (BacktestJob) TableName() string {
	return "backtest_jobs"
}

func (j *BacktestJob) DecodeParams() (dto.BacktestParams, error) {
	var params dto.BacktestParams
	if len(j.Params) == 0 {
		return params, fmt.Errorf("job %s has no params", j.ID)
	}
	if err := json.Unmarshal(j.Params, &params); err != nil {
		return params, fmt.Errorf("failed to unmarshal job params: %w", err)
	}
	return params, nil
}

func (j *BacktestJob) DecodeResult() (*dto.BacktestResult, error) {
	if len(j.Result) == 0 || string(j.Result) == "null" {
		return nil, nil
	}
	var result dto.BacktestResult
	if err := json.Unmarshal(j.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job result: %w", err)
	}
	return &result, nil
}
