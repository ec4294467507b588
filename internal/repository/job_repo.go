package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"backtest-worker/internal/model"
	"backtest-worker/pkg/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrJobNotFound       = errors.New("backtest job not found")
	ErrInvalidTransition = errors.New("invalid job status transition")
)

const staleJobReason = "job exceeded running deadline"

type JobRepository interface {
	ClaimQueued(ctx context.Context, limit int) ([]model.BacktestJob, error)
	MarkDone(ctx context.Context, id uuid.UUID, result []byte) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.BacktestJob, error)
	AppendHistory(ctx context.Context, history *model.BacktestHistory, opts ...utils.DBOption) error
	FailStale(ctx context.Context, olderThan time.Time) (int64, error)
}

type jobRepository struct {
	db  *gorm.DB
	uow UnitOfWork
}

func NewJobRepository(db *gorm.DB, uow UnitOfWork) JobRepository {
	return &jobRepository{db: db, uow: uow}
}

// ClaimQueued moves up to limit of the oldest queued jobs to running and
// returns them ordered by created_at. Concurrent claimers never receive the
// same job: candidate rows are locked with SKIP LOCKED and the status update
// is conditional on the row still being queued.
func (r *jobRepository) ClaimQueued(ctx context.Context, limit int) ([]model.BacktestJob, error) {
	if limit <= 0 {
		return []model.BacktestJob{}, nil
	}

	claimed := []model.BacktestJob{}
	err := r.uow.Run(ctx, func(opts ...utils.DBOption) error {
		var ids []uuid.UUID
		err := utils.ApplyOptions(r.db.WithContext(ctx), append(opts, utils.WithSkipLocked())...).
			Model(&model.BacktestJob{}).
			Where("status = ?", model.JobStatusQueued).
			Order("created_at ASC").
			Limit(limit).
			Pluck("id", &ids).Error
		if err != nil {
			return fmt.Errorf("failed to select queued jobs: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}

		err = utils.ApplyOptions(r.db.WithContext(ctx), opts...).
			Model(&model.BacktestJob{}).
			Where("id IN ? AND status = ?", ids, model.JobStatusQueued).
			Updates(map[string]interface{}{
				"status":     model.JobStatusRunning,
				"updated_at": utils.TimeNow(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to mark jobs running: %w", err)
		}

		err = utils.ApplyOptions(r.db.WithContext(ctx), opts...).
			Where("id IN ? AND status = ?", ids, model.JobStatusRunning).
			Order("created_at ASC").
			Find(&claimed).Error
		if err != nil {
			return fmt.Errorf("failed to load claimed jobs: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *jobRepository) MarkDone(ctx context.Context, id uuid.UUID, result []byte) error {
	return r.finish(ctx, id, map[string]interface{}{
		"status":     model.JobStatusDone,
		"result":     datatypes.JSON(result),
		"error":      sql.NullString{},
		"updated_at": utils.TimeNow(),
	})
}

func (r *jobRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.finish(ctx, id, map[string]interface{}{
		"status":     model.JobStatusFailed,
		"error":      sql.NullString{String: reason, Valid: true},
		"updated_at": utils.TimeNow(),
	})
}

// finish applies a terminal update to a running job.
func (r *jobRepository) finish(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&model.BacktestJob{}).
		Where("id = ? AND status = ?", id, model.JobStatusRunning).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update job %s: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	job, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s is %s, want %s", ErrInvalidTransition, id, job.Status, updates["status"])
}

func (r *jobRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.BacktestJob, error) {
	var job model.BacktestJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) AppendHistory(ctx context.Context, history *model.BacktestHistory, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(history).Error
}

// FailStale fails running jobs whose last update is older than olderThan.
func (r *jobRepository) FailStale(ctx context.Context, olderThan time.Time) (int64, error) {
	res := utils.ApplyOptions(r.db.WithContext(ctx).Model(&model.BacktestJob{}),
		utils.WithWhere("status = ?", model.JobStatusRunning),
		utils.WithWhere("updated_at < ?", olderThan),
	).Updates(map[string]interface{}{
			"status":     model.JobStatusFailed,
			"error":      sql.NullString{String: staleJobReason, Valid: true},
			"updated_at": utils.TimeNow(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to fail stale jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
