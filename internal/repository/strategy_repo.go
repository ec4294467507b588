package repository

import (
	"context"
	"errors"
	"fmt"

	"backtest-worker/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrStrategyNotFound = errors.New("strategy not found")

type StrategyRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Strategy, error)
}

type strategyRepository struct {
	db *gorm.DB
}

func NewStrategyRepository(db *gorm.DB) StrategyRepository {
	return &strategyRepository{db: db}
}

func (r *strategyRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Strategy, error) {
	var strategy model.Strategy
	if err := r.db.WithContext(ctx).First(&strategy, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, id)
		}
		return nil, err
	}
	return &strategy, nil
}
