package model

import (
	"encoding/json"
	"fmt"
	"time"

	"backtest-worker/internal/dto"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Strategy struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID      `gorm:"type:uuid;index"`
	Name      string         `gorm:"type:varchar(255);not null"`
	Rules     datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
}

func (Strategy) TableName() string {
	return "backtest_strategies"
}

func (s *Strategy) DecodeRules() (dto.StrategyRules, error) {
	var rules dto.StrategyRules
	if err := json.Unmarshal(s.Rules, &rules); err != nil {
		return rules, fmt.Errorf("failed to unmarshal strategy rules: %w", err)
	}
	return rules, nil
}
