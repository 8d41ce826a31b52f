package repositories

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cvmatcher/backend/internal/models"
)

type LLMConfigRepository interface {
	FindByUserID(userID uint) (*models.LLMConfig, error)
	// Upsert fully replaces the user's configuration.
	Upsert(cfg *models.LLMConfig) error
}

type llmConfigRepository struct {
	db *gorm.DB
}

func NewLLMConfigRepository(db *gorm.DB) LLMConfigRepository {
	return &llmConfigRepository{db: db}
}

func (r *llmConfigRepository) FindByUserID(userID uint) (*models.LLMConfig, error) {
	var cfg models.LLMConfig
	if err := r.db.Where("user_id = ?", userID).First(&cfg).Error; err != nil {
		return nil, notFoundOr(err, fmt.Errorf("failed to find llm config: %w", err))
	}
	return &cfg, nil
}

func (r *llmConfigRepository) Upsert(cfg *models.LLMConfig) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider", "api_key", "model_name", "base_url",
			"temperature", "top_p", "max_tokens", "updated_at",
		}),
	}).Create(cfg).Error
	if err != nil {
		return fmt.Errorf("failed to save llm config: %w", err)
	}
	return nil
}
