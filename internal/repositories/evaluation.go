package repositories

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cvmatcher/backend/internal/models"
)

type EvaluationRepository interface {
	Create(run *models.EvaluationRun) error
	FindByID(id uuid.UUID) (*models.EvaluationRun, error)
	FindByOwner(ownerID uint, id uuid.UUID) (*models.EvaluationRun, error)
	// ClaimQueued moves a queued run to processing. It returns false when
	// another worker already took it.
	ClaimQueued(id uuid.UUID) (bool, error)
	// Requeue hands an interrupted processing run back to the queue.
	Requeue(id uuid.UUID) (bool, error)
	// RequeueStale requeues processing runs last touched before the cutoff.
	RequeueStale(before time.Time) (int64, error)
	UpdateMetrics(id uuid.UUID, metrics datatypes.JSON) error
	UpdateError(id uuid.UUID, errorMsg string) error
	FindPendingRuns(limit int) ([]models.EvaluationRun, error)
}

type evaluationRepository struct {
	db *gorm.DB
}

func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) Create(run *models.EvaluationRun) error {
	if err := r.db.Create(run).Error; err != nil {
		return fmt.Errorf("failed to create evaluation run: %w", err)
	}
	return nil
}

func (r *evaluationRepository) FindByID(id uuid.UUID) (*models.EvaluationRun, error) {
	var run models.EvaluationRun
	if err := r.db.Where("id = ?", id).First(&run).Error; err != nil {
		return nil, notFoundOr(err, fmt.Errorf("failed to find evaluation run: %w", err))
	}
	return &run, nil
}

func (r *evaluationRepository) FindByOwner(ownerID uint, id uuid.UUID) (*models.EvaluationRun, error) {
	var run models.EvaluationRun
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&run).Error; err != nil {
		return nil, notFoundOr(err, fmt.Errorf("failed to find evaluation run: %w", err))
	}
	return &run, nil
}

func (r *evaluationRepository) ClaimQueued(id uuid.UUID) (bool, error) {
	result := r.db.Model(&models.EvaluationRun{}).
		Where("id = ? AND status = ?", id, models.StatusQueued).
		Updates(map[string]interface{}{
			"status":     models.StatusProcessing,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to update status: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *evaluationRepository) Requeue(id uuid.UUID) (bool, error) {
	result := r.db.Model(&models.EvaluationRun{}).
		Where("id = ? AND status = ?", id, models.StatusProcessing).
		Updates(map[string]interface{}{
			"status":     models.StatusQueued,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to requeue run: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *evaluationRepository) RequeueStale(before time.Time) (int64, error) {
	result := r.db.Model(&models.EvaluationRun{}).
		Where("status = ? AND updated_at < ?", models.StatusProcessing, before).
		Updates(map[string]interface{}{
			"status":     models.StatusQueued,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to requeue stale runs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *evaluationRepository) UpdateMetrics(id uuid.UUID, metrics datatypes.JSON) error {
	result := r.db.Model(&models.EvaluationRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.StatusCompleted,
			"metrics":    metrics,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update metrics: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *evaluationRepository) UpdateError(id uuid.UUID, errorMsg string) error {
	result := r.db.Model(&models.EvaluationRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.StatusFailed,
			"error_message": errorMsg,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update error: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *evaluationRepository) FindPendingRuns(limit int) ([]models.EvaluationRun, error) {
	var runs []models.EvaluationRun
	err := r.db.
		Where("status = ?", models.StatusQueued).
		Order("created_at ASC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find pending runs: %w", err)
	}
	return runs, nil
}
