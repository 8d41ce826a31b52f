package repositories

import (
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cvmatcher/backend/internal/models"
)

type CVRepository interface {
	Create(cv *models.CV) error
	FindByID(ownerID, id uint) (*models.CV, error)
	// FindByIDs returns the caller's CVs among ids; unknown or foreign ids are skipped.
	FindByIDs(ownerID uint, ids []uint) ([]models.CV, error)
	ListByOwner(ownerID uint, collectionID *uint) ([]models.CV, error)
	AssignCollection(ownerID, id uint, collectionID *uint) error
	UpdateParsedMetadata(ownerID, id uint, metadata datatypes.JSON) error
	Delete(ownerID, id uint) error
	// ListAfter pages through every CV regardless of owner, ordered by id.
	ListAfter(afterID uint, limit int) ([]models.CV, error)
}

type cvRepository struct {
	db *gorm.DB
}

func NewCVRepository(db *gorm.DB) CVRepository {
	return &cvRepository{db: db}
}

func (r *cvRepository) Create(cv *models.CV) error {
	if err := r.db.Create(cv).Error; err != nil {
		return fmt.Errorf("failed to create cv: %w", err)
	}
	return nil
}

func (r *cvRepository) FindByID(ownerID, id uint) (*models.CV, error) {
	var cv models.CV
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&cv).Error; err != nil {
		return nil, notFoundOr(err, fmt.Errorf("failed to find cv: %w", err))
	}
	return &cv, nil
}

func (r *cvRepository) FindByIDs(ownerID uint, ids []uint) ([]models.CV, error) {
	var cvs []models.CV
	if len(ids) == 0 {
		return cvs, nil
	}
	if err := r.db.Where("owner_id = ? AND id IN ?", ownerID, ids).Find(&cvs).Error; err != nil {
		return nil, fmt.Errorf("failed to find cvs: %w", err)
	}
	return cvs, nil
}

func (r *cvRepository) ListByOwner(ownerID uint, collectionID *uint) ([]models.CV, error) {
	var cvs []models.CV
	query := r.db.Where("owner_id = ?", ownerID)
	if collectionID != nil {
		query = query.Where("collection_id = ?", *collectionID)
	}
	if err := query.Order("created_at DESC").Order("id DESC").Find(&cvs).Error; err != nil {
		return nil, fmt.Errorf("failed to list cvs: %w", err)
	}
	return cvs, nil
}

func (r *cvRepository) AssignCollection(ownerID, id uint, collectionID *uint) error {
	result := r.db.Model(&models.CV{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Update("collection_id", collectionID)
	if result.Error != nil {
		return fmt.Errorf("failed to update cv collection: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *cvRepository) UpdateParsedMetadata(ownerID, id uint, metadata datatypes.JSON) error {
	result := r.db.Model(&models.CV{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Update("parsed_metadata", metadata)
	if result.Error != nil {
		return fmt.Errorf("failed to update parsed metadata: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *cvRepository) Delete(ownerID, id uint) error {
	result := r.db.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.CV{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete cv: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *cvRepository) ListAfter(afterID uint, limit int) ([]models.CV, error) {
	var cvs []models.CV
	if err := r.db.Where("id > ?", afterID).Order("id ASC").Limit(limit).Find(&cvs).Error; err != nil {
		return nil, fmt.Errorf("failed to page cvs: %w", err)
	}
	return cvs, nil
}
