package repositories

import (
	"fmt"

	"gorm.io/gorm"

	"cvmatcher/backend/internal/models"
)

type CollectionRepository interface {
	Create(collection *models.Collection) error
	FindByID(ownerID, id uint) (*models.Collection, error)
	ListByOwner(ownerID uint) ([]models.Collection, error)
	Update(collection *models.Collection) error
	// Delete removes the collection together with every CV assigned to it and
	// returns the deleted CVs so their blobs can be cleaned up.
	Delete(ownerID, id uint) ([]models.CV, error)
}

type collectionRepository struct {
	db *gorm.DB
}

func NewCollectionRepository(db *gorm.DB) CollectionRepository {
	return &collectionRepository{db: db}
}

func (r *collectionRepository) Create(collection *models.Collection) error {
	if err := r.db.Create(collection).Error; err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (r *collectionRepository) FindByID(ownerID, id uint) (*models.Collection, error) {
	var collection models.Collection
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&collection).Error; err != nil {
		return nil, notFoundOr(err, fmt.Errorf("failed to find collection: %w", err))
	}

	if err := r.db.Model(&models.CV{}).Where("collection_id = ?", id).Count(&collection.CVCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count collection cvs: %w", err)
	}
	return &collection, nil
}

func (r *collectionRepository) ListByOwner(ownerID uint) ([]models.Collection, error) {
	var collections []models.Collection
	if err := r.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&collections).Error; err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	type countRow struct {
		CollectionID uint
		Total        int64
	}
	var counts []countRow
	err := r.db.Model(&models.CV{}).
		Select("collection_id, COUNT(*) AS total").
		Where("owner_id = ? AND collection_id IS NOT NULL", ownerID).
		Group("collection_id").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count collection cvs: %w", err)
	}

	byID := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byID[c.CollectionID] = c.Total
	}
	for i := range collections {
		collections[i].CVCount = byID[collections[i].ID]
	}
	return collections, nil
}

func (r *collectionRepository) Update(collection *models.Collection) error {
	result := r.db.Model(&models.Collection{}).
		Where("id = ? AND owner_id = ?", collection.ID, collection.OwnerID).
		Updates(map[string]interface{}{
			"name":        collection.Name,
			"description": collection.Description,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update collection: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *collectionRepository) Delete(ownerID, id uint) ([]models.CV, error) {
	var deleted []models.CV

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var collection models.Collection
		if err := tx.Where("id = ? AND owner_id = ?", id, ownerID).First(&collection).Error; err != nil {
			return notFoundOr(err, fmt.Errorf("failed to find collection: %w", err))
		}

		if err := tx.Where("collection_id = ?", id).Find(&deleted).Error; err != nil {
			return fmt.Errorf("failed to load collection cvs: %w", err)
		}

		if err := tx.Where("collection_id = ?", id).Delete(&models.CV{}).Error; err != nil {
			return fmt.Errorf("failed to delete collection cvs: %w", err)
		}

		if err := tx.Delete(&collection).Error; err != nil {
			return fmt.Errorf("failed to delete collection: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
