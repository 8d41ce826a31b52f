package repositories

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"cvmatcher/backend/internal/models"
)

type UserRepository interface {
	Create(user *models.User) error
	FindByID(id uint) (*models.User, error)
	FindByEmail(email string) (*models.User, error)
	UpdatePassword(id uint, passwordHash string) error
	UpdateAvatarPath(id uint, path string) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *models.User) error {
	user.Email = normalizeEmail(user.Email)
	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) FindByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFoundOr(err, fmt.Errorf("failed to find user: %w", err))
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return nil, notFoundOr(err, fmt.Errorf("failed to find user: %w", err))
	}
	return &user, nil
}

func (r *userRepository) UpdatePassword(id uint, passwordHash string) error {
	result := r.db.Model(&models.User{}).Where("id = ?", id).Update("password_hash", passwordHash)
	if result.Error != nil {
		return fmt.Errorf("failed to update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) UpdateAvatarPath(id uint, path string) error {
	result := r.db.Model(&models.User{}).Where("id = ?", id).Update("avatar_path", path)
	if result.Error != nil {
		return fmt.Errorf("failed to update avatar: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
