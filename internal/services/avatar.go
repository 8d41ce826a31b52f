package services

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"cvmatcher/backend/internal/llm"
	"cvmatcher/backend/internal/logger"
	"cvmatcher/backend/internal/repositories"
)

const (
	MaxAvatarSize    = 5 << 20
	DefaultAvatarURL = "/default_avatar/default.jpeg"
)

type AvatarService interface {
	// Upload stores an image as the user's avatar and returns its object key.
	Upload(ctx context.Context, userID uint, filename string, data []byte) (string, error)
	// Path returns the stored object key, or "" when the user has no avatar.
	Path(ctx context.Context, userID uint) (string, error)
	Image(ctx context.Context, userID uint) ([]byte, string, error)
}

type avatarService struct {
	users   repositories.UserRepository
	storage ObjectStorage
	log     *zap.Logger
}

func NewAvatarService(users repositories.UserRepository, storage ObjectStorage, log *zap.Logger) AvatarService {
	return &avatarService{users: users, storage: storage, log: logger.OrNop(log)}
}

func (s *avatarService) Upload(ctx context.Context, userID uint, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", &llm.ValidationError{Field: "avatar", Message: "file is empty"}
	}
	if len(data) > MaxAvatarSize {
		return "", &llm.ValidationError{Field: "avatar", Message: "file size must be less than 5MB"}
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", &llm.ValidationError{Field: "avatar", Message: "file must be an image"}
	}

	user, err := s.users.FindByID(userID)
	if err != nil {
		return "", err
	}

	key := ObjectKey("avatars", userID, filename)
	if err := s.storage.Put(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", fmt.Errorf("failed to store avatar: %w", err)
	}
	if err := s.users.UpdateAvatarPath(userID, key); err != nil {
		_ = s.storage.Delete(ctx, key)
		return "", err
	}

	if user.AvatarPath != "" {
		if err := s.storage.Delete(ctx, user.AvatarPath); err != nil {
			s.log.Warn("Failed to delete previous avatar", zap.Uint(logger.FieldUserID, userID), zap.Error(err))
		}
	}
	return key, nil
}

func (s *avatarService) Path(_ context.Context, userID uint) (string, error) {
	user, err := s.users.FindByID(userID)
	if err != nil {
		return "", err
	}
	return user.AvatarPath, nil
}

// Image returns repositories.ErrNotFound when no avatar was uploaded.
func (s *avatarService) Image(ctx context.Context, userID uint) ([]byte, string, error) {
	user, err := s.users.FindByID(userID)
	if err != nil {
		return nil, "", err
	}
	if user.AvatarPath == "" {
		return nil, "", repositories.ErrNotFound
	}

	data, err := s.storage.Get(ctx, user.AvatarPath)
	if err != nil {
		return nil, "", err
	}
	return data, http.DetectContentType(data), nil
}
