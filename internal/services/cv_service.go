package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"cvmatcher/backend/internal/llm"
	"cvmatcher/backend/internal/logger"
	"cvmatcher/backend/internal/models"
	"cvmatcher/backend/internal/repositories"
)

// ErrCollectionExists is returned when the owner already has a collection with that name.
var ErrCollectionExists = errors.New("collection with this name already exists")

var allowedCVExtensions = map[string]bool{
	".pdf": true, ".txt": true, ".md": true, ".doc": true, ".docx": true, ".rtf": true, ".odt": true,
}

type CVService interface {
	Upload(ctx context.Context, ownerID uint, filename string, data []byte, collectionID *uint) (*models.CV, error)
	List(ctx context.Context, ownerID uint, collectionID *uint) ([]models.CV, error)
	Get(ctx context.Context, ownerID, id uint) (*models.CV, error)
	File(ctx context.Context, ownerID, id uint) ([]byte, string, error)
	AssignCollection(ctx context.Context, ownerID, id uint, collectionID *uint) (*models.CV, error)
	Delete(ctx context.Context, ownerID, id uint) error
	// MatchInputs loads the caller's CVs in the order of ids, skipping ids
	// that are unknown or owned by someone else.
	MatchInputs(ctx context.Context, ownerID uint, ids []uint) ([]MatchInput, error)

	CreateCollection(ctx context.Context, ownerID uint, req models.CollectionRequest) (*models.Collection, error)
	ListCollections(ctx context.Context, ownerID uint) ([]models.Collection, error)
	GetCollection(ctx context.Context, ownerID, id uint) (*models.Collection, error)
	UpdateCollection(ctx context.Context, ownerID, id uint, req models.CollectionRequest) (*models.Collection, error)
	DeleteCollection(ctx context.Context, ownerID, id uint) (int, error)
}

type cvService struct {
	cvRepo         repositories.CVRepository
	collectionRepo repositories.CollectionRepository
	storage        ObjectStorage
	extractor      TextExtractor
	search         SearchService
	log            *zap.Logger
}

func NewCVService(
	cvRepo repositories.CVRepository,
	collectionRepo repositories.CollectionRepository,
	storage ObjectStorage,
	extractor TextExtractor,
	search SearchService,
	log *zap.Logger,
) CVService {
	return &cvService{
		cvRepo:         cvRepo,
		collectionRepo: collectionRepo,
		storage:        storage,
		extractor:      extractor,
		search:         search,
		log:            logger.OrNop(log),
	}
}

func (s *cvService) Upload(ctx context.Context, ownerID uint, filename string, data []byte, collectionID *uint) (*models.CV, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedCVExtensions[ext] {
		return nil, &llm.ValidationError{Field: "file", Message: fmt.Sprintf("unsupported file extension %q", ext)}
	}
	if collectionID != nil {
		if _, err := s.collectionRepo.FindByID(ownerID, *collectionID); err != nil {
			return nil, err
		}
	}

	text, err := s.extractor.Extract(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	key := ObjectKey("cvs", ownerID, filename)
	if err := s.storage.Put(ctx, key, bytes.NewReader(data), contentTypeFor(filename)); err != nil {
		return nil, fmt.Errorf("failed to store CV file: %w", err)
	}

	cv := &models.CV{
		OwnerID:      ownerID,
		CollectionID: collectionID,
		Filename:     filename,
		ObjectKey:    key,
		ContentText:  text,
	}
	if err := s.cvRepo.Create(cv); err != nil {
		_ = s.storage.Delete(ctx, key)
		return nil, err
	}

	if s.search != nil && s.search.Enabled() {
		if err := s.search.IndexCV(ctx, cv); err != nil {
			s.log.Warn("CV indexing failed", zap.Uint("cv_id", cv.ID), zap.Error(err))
		}
	}

	s.log.Info("CV uploaded",
		zap.Uint(logger.FieldUserID, ownerID),
		zap.Uint("cv_id", cv.ID),
		zap.Int("text_length", len(text)))
	return cv, nil
}

func (s *cvService) List(ctx context.Context, ownerID uint, collectionID *uint) ([]models.CV, error) {
	return s.cvRepo.ListByOwner(ownerID, collectionID)
}

func (s *cvService) Get(ctx context.Context, ownerID, id uint) (*models.CV, error) {
	return s.cvRepo.FindByID(ownerID, id)
}

func (s *cvService) File(ctx context.Context, ownerID, id uint) ([]byte, string, error) {
	cv, err := s.cvRepo.FindByID(ownerID, id)
	if err != nil {
		return nil, "", err
	}
	data, err := s.storage.Get(ctx, cv.ObjectKey)
	if err != nil {
		return nil, "", err
	}
	return data, cv.Filename, nil
}

func (s *cvService) AssignCollection(ctx context.Context, ownerID, id uint, collectionID *uint) (*models.CV, error) {
	if collectionID != nil {
		if _, err := s.collectionRepo.FindByID(ownerID, *collectionID); err != nil {
			return nil, err
		}
	}
	if err := s.cvRepo.AssignCollection(ownerID, id, collectionID); err != nil {
		return nil, err
	}
	return s.cvRepo.FindByID(ownerID, id)
}

func (s *cvService) Delete(ctx context.Context, ownerID, id uint) error {
	cv, err := s.cvRepo.FindByID(ownerID, id)
	if err != nil {
		return err
	}
	if err := s.cvRepo.Delete(ownerID, id); err != nil {
		return err
	}
	s.cleanup(ctx, []models.CV{*cv})
	return nil
}

// cleanup removes blobs and vectors of deleted CVs. Failures only leave
// orphans behind, so they are logged and not returned.
func (s *cvService) cleanup(ctx context.Context, cvs []models.CV) {
	for _, cv := range cvs {
		if err := s.storage.Delete(ctx, cv.ObjectKey); err != nil {
			s.log.Warn("Failed to delete CV file", zap.Uint("cv_id", cv.ID), zap.Error(err))
		}
		if s.search != nil {
			if err := s.search.RemoveCV(ctx, cv.ID); err != nil {
				s.log.Warn("Failed to delete CV vectors", zap.Uint("cv_id", cv.ID), zap.Error(err))
			}
		}
	}
}

func (s *cvService) MatchInputs(ctx context.Context, ownerID uint, ids []uint) ([]MatchInput, error) {
	cvs, err := s.cvRepo.FindByIDs(ownerID, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]models.CV, len(cvs))
	for _, cv := range cvs {
		byID[cv.ID] = cv
	}

	inputs := make([]MatchInput, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		cv, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		inputs = append(inputs, MatchInput{ID: cv.ID, Filename: cv.Filename, Text: cv.ContentText})
	}
	return inputs, nil
}

func (s *cvService) CreateCollection(ctx context.Context, ownerID uint, req models.CollectionRequest) (*models.Collection, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &llm.ValidationError{Field: "name", Message: "must not be empty"}
	}
	if err := s.ensureUniqueName(ownerID, 0, name); err != nil {
		return nil, err
	}

	collection := &models.Collection{OwnerID: ownerID, Name: name, Description: strings.TrimSpace(req.Description)}
	if err := s.collectionRepo.Create(collection); err != nil {
		return nil, err
	}
	return collection, nil
}

func (s *cvService) ListCollections(ctx context.Context, ownerID uint) ([]models.Collection, error) {
	return s.collectionRepo.ListByOwner(ownerID)
}

func (s *cvService) GetCollection(ctx context.Context, ownerID, id uint) (*models.Collection, error) {
	return s.collectionRepo.FindByID(ownerID, id)
}

func (s *cvService) UpdateCollection(ctx context.Context, ownerID, id uint, req models.CollectionRequest) (*models.Collection, error) {
	collection, err := s.collectionRepo.FindByID(ownerID, id)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(req.Name); name != "" && name != collection.Name {
		if err := s.ensureUniqueName(ownerID, id, name); err != nil {
			return nil, err
		}
		collection.Name = name
	}
	collection.Description = strings.TrimSpace(req.Description)

	if err := s.collectionRepo.Update(collection); err != nil {
		return nil, err
	}
	return s.collectionRepo.FindByID(ownerID, id)
}

func (s *cvService) DeleteCollection(ctx context.Context, ownerID, id uint) (int, error) {
	deleted, err := s.collectionRepo.Delete(ownerID, id)
	if err != nil {
		return 0, err
	}
	s.cleanup(ctx, deleted)
	return len(deleted), nil
}

func (s *cvService) ensureUniqueName(ownerID, exceptID uint, name string) error {
	existing, err := s.collectionRepo.ListByOwner(ownerID)
	if err != nil {
		return err
	}
	for _, c := range existing {
		if c.ID != exceptID && strings.EqualFold(c.Name, name) {
			return ErrCollectionExists
		}
	}
	return nil
}
