package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cvmatcher/backend/internal/logger"
	"cvmatcher/backend/internal/models"
)

// ErrSearchDisabled is returned when no embedder or vector store is configured.
var ErrSearchDisabled = errors.New("semantic search is not configured")

const (
	searchChunkSize    = 1200
	searchChunkOverlap = 150
	defaultSearchTopK  = 5
	maxSearchTopK      = 50
)

type SearchService interface {
	Enabled() bool
	IndexCV(ctx context.Context, cv *models.CV) error
	RemoveCV(ctx context.Context, cvID uint) error
	Search(ctx context.Context, ownerID uint, query string, topK int) ([]models.CVSearchHit, error)
}

type searchService struct {
	embedder Embedder
	store    VectorStore
	chunker  TextChunker
	log      *zap.Logger
}

// NewSearchService returns a disabled service when embedder or store is nil.
func NewSearchService(embedder Embedder, store VectorStore, log *zap.Logger) SearchService {
	return &searchService{
		embedder: embedder,
		store:    store,
		chunker:  NewTextChunker(),
		log:      logger.OrNop(log),
	}
}

func (s *searchService) Enabled() bool {
	return s.embedder != nil && s.store != nil
}

func (s *searchService) IndexCV(ctx context.Context, cv *models.CV) error {
	if !s.Enabled() {
		return ErrSearchDisabled
	}

	texts := s.chunker.ChunkText(cv.ContentText, searchChunkSize, searchChunkOverlap)
	if len(texts) == 0 {
		return nil
	}

	chunks := make([]CVChunk, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			chunks[i] = CVChunk{CVID: cv.ID, OwnerID: cv.OwnerID, Index: i, Text: text, Vector: vec}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := s.store.UpsertChunks(ctx, chunks); err != nil {
		return err
	}

	s.log.Debug("CV indexed", zap.Uint("cv_id", cv.ID), zap.Int("chunks", len(chunks)))
	return nil
}

func (s *searchService) RemoveCV(ctx context.Context, cvID uint) error {
	if !s.Enabled() {
		return nil
	}
	return s.store.DeleteCV(ctx, cvID)
}

// Search returns the caller's CVs ranked by their best matching chunk.
func (s *searchService) Search(ctx context.Context, ownerID uint, query string, topK int) ([]models.CVSearchHit, error) {
	if !s.Enabled() {
		return nil, ErrSearchDisabled
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if topK <= 0 {
		topK = defaultSearchTopK
	}
	if topK > maxSearchTopK {
		topK = maxSearchTopK
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	// several chunks of one CV can match; over-fetch before collapsing
	hits, err := s.store.Search(ctx, ownerID, vec, topK*4)
	if err != nil {
		return nil, err
	}

	best := map[uint]models.CVSearchHit{}
	for _, h := range hits {
		if cur, ok := best[h.CVID]; ok && cur.Score >= h.Score {
			continue
		}
		best[h.CVID] = models.CVSearchHit{CVID: h.CVID, Score: h.Score, Snippet: snippet(h.Text, 240)}
	}

	out := make([]models.CVSearchHit, 0, len(best))
	for _, h := range best {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].CVID < out[j].CVID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func snippet(text string, limit int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit]) + "..."
}
