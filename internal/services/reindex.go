package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"cvmatcher/backend/internal/logger"
	"cvmatcher/backend/internal/repositories"
)

const defaultReindexBatch = 100

type ReindexStats struct {
	Indexed int
	Skipped int
	Failed  int
}

// ReindexCVs rebuilds the vector index of every stored CV from its extracted
// text. Stale chunks are dropped before each CV is indexed again. One CV
// failing does not stop the run.
func ReindexCVs(ctx context.Context, cvRepo repositories.CVRepository, search SearchService, batchSize int, log *zap.Logger) (ReindexStats, error) {
	log = logger.OrNop(log)
	var stats ReindexStats

	if !search.Enabled() {
		return stats, ErrSearchDisabled
	}
	if batchSize <= 0 {
		batchSize = defaultReindexBatch
	}

	var after uint
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		batch, err := cvRepo.ListAfter(after, batchSize)
		if err != nil {
			return stats, fmt.Errorf("failed to list cvs: %w", err)
		}
		if len(batch) == 0 {
			return stats, nil
		}

		for i := range batch {
			cv := &batch[i]
			after = cv.ID

			if strings.TrimSpace(cv.ContentText) == "" {
				stats.Skipped++
				continue
			}

			if err := search.RemoveCV(ctx, cv.ID); err != nil {
				log.Warn("Failed to drop stale chunks", zap.Uint("cv_id", cv.ID), zap.Error(err))
			}
			if err := search.IndexCV(ctx, cv); err != nil {
				stats.Failed++
				log.Warn("Failed to index CV", zap.Uint("cv_id", cv.ID), zap.Error(err))
				continue
			}
			stats.Indexed++
		}

		log.Info("Reindex progress",
			zap.Uint("last_cv_id", after),
			zap.Int("indexed", stats.Indexed),
			zap.Int("failed", stats.Failed))
	}
}
