package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cvmatcher/backend/internal/auth"
	"cvmatcher/backend/internal/llm"
	"cvmatcher/backend/internal/logger"
	"cvmatcher/backend/internal/models"
	"cvmatcher/backend/internal/services"
)

type MatchHandler struct {
	configs     services.LLMConfigService
	matcher     *services.Matcher
	cvs         services.CVService
	extractor   services.TextExtractor
	anonymizer  services.Anonymizer
	maxFileSize int64
	log         *zap.Logger
}

// NewMatchHandler accepts a nil anonymizer when Presidio is not configured.
func NewMatchHandler(
	configs services.LLMConfigService,
	matcher *services.Matcher,
	cvs services.CVService,
	extractor services.TextExtractor,
	anonymizer services.Anonymizer,
	maxFileSize int64,
	log *zap.Logger,
) *MatchHandler {
	return &MatchHandler{
		configs:     configs,
		matcher:     matcher,
		cvs:         cvs,
		extractor:   extractor,
		anonymizer:  anonymizer,
		maxFileSize: maxFileSize,
		log:         logger.OrNop(log),
	}
}

func (h *MatchHandler) matchSingle(c *fiber.Ctx) (*models.MatchResult, error) {
	var req models.MatchRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, &llm.ValidationError{Message: "Invalid request payload"}
	}

	cfg, err := h.configs.Get(c.UserContext(), auth.GetClaims(c).UserID)
	if err != nil {
		return nil, err
	}
	return h.matcher.MatchOne(c.UserContext(), services.SettingsFromConfig(cfg), req.CVText, req.JDText)
}

// HandleSingle handles POST /match/single
func (h *MatchHandler) HandleSingle(c *fiber.Ctx) error {
	result, err := h.matchSingle(c)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	return c.JSON(models.MatchScoreResponse{Score: result.Score})
}

// HandleSingleDetailed handles POST /match/single_detailed
func (h *MatchHandler) HandleSingleDetailed(c *fiber.Ctx) error {
	result, err := h.matchSingle(c)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	return c.JSON(models.MatchDetailedResponse{Score: result.Score, Analysis: result})
}

// HandleSingleFile handles POST /match/single-file. Both documents go through
// the same extraction as /utils/extract-text.
func (h *MatchHandler) HandleSingleFile(c *fiber.Ctx) error {
	ctx := c.UserContext()

	texts := make([]string, 2)
	for i, field := range []string{"cv_file", "jd_file"} {
		fh, data, err := readUpload(c, field, h.maxFileSize)
		if err != nil {
			return respondServiceError(c, h.log, err)
		}
		text, err := h.extractor.Extract(ctx, fh.Filename, data)
		if err != nil {
			return respondServiceError(c, h.log, fmt.Errorf("%s: %w", field, err))
		}
		texts[i] = text
	}

	cfg, err := h.configs.Get(ctx, auth.GetClaims(c).UserID)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}

	result, err := h.matcher.MatchOne(ctx, services.SettingsFromConfig(cfg), texts[0], texts[1])
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	return c.JSON(models.MatchScoreResponse{Score: result.Score})
}

// HandleHR handles POST /match/hr
func (h *MatchHandler) HandleHR(c *fiber.Ctx) error {
	var req models.HRMatchRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request payload")
	}
	if strings.TrimSpace(req.JDText) == "" {
		return respondError(c, fiber.StatusBadRequest, "jd_text: must not be empty")
	}

	ctx := c.UserContext()
	userID := auth.GetClaims(c).UserID

	inputs, err := h.cvs.MatchInputs(ctx, userID, req.CVIDs)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}

	// read once; the whole batch uses this snapshot
	cfg, err := h.configs.Get(ctx, userID)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}

	batch, err := h.matcher.MatchMany(ctx, services.SettingsFromConfig(cfg), inputs, req.JDText)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}

	resp := models.HRMatchResponse{
		Results: make([]models.HRMatchItem, 0, len(batch.Results)),
		Failed:  len(batch.Failed),
	}
	for _, r := range batch.Results {
		resp.Results = append(resp.Results, models.HRMatchItem{
			CVID:           r.CVID,
			Filename:       r.Filename,
			Score:          r.Result.Score,
			DetailedScores: r.Result.DetailedScores,
			Analysis:       r.Result,
		})
	}

	if req.Anonymize && h.anonymizer != nil && len(resp.Results) > 0 {
		h.anonymize(ctx, inputs, req.JDText, resp.Results)
	}

	return c.JSON(resp)
}

// anonymize fills the anonymized texts in place. A Presidio failure leaves the
// affected fields empty.
func (h *MatchHandler) anonymize(ctx context.Context, inputs []services.MatchInput, jdText string, items []models.HRMatchItem) {
	texts := make(map[uint]string, len(inputs))
	for _, in := range inputs {
		texts[in.ID] = in.Text
	}

	var jdAnon string
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	g.Go(func() error {
		out, err := h.anonymizer.Anonymize(gctx, jdText)
		if err != nil {
			h.log.Warn("JD anonymization failed", zap.Error(err))
			return nil
		}
		jdAnon = out
		return nil
	})
	for i := range items {
		g.Go(func() error {
			out, err := h.anonymizer.Anonymize(gctx, texts[items[i].CVID])
			if err != nil {
				h.log.Warn("CV anonymization failed", zap.Uint("cv_id", items[i].CVID), zap.Error(err))
				return nil
			}
			items[i].AnonymizedCVText = out
			return nil
		})
	}
	_ = g.Wait()

	for i := range items {
		items[i].AnonymizedJDText = jdAnon
	}
}
