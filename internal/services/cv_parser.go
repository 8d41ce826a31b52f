package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"cvmatcher/backend/internal/llm"
	"cvmatcher/backend/internal/logger"
	"cvmatcher/backend/internal/repositories"
)

type CVParserService interface {
	// Parse extracts structured fields from the stored CV text with the
	// caller's model and saves them as the CV's parsed metadata.
	Parse(ctx context.Context, s llm.Settings, ownerID, cvID uint) (datatypes.JSON, error)
}

type cvParserService struct {
	cvRepo      repositories.CVRepository
	generator   llm.Generator
	prompts     *PromptBuilder
	callTimeout time.Duration
	log         *zap.Logger
}

func NewCVParserService(cvRepo repositories.CVRepository, generator llm.Generator, callTimeout time.Duration, log *zap.Logger) CVParserService {
	return &cvParserService{
		cvRepo:      cvRepo,
		generator:   generator,
		prompts:     NewPromptBuilder(),
		callTimeout: callTimeout,
		log:         logger.OrNop(log),
	}
}

func (p *cvParserService) Parse(ctx context.Context, s llm.Settings, ownerID, cvID uint) (datatypes.JSON, error) {
	cv, err := p.cvRepo.FindByID(ownerID, cvID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cv.ContentText) == "" {
		return nil, &llm.ValidationError{Field: "cv", Message: "CV has no extracted text"}
	}

	callCtx := ctx
	if p.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.callTimeout)
		defer cancel()
	}

	raw, err := p.generator.Generate(callCtx, s, p.prompts.BuildCVExtractionPrompt(cv.ContentText))
	if err != nil {
		return nil, err
	}

	data, err := decodeJSONObject(raw)
	if err != nil {
		p.log.Warn("Unparseable CV extraction reply",
			append(logger.CommonFields(string(s.Provider), s.Model),
				zap.String("reply", logger.TruncateForLog(raw, 300)))...)
		return nil, err
	}

	buf, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrParse, err)
	}
	if !gjson.GetBytes(buf, "full_name").Exists() && !gjson.GetBytes(buf, "skills").Exists() {
		return nil, fmt.Errorf("%w: reply has neither full_name nor skills", llm.ErrParse)
	}

	metadata := datatypes.JSON(buf)
	if err := p.cvRepo.UpdateParsedMetadata(ownerID, cvID, metadata); err != nil {
		return nil, err
	}

	p.log.Info("CV parsed",
		append(logger.CommonFields(string(s.Provider), s.Model),
			zap.Uint("cv_id", cvID),
			zap.Int("skills", int(gjson.GetBytes(buf, "skills.#").Int())))...)
	return metadata, nil
}
