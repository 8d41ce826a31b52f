package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"cvmatcher/backend/internal/auth"
	"cvmatcher/backend/internal/llm"
	"cvmatcher/backend/internal/logger"
	"cvmatcher/backend/internal/models"
	"cvmatcher/backend/internal/services"
)

// KeyValidator probes a provider with candidate credentials.
type KeyValidator interface {
	Validate(ctx context.Context, req llm.ValidateRequest) llm.ValidationResult
}

type LLMHandler struct {
	configs   services.LLMConfigService
	validator KeyValidator
	parser    services.CVParserService
	log       *zap.Logger
}

func NewLLMHandler(configs services.LLMConfigService, validator KeyValidator, parser services.CVParserService, log *zap.Logger) *LLMHandler {
	return &LLMHandler{configs: configs, validator: validator, parser: parser, log: logger.OrNop(log)}
}

// HandleGetConfig handles GET /llm/config
func (h *LLMHandler) HandleGetConfig(c *fiber.Ctx) error {
	cfg, err := h.configs.Get(c.UserContext(), auth.GetClaims(c).UserID)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	return c.JSON(cfg)
}

// HandleSetConfig handles POST /llm/config
func (h *LLMHandler) HandleSetConfig(c *fiber.Ctx) error {
	var req models.LLMConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request payload")
	}

	userID := auth.GetClaims(c).UserID
	cfg, err := h.configs.Set(c.UserContext(), userID, req)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}

	h.log.Info("LLM configuration saved",
		append(logger.CommonFields(cfg.Provider, cfg.ModelName), zap.Uint(logger.FieldUserID, userID))...)
	return c.JSON(cfg)
}

// HandleValidateAPIKey handles POST /llm/validate-api-key. It always answers
// 200; the outcome is in the body.
func (h *LLMHandler) HandleValidateAPIKey(c *fiber.Ctx) error {
	var req llm.ValidateRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request payload")
	}
	return c.JSON(h.validator.Validate(c.UserContext(), req))
}

// HandleParseCV handles POST /llm/parse/:cv_id
func (h *LLMHandler) HandleParseCV(c *fiber.Ctx) error {
	cvID, err := strconv.ParseUint(c.Params("cv_id"), 10, 64)
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid CV id")
	}

	userID := auth.GetClaims(c).UserID
	cfg, err := h.configs.Get(c.UserContext(), userID)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}

	metadata, err := h.parser.Parse(c.UserContext(), services.SettingsFromConfig(cfg), userID, uint(cvID))
	if err != nil {
		return respondServiceError(c, h.log, err)
	}

	return c.JSON(fiber.Map{
		"cv_id":           cvID,
		"parsed_metadata": metadata,
	})
}
