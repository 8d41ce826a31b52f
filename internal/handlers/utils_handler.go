package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"cvmatcher/backend/internal/logger"
	"cvmatcher/backend/internal/services"
)

type UtilsHandler struct {
	extractor   services.TextExtractor
	maxFileSize int64
	log         *zap.Logger
}

func NewUtilsHandler(extractor services.TextExtractor, maxFileSize int64, log *zap.Logger) *UtilsHandler {
	return &UtilsHandler{extractor: extractor, maxFileSize: maxFileSize, log: logger.OrNop(log)}
}

// HandleExtractText handles POST /utils/extract-text
func (h *UtilsHandler) HandleExtractText(c *fiber.Ctx) error {
	fh, data, err := readUpload(c, "file", h.maxFileSize)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}

	text, err := h.extractor.Extract(c.UserContext(), fh.Filename, data)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"text": text})
}
