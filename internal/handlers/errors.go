package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"cvmatcher/backend/internal/auth"
	"cvmatcher/backend/internal/llm"
	"cvmatcher/backend/internal/models"
	"cvmatcher/backend/internal/repositories"
	"cvmatcher/backend/internal/services"
)

const analysisFailedMessage = "could not analyze the CV against the job description"

func respondError(c *fiber.Ctx, status int, message string, details ...string) error {
	resp := models.ErrorResponse{Error: message, Code: status}
	if len(details) > 0 {
		resp.Details = details[0]
	}
	return c.Status(status).JSON(resp)
}

// respondServiceError maps service and LLM errors onto HTTP statuses.
// Unexpected errors are logged and reported as 500 without details.
func respondServiceError(c *fiber.Ctx, log *zap.Logger, err error) error {
	var ve *llm.ValidationError
	switch {
	case errors.As(err, &ve):
		return respondError(c, fiber.StatusBadRequest, ve.Error())
	case errors.Is(err, repositories.ErrNotFound), errors.Is(err, services.ErrObjectNotFound):
		return respondError(c, fiber.StatusNotFound, "Resource not found")
	case errors.Is(err, services.ErrCollectionExists):
		return respondError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, services.ErrNoText):
		return respondError(c, fiber.StatusBadRequest, "No text could be extracted from the file")
	case errors.Is(err, services.ErrUnsupportedFile):
		return respondError(c, fiber.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, services.ErrSearchDisabled):
		return respondError(c, fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, llm.ErrParse):
		return respondError(c, fiber.StatusBadGateway, analysisFailedMessage)
	case errors.Is(err, llm.ErrInvalidCredentials):
		return respondError(c, fiber.StatusUnauthorized, "The LLM provider rejected the configured credentials", err.Error())
	case errors.Is(err, llm.ErrModelNotFound):
		return respondError(c, fiber.StatusNotFound, "The configured model is not available", err.Error())
	case errors.Is(err, llm.ErrProviderUnavailable):
		return respondError(c, fiber.StatusBadGateway, "The LLM provider is unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return respondError(c, fiber.StatusGatewayTimeout, "The request took too long to complete")
	case errors.Is(err, auth.ErrWeakPassword):
		return respondError(c, fiber.StatusBadRequest, err.Error())
	}

	log.Error("Request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))
	return respondError(c, fiber.StatusInternalServerError, "Internal server error")
}

// readUpload returns the bytes of the multipart field, enforcing maxSize.
func readUpload(c *fiber.Ctx, field string, maxSize int64) (*multipart.FileHeader, []byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, nil, &llm.ValidationError{Field: field, Message: "file is required"}
	}
	if maxSize > 0 && fh.Size > maxSize {
		return nil, nil, &llm.ValidationError{Field: field, Message: "file too large"}
	}

	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}
	return fh, data, nil
}
