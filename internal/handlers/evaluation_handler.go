package handlers

import (
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cvmatcher/backend/internal/auth"
	"cvmatcher/backend/internal/llm"
	"cvmatcher/backend/internal/logger"
	"cvmatcher/backend/internal/models"
	"cvmatcher/backend/internal/services"
)

type EvaluationHandler struct {
	evals       services.EvaluationService
	maxFileSize int64
	log         *zap.Logger
}

func NewEvaluationHandler(evals services.EvaluationService, maxFileSize int64, log *zap.Logger) *EvaluationHandler {
	return &EvaluationHandler{evals: evals, maxFileSize: maxFileSize, log: logger.OrNop(log)}
}

func (h *EvaluationHandler) readCSV(c *fiber.Ctx) (string, []byte, error) {
	fh, data, err := readUpload(c, "file", h.maxFileSize)
	if err != nil {
		return "", nil, err
	}
	if strings.ToLower(filepath.Ext(fh.Filename)) != ".csv" {
		return "", nil, &llm.ValidationError{Field: "file", Message: "only CSV files are supported"}
	}
	return fh.Filename, data, nil
}

// HandleParseFile handles POST /evaluation/parse-file
func (h *EvaluationHandler) HandleParseFile(c *fiber.Ctx) error {
	name, data, err := h.readCSV(c)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	ds, err := services.ParseDataset(data)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	return c.JSON(ds.Summary(name, int64(len(data))))
}

// HandleAnalyzeLabels handles POST /evaluation/analyze-labels
func (h *EvaluationHandler) HandleAnalyzeLabels(c *fiber.Ctx) error {
	column := strings.TrimSpace(c.FormValue("label_column"))
	if column == "" {
		return respondError(c, fiber.StatusBadRequest, "label_column is required")
	}

	_, data, err := h.readCSV(c)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	ds, err := services.ParseDataset(data)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}

	summary, err := ds.LabelCounts(column)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	return c.JSON(summary)
}

// HandleStartEvaluation handles POST /evaluation/start-evaluation
func (h *EvaluationHandler) HandleStartEvaluation(c *fiber.Ctx) error {
	params := services.StartEvaluationParams{
		CVColumn:    strings.TrimSpace(c.FormValue("cv_column")),
		JDColumn:    strings.TrimSpace(c.FormValue("jd_column")),
		LabelColumn: strings.TrimSpace(c.FormValue("label_column")),
	}
	if params.CVColumn == "" || params.JDColumn == "" || params.LabelColumn == "" {
		return respondError(c, fiber.StatusBadRequest, "cv_column, jd_column and label_column are required")
	}
	if err := json.Unmarshal([]byte(c.FormValue("label_rules")), &params.LabelRules); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid label rules JSON format")
	}
	if raw := strings.TrimSpace(c.FormValue("threshold")); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return respondError(c, fiber.StatusBadRequest, "threshold must be a number")
		}
		params.Threshold = &t
	}

	name, data, err := h.readCSV(c)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	params.FileName = name

	run, err := h.evals.Start(c.UserContext(), auth.GetClaims(c).UserID, data, params)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(models.StartEvaluationResponse{
		ID:     run.ID.String(),
		Status: string(run.Status),
	})
}

// HandleGetRun handles GET /evaluation/runs/:id
func (h *EvaluationHandler) HandleGetRun(c *fiber.Ctx) error {
	runID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid evaluation run ID format")
	}

	run, err := h.evals.Get(c.UserContext(), auth.GetClaims(c).UserID, runID)
	if err != nil {
		return respondServiceError(c, h.log, err)
	}
	return c.JSON(run)
}
