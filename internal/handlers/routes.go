package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"cvmatcher/backend/internal/auth"
	"cvmatcher/backend/internal/models"
)

type Routes struct {
	JWT        *auth.JWTService
	Auth       *AuthHandler
	LLM        *LLMHandler
	Match      *MatchHandler
	CV         *CVHandler
	Utils      *UtilsHandler
	Evaluation *EvaluationHandler
}

var endpoints = []string{
	"POST /api/v1/auth/register",
	"POST /api/v1/auth/login",
	"GET /api/v1/auth/me",
	"POST /api/v1/auth/change-password",
	"POST /api/v1/auth/avatar",
	"GET /api/v1/auth/avatar/:user_id",
	"GET /api/v1/auth/avatar/:user_id/file",
	"GET /api/v1/llm/config",
	"POST /api/v1/llm/config",
	"POST /api/v1/llm/validate-api-key",
	"POST /api/v1/llm/parse/:cv_id",
	"POST /api/v1/match/single",
	"POST /api/v1/match/single_detailed",
	"POST /api/v1/match/single-file",
	"POST /api/v1/match/hr",
	"POST /api/v1/utils/extract-text",
	"POST /api/v1/cv/upload",
	"GET /api/v1/cv/list",
	"POST /api/v1/cv/search",
	"GET /api/v1/cv/:id/content",
	"GET /api/v1/cv/:id/file",
	"DELETE /api/v1/cv/:id",
	"PUT /api/v1/cv/:id/collection/:cid",
	"DELETE /api/v1/cv/:id/collection",
	"POST /api/v1/cv/collections",
	"GET /api/v1/cv/collections",
	"GET /api/v1/cv/collections/:id",
	"PUT /api/v1/cv/collections/:id",
	"DELETE /api/v1/cv/collections/:id",
	"POST /api/v1/evaluation/parse-file",
	"POST /api/v1/evaluation/analyze-labels",
	"POST /api/v1/evaluation/start-evaluation",
	"GET /api/v1/evaluation/runs/:id",
}

// Register mounts every route under /api/v1. Everything except health,
// register, login and avatar reads requires a bearer token.
func (r *Routes) Register(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":   "CV Matcher API",
			"version":   "1.0.0",
			"endpoints": endpoints,
		})
	})

	api := app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	api.Post("/auth/register", r.Auth.HandleRegister)
	api.Post("/auth/login", r.Auth.HandleLogin)
	api.Get("/auth/avatar/:user_id", r.Auth.HandleGetAvatar)
	api.Get("/auth/avatar/:user_id/file", r.Auth.HandleAvatarFile)

	protected := api.Group("", auth.Middleware(r.JWT))
	protected.Get("/auth/me", r.Auth.HandleMe)
	protected.Post("/auth/change-password", r.Auth.HandleChangePassword)
	protected.Post("/auth/avatar", r.Auth.HandleUploadAvatar)

	protected.Get("/llm/config", r.LLM.HandleGetConfig)
	protected.Post("/llm/config", r.LLM.HandleSetConfig)
	protected.Post("/llm/validate-api-key", r.LLM.HandleValidateAPIKey)

	protected.Post("/match/single", r.Match.HandleSingle)
	protected.Post("/match/single_detailed", r.Match.HandleSingleDetailed)
	protected.Post("/match/single-file", r.Match.HandleSingleFile)

	protected.Post("/utils/extract-text", r.Utils.HandleExtractText)

	hr := protected.Group("", auth.RequireRole(models.RoleHR))
	hr.Post("/llm/parse/:cv_id", r.LLM.HandleParseCV)
	hr.Post("/match/hr", r.Match.HandleHR)

	hr.Post("/cv/collections", r.CV.HandleCreateCollection)
	hr.Get("/cv/collections", r.CV.HandleListCollections)
	hr.Get("/cv/collections/:id", r.CV.HandleGetCollection)
	hr.Put("/cv/collections/:id", r.CV.HandleUpdateCollection)
	hr.Delete("/cv/collections/:id", r.CV.HandleDeleteCollection)

	hr.Post("/cv/upload", r.CV.HandleUpload)
	hr.Get("/cv/list", r.CV.HandleList)
	hr.Post("/cv/search", r.CV.HandleSearch)
	hr.Get("/cv/:id/content", r.CV.HandleContent)
	hr.Get("/cv/:id/file", r.CV.HandleFile)
	hr.Delete("/cv/:id", r.CV.HandleDelete)
	hr.Put("/cv/:id/collection/:cid", r.CV.HandleAssignCollection)
	hr.Delete("/cv/:id/collection", r.CV.HandleRemoveCollection)

	hr.Post("/evaluation/parse-file", r.Evaluation.HandleParseFile)
	hr.Post("/evaluation/analyze-labels", r.Evaluation.HandleAnalyzeLabels)
	hr.Post("/evaluation/start-evaluation", r.Evaluation.HandleStartEvaluation)
	hr.Get("/evaluation/runs/:id", r.Evaluation.HandleGetRun)
}

// ErrorHandler renders errors that escape handlers in the ErrorResponse shape.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(models.ErrorResponse{Error: err.Error(), Code: code})
}
