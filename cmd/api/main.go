package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"cvmatcher/backend/internal/auth"
	"cvmatcher/backend/internal/config"
	"cvmatcher/backend/internal/handlers"
	"cvmatcher/backend/internal/llm"
	"cvmatcher/backend/internal/logger"
	"cvmatcher/backend/internal/repositories"
	"cvmatcher/backend/internal/services"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.LogJSON, cfg.Server.LogDebug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Info("config loaded", zap.String("env", cfg.Server.Env))

	db, err := config.InitDatabase(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := config.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	userRepo := repositories.NewUserRepository(db)
	llmConfigRepo := repositories.NewLLMConfigRepository(db)
	cvRepo := repositories.NewCVRepository(db)
	collectionRepo := repositories.NewCollectionRepository(db)
	evalRepo := repositories.NewEvaluationRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storage, closeStorage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStorage(); err != nil {
			log.Warn("failed to close object storage", zap.Error(err))
		}
	}()
	log.Info("object storage ready", zap.String("backend", cfg.Storage.Backend))

	httpClient := llm.NewHTTPClient(cfg.LLM.CallTimeout)
	registry := llm.NewRegistry(llm.Options{
		OpenAIBaseURL: cfg.LLM.OpenAIBaseURL,
		GeminiBaseURL: cfg.LLM.GeminiBaseURL,
		HTTPClient:    httpClient,
		Retry: llm.RetryConfig{
			MaxRetries:  cfg.LLM.RetryMaxAttempts,
			InitialWait: cfg.LLM.RetryInitialDelay,
			MaxWait:     llm.DefaultRetryConfig.MaxWait,
			Multiplier:  llm.DefaultRetryConfig.Multiplier,
		},
	}, log)
	validator := llm.NewValidator(registry, cfg.LLM.ValidateTimeout, log)

	matcher := services.NewMatcher(registry, services.MatcherOptions{
		CallTimeout:   cfg.LLM.CallTimeout,
		Concurrency:   cfg.LLM.MatchConcurrency,
		RatePerSecond: cfg.LLM.MatchRatePerSec,
		BatchTimeout:  cfg.LLM.BatchTimeout,
	}, log)
	configService := services.NewLLMConfigService(llmConfigRepo)

	sideClient := llm.NewHTTPClient(60 * time.Second)
	extractor := services.NewTextExtractor(cfg.Tika.URL, sideClient, log)

	var anonymizer services.Anonymizer
	if cfg.PresidioEnabled() {
		anonymizer = services.NewPresidioAnonymizer(cfg.Presidio.AnalyzerURL, cfg.Presidio.AnonymizerURL, cfg.Presidio.Language, sideClient)
		log.Info("anonymization enabled")
	}

	search, err := newSearchService(ctx, cfg, sideClient, log)
	if err != nil {
		return err
	}

	cvService := services.NewCVService(cvRepo, collectionRepo, storage, extractor, search, log)
	parser := services.NewCVParserService(cvRepo, registry, cfg.LLM.CallTimeout, log)

	runner := services.NewEvaluationRunner(evalRepo, configService, storage, matcher, log)
	worker := services.NewWorker(evalRepo, runner, cfg.Worker.Concurrency, cfg.Worker.PollInterval, log)
	evaluationService := services.NewEvaluationService(evalRepo, storage, worker, log)

	worker.Start(ctx)
	log.Info("evaluation worker started", zap.Int("concurrency", cfg.Worker.Concurrency))

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiryHours)
	maxSize := cfg.Storage.MaxFileSize

	routes := &handlers.Routes{
		JWT:        jwtService,
		Auth:       handlers.NewAuthHandler(userRepo, jwtService, services.NewAvatarService(userRepo, storage, log), log),
		LLM:        handlers.NewLLMHandler(configService, validator, parser, log),
		Match:      handlers.NewMatchHandler(configService, matcher, cvService, extractor, anonymizer, maxSize, log),
		CV:         handlers.NewCVHandler(cvService, search, maxSize, log),
		Utils:      handlers.NewUtilsHandler(extractor, maxSize, log),
		Evaluation: handlers.NewEvaluationHandler(evaluationService, maxSize, log),
	}

	app := fiber.New(fiber.Config{
		AppName:      "CV Matcher API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		BodyLimit:    int(maxSize) + 1<<20,
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	routes.Register(app)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("shutting down server")
		cancel()
		worker.Stop()
		if err := app.Shutdown(); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Info("server starting", zap.String("addr", addr))

	return app.Listen(addr)
}

func newObjectStorage(ctx context.Context, cfg *config.Config) (services.ObjectStorage, func() error, error) {
	if cfg.Storage.Backend == "gcs" {
		storage, closeFn, err := services.NewGCSStorage(ctx, cfg.Storage.GCSBucket)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize cloud storage: %w", err)
		}
		return storage, closeFn, nil
	}

	storage, err := services.NewLocalStorage(cfg.Storage.UploadPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize upload directory: %w", err)
	}
	return storage, func() error { return nil }, nil
}

// newSearchService wires Gemini embeddings and Qdrant when both are
// configured. Otherwise the returned service reports itself disabled.
func newSearchService(ctx context.Context, cfg *config.Config, httpClient *http.Client, log *zap.Logger) (services.SearchService, error) {
	if !cfg.SearchEnabled() {
		log.Info("semantic search disabled")
		return services.NewSearchService(nil, nil, log), nil
	}

	embedder, err := services.NewGeminiEmbedder(ctx, cfg.Search.GeminiAPIKey, cfg.Search.EmbeddingModel, cfg.Search.EmbeddingDim, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	store, err := services.NewQdrantStore(cfg.Search.QdrantURL, cfg.Search.QdrantAPIKey, cfg.Search.QdrantCollection, cfg.Search.EmbeddingDim, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize qdrant: %w", err)
	}
	if err := store.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize qdrant collection: %w", err)
	}

	log.Info("semantic search enabled", zap.String("collection", cfg.Search.QdrantCollection))
	return services.NewSearchService(embedder, store, log), nil
}
