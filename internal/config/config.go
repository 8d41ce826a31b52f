package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Storage  StorageConfig
	LLM      LLMConfig
	Tika     TikaConfig
	Presidio PresidioConfig
	Search   SearchConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Port        string
	Env         string
	CORSOrigins string
	LogJSON     bool
	LogDebug    bool
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type AuthConfig struct {
	JWTSecret      string
	JWTExpiryHours int
}

type StorageConfig struct {
	Backend     string
	UploadPath  string
	GCSBucket   string
	MaxFileSize int64
}

type LLMConfig struct {
	CallTimeout       time.Duration
	BatchTimeout      time.Duration
	ValidateTimeout   time.Duration
	MatchConcurrency  int
	MatchRatePerSec   float64
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	OpenAIBaseURL     string
	GeminiBaseURL     string
}

type TikaConfig struct {
	URL string
}

type PresidioConfig struct {
	AnalyzerURL   string
	AnonymizerURL string
	Language      string
}

type SearchConfig struct {
	GeminiAPIKey     string
	EmbeddingModel   string
	EmbeddingDim     int
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
}

type WorkerConfig struct {
	Concurrency  int
	PollInterval time.Duration
}

// ConfigError reports an invalid or missing setting.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s - %s", e.Field, e.Message)
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using environment and default values.")
	}

	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8000"),
			Env:         getEnv("ENV", "development"),
			CORSOrigins: getEnv("CORS_ORIGINS", "*"),
			LogJSON:     getEnvAsBool("LOG_JSON", false),
			LogDebug:    getEnvAsBool("LOG_DEBUG", false),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "cv_matcher"),
		},
		Auth: AuthConfig{
			JWTSecret:      getEnv("JWT_SECRET", ""),
			JWTExpiryHours: getEnvAsInt("JWT_EXPIRY_HOURS", 12),
		},
		Storage: StorageConfig{
			Backend:     strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
			UploadPath:  getEnv("UPLOAD_PATH", "./uploads"),
			GCSBucket:   getEnv("GCS_BUCKET", "cv-storage"),
			MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 10485760),
		},
		LLM: LLMConfig{
			CallTimeout:       getEnvAsDuration("LLM_CALL_TIMEOUT", "60s"),
			BatchTimeout:      getEnvAsDuration("MATCH_BATCH_TIMEOUT", "10m"),
			ValidateTimeout:   getEnvAsDuration("LLM_VALIDATE_TIMEOUT", "10s"),
			MatchConcurrency:  getEnvAsInt("MATCH_CONCURRENCY", 4),
			MatchRatePerSec:   getEnvAsFloat("MATCH_RATE_PER_SECOND", 0),
			RetryMaxAttempts:  getEnvAsInt("RETRY_MAX_ATTEMPTS", 2),
			RetryInitialDelay: getEnvAsDuration("RETRY_INITIAL_DELAY", "1s"),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
			GeminiBaseURL:     getEnv("GEMINI_BASE_URL", ""),
		},
		Tika: TikaConfig{
			URL: getEnv("TIKA_URL", "http://localhost:9998/tika"),
		},
		Presidio: PresidioConfig{
			AnalyzerURL:   getEnv("PRESIDIO_ANALYZER_URL", ""),
			AnonymizerURL: getEnv("PRESIDIO_ANONYMIZER_URL", ""),
			Language:      getEnv("PRESIDIO_LANGUAGE", "en"),
		},
		Search: SearchConfig{
			GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
			EmbeddingModel:   getEnv("EMBEDDING_MODEL", "text-embedding-004"),
			EmbeddingDim:     getEnvAsInt("EMBEDDING_DIM", 768),
			QdrantURL:        getEnv("QDRANT_URL", ""),
			QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
			QdrantCollection: getEnv("QDRANT_COLLECTION", "cv_matcher_cvs"),
		},
		Worker: WorkerConfig{
			Concurrency:  getEnvAsInt("WORKER_CONCURRENCY", 2),
			PollInterval: getEnvAsDuration("WORKER_POLL_INTERVAL", "10s"),
		},
	}
}

// Validate checks settings the service cannot start without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		if c.Server.Env == "production" {
			return &ConfigError{Field: "JWT_SECRET", Message: "required in production"}
		}
		c.Auth.JWTSecret = "dev-secret-change-me"
	}

	switch c.Storage.Backend {
	case "local", "gcs":
	default:
		return &ConfigError{Field: "STORAGE_BACKEND", Message: fmt.Sprintf("unknown backend %q (expected local or gcs)", c.Storage.Backend)}
	}

	if c.LLM.MatchConcurrency <= 0 {
		return &ConfigError{Field: "MATCH_CONCURRENCY", Message: "must be positive"}
	}
	return nil
}

// SearchEnabled reports whether CV embeddings and vector search are configured.
func (c *Config) SearchEnabled() bool {
	return c.Search.GeminiAPIKey != "" && c.Search.QdrantURL != ""
}

// PresidioEnabled reports whether anonymization endpoints are configured.
func (c *Config) PresidioEnabled() bool {
	return c.Presidio.AnalyzerURL != "" && c.Presidio.AnonymizerURL != ""
}

func (c *Config) GetDatabaseDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
