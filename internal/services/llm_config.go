package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cvmatcher/backend/internal/llm"
	"cvmatcher/backend/internal/models"
	"cvmatcher/backend/internal/repositories"
)

type LLMConfigService interface {
	Get(ctx context.Context, userID uint) (*models.LLMConfig, error)
	Set(ctx context.Context, userID uint, req models.LLMConfigRequest) (*models.LLMConfig, error)
}

type llmConfigService struct {
	repo repositories.LLMConfigRepository
}

func NewLLMConfigService(repo repositories.LLMConfigRepository) LLMConfigService {
	return &llmConfigService{repo: repo}
}

// DefaultLLMConfig is what a user sees before saving anything. It is never persisted.
func DefaultLLMConfig(userID uint) *models.LLMConfig {
	return &models.LLMConfig{
		UserID:      userID,
		Provider:    string(llm.ProviderOpenAI),
		ModelName:   llm.ProviderOpenAI.DefaultModel(),
		Temperature: models.DefaultTemperature,
		TopP:        models.DefaultTopP,
		MaxTokens:   models.DefaultMaxTokens,
	}
}

func (s *llmConfigService) Get(ctx context.Context, userID uint) (*models.LLMConfig, error) {
	cfg, err := s.repo.FindByUserID(userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return DefaultLLMConfig(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *llmConfigService) Set(ctx context.Context, userID uint, req models.LLMConfigRequest) (*models.LLMConfig, error) {
	cfg, err := buildLLMConfig(userID, req)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Upsert(cfg); err != nil {
		return nil, err
	}
	return s.repo.FindByUserID(userID)
}

func buildLLMConfig(userID uint, req models.LLMConfigRequest) (*models.LLMConfig, error) {
	provider, err := llm.ParseProvider(req.Provider)
	if err != nil {
		return nil, err
	}

	cfg := &models.LLMConfig{
		UserID:      userID,
		Provider:    string(provider),
		ModelName:   strings.TrimSpace(req.ModelName),
		Temperature: models.DefaultTemperature,
		TopP:        models.DefaultTopP,
		MaxTokens:   models.DefaultMaxTokens,
	}

	if provider.UsesBaseURL() {
		if cfg.ModelName == "" {
			return nil, &llm.ValidationError{Field: "model_name", Message: "required for ollama"}
		}
		base := strings.TrimSpace(req.OllamaBaseURL)
		if base == "" {
			return nil, &llm.ValidationError{Field: "ollama_base_url", Message: "required for ollama"}
		}
		cfg.BaseURL = llm.NormalizeBaseURL(base)
	} else {
		if cfg.ModelName == "" {
			cfg.ModelName = provider.DefaultModel()
		}
		cfg.APIKey = strings.TrimSpace(req.APIKey)
		if cfg.APIKey == "" {
			return nil, &llm.ValidationError{Field: "api_key", Message: fmt.Sprintf("required for %s", provider)}
		}
	}

	if req.Temperature != nil {
		if *req.Temperature < 0 || *req.Temperature > 2 {
			return nil, &llm.ValidationError{Field: "temperature", Message: "must be between 0 and 2"}
		}
		cfg.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		if *req.TopP < 0 || *req.TopP > 1 {
			return nil, &llm.ValidationError{Field: "top_p", Message: "must be between 0 and 1"}
		}
		cfg.TopP = *req.TopP
	}
	if req.MaxTokens != nil && *req.MaxTokens != 0 {
		if *req.MaxTokens < 1 {
			return nil, &llm.ValidationError{Field: "max_tokens", Message: "must be at least 1"}
		}
		cfg.MaxTokens = *req.MaxTokens
	}

	return cfg, nil
}

// SettingsFromConfig converts a stored configuration into per-call settings.
func SettingsFromConfig(cfg *models.LLMConfig) llm.Settings {
	return llm.Settings{
		Provider:    llm.Provider(cfg.Provider),
		APIKey:      cfg.APIKey,
		Model:       cfg.ModelName,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   cfg.MaxTokens,
	}
}
