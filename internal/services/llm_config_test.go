package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvmatcher/backend/internal/llm"
	"cvmatcher/backend/internal/models"
	"cvmatcher/backend/internal/repositories"
)

type memLLMConfigRepo struct {
	byUser map[uint]models.LLMConfig
}

func newMemLLMConfigRepo() *memLLMConfigRepo {
	return &memLLMConfigRepo{byUser: map[uint]models.LLMConfig{}}
}

func (r *memLLMConfigRepo) FindByUserID(userID uint) (*models.LLMConfig, error) {
	cfg, ok := r.byUser[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &cfg, nil
}

func (r *memLLMConfigRepo) Upsert(cfg *models.LLMConfig) error {
	r.byUser[cfg.UserID] = *cfg
	return nil
}

func ptr[T any](v T) *T { return &v }

func TestLLMConfigServiceDefault(t *testing.T) {
	svc := NewLLMConfigService(newMemLLMConfigRepo())

	cfg, err := svc.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.ModelName)
	assert.Equal(t, models.DefaultMaxTokens, cfg.MaxTokens)
}

func TestLLMConfigServiceRoundTrip(t *testing.T) {
	svc := NewLLMConfigService(newMemLLMConfigRepo())
	ctx := context.Background()

	saved, err := svc.Set(ctx, 1, models.LLMConfigRequest{
		Provider:    "Gemini",
		APIKey:      " key-123 ",
		Temperature: ptr(0.7),
		TopP:        ptr(0.9),
		MaxTokens:   ptr(2048),
	})
	require.NoError(t, err)
	assert.Equal(t, "gemini", saved.Provider)
	assert.Equal(t, "gemini-2.0-flash", saved.ModelName)
	assert.Equal(t, "key-123", saved.APIKey)

	got, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, saved, got)
}

func TestLLMConfigServiceSwitchingProviderResetsModel(t *testing.T) {
	svc := NewLLMConfigService(newMemLLMConfigRepo())
	ctx := context.Background()

	_, err := svc.Set(ctx, 1, models.LLMConfigRequest{Provider: "openai", APIKey: "sk", ModelName: "gpt-4o"})
	require.NoError(t, err)

	cfg, err := svc.Set(ctx, 1, models.LLMConfigRequest{Provider: "gemini", APIKey: "g"})
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", cfg.ModelName)
}

func TestLLMConfigServiceOllama(t *testing.T) {
	svc := NewLLMConfigService(newMemLLMConfigRepo())

	cfg, err := svc.Set(context.Background(), 3, models.LLMConfigRequest{
		Provider:      "ollama",
		APIKey:        "ignored",
		ModelName:     "llama3",
		OllamaBaseURL: "localhost:11434/",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434/", cfg.BaseURL)
	assert.Empty(t, cfg.APIKey)
}

func TestLLMConfigServiceRejectsInvalid(t *testing.T) {
	svc := NewLLMConfigService(newMemLLMConfigRepo())

	cases := map[string]models.LLMConfigRequest{
		"unknown provider":  {Provider: "anthropic", APIKey: "k"},
		"missing key":       {Provider: "openai"},
		"ollama no url":     {Provider: "ollama", ModelName: "llama3"},
		"ollama no model":   {Provider: "ollama", OllamaBaseURL: "http://h:11434"},
		"temperature range": {Provider: "openai", APIKey: "k", Temperature: ptr(2.5)},
		"top_p range":       {Provider: "openai", APIKey: "k", TopP: ptr(-0.1)},
		"max tokens":        {Provider: "openai", APIKey: "k", MaxTokens: ptr(-5)},
	}

	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Set(context.Background(), 1, req)
			require.Error(t, err)
			assert.True(t, llm.IsValidationError(err))
		})
	}
}

func TestSettingsFromConfig(t *testing.T) {
	s := SettingsFromConfig(&models.LLMConfig{Provider: "ollama", ModelName: "llama3", BaseURL: "http://h", Temperature: 0.3, TopP: 1, MaxTokens: 10})
	assert.Equal(t, llm.ProviderOllama, s.Provider)
	assert.Equal(t, "llama3", s.Model)
	assert.Equal(t, "http://h", s.BaseURL)
	assert.Equal(t, 10, s.MaxTokens)
}
