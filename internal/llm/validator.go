package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"cvmatcher/backend/internal/logger"
)

// ValidateRequest is the body of POST /llm/validate-api-key.
type ValidateRequest struct {
	Kind          string `json:"kind"`
	Provider      string `json:"provider"`
	APIKey        string `json:"api_key"`
	ModelName     string `json:"model_name"`
	OllamaBaseURL string `json:"ollama_base_url"`
}

// ValidationResult is the outcome of a probe. It never carries a Go error.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// Validator performs one synchronous probe against the provider before a
// configuration is saved.
type Validator struct {
	registry *Registry
	timeout  time.Duration
	logger   *zap.Logger
}

func NewValidator(registry *Registry, timeout time.Duration, log *zap.Logger) *Validator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Validator{registry: registry, timeout: timeout, logger: logger.OrNop(log)}
}

func (v *Validator) Validate(ctx context.Context, req ValidateRequest) ValidationResult {
	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	if kind != "" && kind != "llm" {
		return ValidationResult{Valid: false, Message: fmt.Sprintf("unsupported validation kind %q", req.Kind)}
	}

	provider, err := ParseProvider(req.Provider)
	if err != nil {
		return ValidationResult{Valid: false, Message: err.Error()}
	}

	s := Settings{
		Provider: provider,
		APIKey:   strings.TrimSpace(req.APIKey),
		Model:    strings.TrimSpace(req.ModelName),
		BaseURL:  NormalizeBaseURL(req.OllamaBaseURL),
	}

	if provider.UsesBaseURL() {
		if s.BaseURL == "" {
			return ValidationResult{Valid: false, Message: "Ollama base URL is required"}
		}
	} else if s.APIKey == "" {
		return ValidationResult{Valid: false, Message: "API key is required"}
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	log := logger.WithCommonFields(v.logger, string(s.Provider), s.Model)
	msg, err := v.registry.Probe(ctx, s)
	if err != nil {
		log.Info("llm credentials rejected", zap.Error(err))
		return ValidationResult{Valid: false, Message: Describe(s, err)}
	}

	log.Info("llm credentials validated")
	return ValidationResult{Valid: true, Message: msg}
}
