package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"cvmatcher/backend/internal/logger"
)

// Options configures the adapters held by a Registry.
type Options struct {
	OpenAIBaseURL string
	GeminiBaseURL string
	HTTPClient    *http.Client
	Retry         RetryConfig
}

// Registry dispatches Generate calls to the adapter of the configured provider
// and applies retries.
type Registry struct {
	adapters map[Provider]Generator
	retry    RetryConfig
	logger   *zap.Logger
}

func NewRegistry(opts Options, log *zap.Logger) *Registry {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}

	return &Registry{
		adapters: map[Provider]Generator{
			ProviderOpenAI: NewOpenAIProvider(opts.OpenAIBaseURL, httpClient),
			ProviderGemini: NewGeminiProvider(opts.GeminiBaseURL, httpClient),
			ProviderOllama: NewOllamaProvider(httpClient),
		},
		retry:  opts.Retry,
		logger: logger.OrNop(log),
	}
}

// Register replaces the adapter of p.
func (r *Registry) Register(p Provider, g Generator) {
	r.adapters[p] = g
}

func (r *Registry) adapter(p Provider) (Generator, error) {
	g, ok := r.adapters[p]
	if !ok {
		return nil, &ValidationError{Field: "provider", Message: fmt.Sprintf("unsupported provider %q", p)}
	}
	return g, nil
}

// Generate implements Generator.
func (r *Registry) Generate(ctx context.Context, s Settings, prompt string) (string, error) {
	g, err := r.adapter(s.Provider)
	if err != nil {
		return "", err
	}

	log := logger.WithCommonFields(r.logger, string(s.Provider), s.Model)
	start := time.Now()

	attempt := 0
	text, err := RetryDo(ctx, r.retry, func() (string, error) {
		attempt++
		out, err := g.Generate(ctx, s, prompt)
		if err != nil && isRetryable(err) && attempt <= r.retry.MaxRetries {
			log.Warn("provider call failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		}
		return out, err
	})
	if err != nil {
		log.Warn("provider call failed",
			zap.Int("attempts", attempt),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return "", err
	}

	log.Debug("provider call completed",
		zap.Int("attempts", attempt),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.Int("response_length", utf8.RuneCountInString(text)),
		zap.String("response_preview", logger.TruncateForLog(text, 200)),
	)
	return text, nil
}

// Probe runs the provider's lightweight credential check.
func (r *Registry) Probe(ctx context.Context, s Settings) (string, error) {
	g, err := r.adapter(s.Provider)
	if err != nil {
		return "", err
	}
	p, ok := g.(prober)
	if !ok {
		if _, err := g.Generate(ctx, s, `Reply with {"ok": true}`); err != nil {
			return "", err
		}
		return "Provider answered a test prompt", nil
	}
	return p.Probe(ctx, s)
}

// Describe turns a provider error into a message suitable for the settings dialog.
func Describe(s Settings, err error) string {
	var pe *ProviderError
	detail := err.Error()
	if errors.As(err, &pe) && pe.Message != "" {
		detail = pe.Message
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		if s.Provider.UsesBaseURL() {
			return fmt.Sprintf("The Ollama endpoint rejected the request: %s", detail)
		}
		return fmt.Sprintf("Invalid API key for %s: %s", s.Provider, detail)
	case errors.Is(err, ErrModelNotFound):
		return fmt.Sprintf("Model %q is not available: %s", s.Model, detail)
	case errors.Is(err, ErrProviderUnavailable):
		return fmt.Sprintf("Could not reach %s: %s", s.Provider, detail)
	case IsValidationError(err):
		return detail
	default:
		return fmt.Sprintf("Validation failed: %s", detail)
	}
}
