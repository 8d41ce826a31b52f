package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider is the closed set of supported LLM backends.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderOllama Provider = "ollama"
)

// Providers lists every supported provider in display order.
var Providers = []Provider{ProviderOpenAI, ProviderGemini, ProviderOllama}

var defaultModels = map[Provider]string{
	ProviderOpenAI: "gpt-4o-mini",
	ProviderGemini: "gemini-2.0-flash",
	ProviderOllama: "llama3",
}

// ParseProvider normalizes s and checks it names a supported provider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := defaultModels[p]; !ok {
		return "", &ValidationError{Field: "provider", Message: fmt.Sprintf("unsupported provider %q (expected openai, gemini or ollama)", s)}
	}
	return p, nil
}

// DefaultModel is the model selected when a user switches to p without naming one.
func (p Provider) DefaultModel() string {
	return defaultModels[p]
}

// UsesBaseURL reports whether the provider is addressed by a user supplied
// base URL instead of an API key.
func (p Provider) UsesBaseURL() bool {
	return p == ProviderOllama
}

// Settings is the per-call view of a user's LLM configuration.
type Settings struct {
	Provider    Provider
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Generator turns a prompt into raw model text. Implementations never stream.
type Generator interface {
	Generate(ctx context.Context, s Settings, prompt string) (string, error)
}

// prober is implemented by adapters that can check credentials without a completion.
type prober interface {
	Probe(ctx context.Context, s Settings) (string, error)
}

// NormalizeBaseURL prefixes http:// when raw has no scheme. A value that
// already carries a scheme is returned as given, minus surrounding spaces.
func NormalizeBaseURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if !strings.Contains(strings.ToLower(u), "://") {
		u = "http://" + u
	}
	return u
}

// joinURL appends path to base without doubling the slash between them.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

func looksLikeKeyError(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "api key") || strings.Contains(m, "api_key")
}
