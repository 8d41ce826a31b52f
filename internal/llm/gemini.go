package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider calls the Gemini API through the genai SDK. A client is
// created per call because every user brings their own key.
type GeminiProvider struct {
	baseURL    string
	httpClient *http.Client
}

func NewGeminiProvider(baseURL string, httpClient *http.Client) *GeminiProvider {
	return &GeminiProvider{
		baseURL:    strings.TrimSpace(baseURL),
		httpClient: httpClient,
	}
}

func (g *GeminiProvider) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	}
	if g.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderGemini, Kind: ErrInvalidCredentials, Message: "failed to create gemini client", Err: err}
	}
	return client, nil
}

// Generate implements Generator.
func (g *GeminiProvider) Generate(ctx context.Context, s Settings, prompt string) (string, error) {
	client, err := g.client(ctx, s.APIKey)
	if err != nil {
		return "", err
	}

	temperature := float32(s.Temperature)
	topP := float32(s.TopP)
	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		TopP:             &topP,
		MaxOutputTokens:  int32(s.MaxTokens),
		ResponseMIMEType: "application/json",
	}

	resp, err := client.Models.GenerateContent(ctx, s.Model, genai.Text(prompt), config)
	if err != nil {
		return "", classifyGeminiError(ctx, err)
	}
	if resp == nil {
		return "", unavailable(ProviderGemini, http.StatusOK, false, "no response generated", nil)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", unavailable(ProviderGemini, http.StatusOK, false, "no text content in response", nil)
	}
	return text, nil
}

// Probe fetches the configured model's metadata, which needs a valid key.
func (g *GeminiProvider) Probe(ctx context.Context, s Settings) (string, error) {
	client, err := g.client(ctx, s.APIKey)
	if err != nil {
		return "", err
	}

	model := s.Model
	if model == "" {
		model = ProviderGemini.DefaultModel()
	}
	if _, err := client.Models.Get(ctx, model, nil); err != nil {
		return "", classifyGeminiError(ctx, err)
	}
	return fmt.Sprintf("API key is valid and model %q is available", model), nil
}

func classifyGeminiError(ctx context.Context, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code > 0 {
		return classifyStatus(ProviderGemini, apiErr.Code, apiErr.Message, err)
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code > 0 {
		return classifyStatus(ProviderGemini, apiErrPtr.Code, apiErrPtr.Message, err)
	}

	return transportError(ctx, ProviderGemini, err)
}
