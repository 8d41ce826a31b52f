package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const openAISystemPrompt = "You are an expert technical recruiter. Reply with a single JSON object and nothing else."

// OpenAIProvider calls the chat completions API of OpenAI or any compatible server.
type OpenAIProvider struct {
	baseURL    string
	httpClient *http.Client
}

func NewOpenAIProvider(baseURL string, httpClient *http.Client) *OpenAIProvider {
	return &OpenAIProvider{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

func (o *OpenAIProvider) client(apiKey string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		config.BaseURL = o.baseURL
	}
	if o.httpClient != nil {
		config.HTTPClient = o.httpClient
	}
	return openai.NewClientWithConfig(config)
}

// Generate implements Generator.
func (o *OpenAIProvider) Generate(ctx context.Context, s Settings, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: s.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: openAISystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: nonZeroFloat32(s.Temperature),
		TopP:        nonZeroFloat32(s.TopP),
		MaxTokens:   s.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := o.client(s.APIKey).CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyOpenAIError(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return "", unavailable(ProviderOpenAI, http.StatusOK, false, "no choices in response", nil)
	}

	return resp.Choices[0].Message.Content, nil
}

// Probe lists the models visible to the key.
func (o *OpenAIProvider) Probe(ctx context.Context, s Settings) (string, error) {
	list, err := o.client(s.APIKey).ListModels(ctx)
	if err != nil {
		return "", classifyOpenAIError(ctx, err)
	}

	if s.Model == "" || len(list.Models) == 0 {
		return "API key is valid", nil
	}
	for _, m := range list.Models {
		if m.ID == s.Model {
			return fmt.Sprintf("API key is valid and model %q is available", s.Model), nil
		}
	}
	return fmt.Sprintf("API key is valid, but model %q was not listed for this key", s.Model), nil
}

// nonZeroFloat32 keeps an explicit 0 on the wire. go-openai tags sampling
// fields omitempty, so a literal 0 would fall back to the server default.
func nonZeroFloat32(v float64) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(v)
}

func classifyOpenAIError(ctx context.Context, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return classifyStatus(ProviderOpenAI, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return classifyStatus(ProviderOpenAI, reqErr.HTTPStatusCode, http.StatusText(reqErr.HTTPStatusCode), err)
	}

	return transportError(ctx, ProviderOpenAI, err)
}
