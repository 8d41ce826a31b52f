package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// OllamaProvider talks to a self-hosted Ollama server at the user's base URL.
type OllamaProvider struct {
	httpClient *http.Client
}

func NewOllamaProvider(httpClient *http.Client) *OllamaProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaProvider{httpClient: httpClient}
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// Generate implements Generator.
func (o *OllamaProvider) Generate(ctx context.Context, s Settings, prompt string) (string, error) {
	base := NormalizeBaseURL(s.BaseURL)
	if base == "" {
		return "", &ProviderError{Provider: ProviderOllama, Kind: ErrInvalidCredentials, Message: "ollama base URL is not configured"}
	}

	payload, err := json.Marshal(ollamaGenerateRequest{
		Model:  s.Model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
		Options: ollamaOptions{
			Temperature: s.Temperature,
			TopP:        s.TopP,
			NumPredict:  s.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(base, "/api/generate"), bytes.NewReader(payload))
	if err != nil {
		return "", &ProviderError{Provider: ProviderOllama, Kind: ErrInvalidCredentials, Message: "invalid ollama base URL", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	body, status, err := o.do(req)
	if err != nil {
		return "", transportError(ctx, ProviderOllama, err)
	}

	if status != http.StatusOK {
		return "", classifyOllamaStatus(status, body)
	}

	if !gjson.ValidBytes(body) {
		return "", unavailable(ProviderOllama, status, false, "ollama returned a non-JSON body", nil)
	}
	return gjson.GetBytes(body, "response").String(), nil
}

// Probe lists the locally pulled models and checks the configured one is present.
func (o *OllamaProvider) Probe(ctx context.Context, s Settings) (string, error) {
	base := NormalizeBaseURL(s.BaseURL)
	if base == "" {
		return "", &ProviderError{Provider: ProviderOllama, Kind: ErrInvalidCredentials, Message: "ollama base URL is required"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, joinURL(base, "/api/tags"), nil)
	if err != nil {
		return "", &ProviderError{Provider: ProviderOllama, Kind: ErrInvalidCredentials, Message: "invalid ollama base URL", Err: err}
	}

	body, status, err := o.do(req)
	if err != nil {
		return "", transportError(ctx, ProviderOllama, err)
	}
	if status != http.StatusOK {
		return "", classifyOllamaStatus(status, body)
	}

	models := gjson.GetBytes(body, "models")
	if !gjson.ValidBytes(body) || !models.IsArray() {
		return "", &ProviderError{Provider: ProviderOllama, Kind: ErrInvalidCredentials, StatusCode: status, Message: "endpoint did not return an ollama model list"}
	}

	if s.Model == "" {
		return fmt.Sprintf("Connected to Ollama (%d models available)", len(models.Array())), nil
	}
	for _, m := range models.Array() {
		if ollamaModelMatches(m.Get("name").String(), s.Model) || ollamaModelMatches(m.Get("model").String(), s.Model) {
			return fmt.Sprintf("Connected to Ollama and model %q is available", s.Model), nil
		}
	}
	return "", &ProviderError{
		Provider:   ProviderOllama,
		Kind:       ErrModelNotFound,
		StatusCode: status,
		Message:    fmt.Sprintf("model %q is not pulled on this server (run `ollama pull %s`)", s.Model, s.Model),
	}
}

func (o *OllamaProvider) do(req *http.Request) ([]byte, int, error) {
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func classifyOllamaStatus(status int, body []byte) error {
	msg := strings.TrimSpace(gjson.GetBytes(body, "error").String())
	if msg == "" {
		msg = http.StatusText(status)
	}
	if strings.Contains(strings.ToLower(msg), "not found") {
		return &ProviderError{Provider: ProviderOllama, Kind: ErrModelNotFound, StatusCode: status, Message: msg}
	}
	return classifyStatus(ProviderOllama, status, msg, nil)
}

// ollamaModelMatches treats "llama3" and "llama3:latest" as the same model.
func ollamaModelMatches(listed, wanted string) bool {
	if listed == "" {
		return false
	}
	if listed == wanted {
		return true
	}
	return !strings.Contains(wanted, ":") && listed == wanted+":latest"
}
