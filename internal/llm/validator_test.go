package llm

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestValidatorOllama(t *testing.T) {
	srv := newOllamaStub(t, []string{"llama3:latest"})
	v := NewValidator(NewRegistry(Options{HTTPClient: srv.Client()}, zap.NewNop()), 2*time.Second, zap.NewNop())

	res := v.Validate(context.Background(), ValidateRequest{
		Kind:          "llm",
		Provider:      "ollama",
		ModelName:     "llama3",
		OllamaBaseURL: strings.TrimPrefix(srv.URL, "http://"),
	})
	assert.True(t, res.Valid, res.Message)
}

func TestValidatorOllamaUnreachable(t *testing.T) {
	v := NewValidator(NewRegistry(Options{}, zap.NewNop()), time.Second, zap.NewNop())

	start := time.Now()
	res := v.Validate(context.Background(), ValidateRequest{
		Kind:          "llm",
		Provider:      "ollama",
		ModelName:     "llama3",
		OllamaBaseURL: "127.0.0.1:1",
	})

	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Message)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestValidatorOpenAI(t *testing.T) {
	srv := newOpenAIStub(t)
	v := NewValidator(NewRegistry(Options{OpenAIBaseURL: srv.URL + "/v1", HTTPClient: srv.Client()}, zap.NewNop()), time.Second, zap.NewNop())

	ok := v.Validate(context.Background(), ValidateRequest{Kind: "llm", Provider: "openai", APIKey: testOpenAIKey, ModelName: "gpt-4o-mini"})
	assert.True(t, ok.Valid, ok.Message)

	bad := v.Validate(context.Background(), ValidateRequest{Kind: "llm", Provider: "openai", APIKey: "wrong", ModelName: "gpt-4o-mini"})
	assert.False(t, bad.Valid)
	assert.Contains(t, bad.Message, "Invalid API key")
}

func TestValidatorRejectsMalformedRequests(t *testing.T) {
	t.Parallel()

	v := NewValidator(NewRegistry(Options{}, nil), time.Second, nil)

	cases := []struct {
		name string
		req  ValidateRequest
	}{
		{name: "wrong kind", req: ValidateRequest{Kind: "embedding", Provider: "openai", APIKey: "k"}},
		{name: "unknown provider", req: ValidateRequest{Kind: "llm", Provider: "cohere", APIKey: "k"}},
		{name: "missing key", req: ValidateRequest{Kind: "llm", Provider: "gemini"}},
		{name: "missing base url", req: ValidateRequest{Kind: "llm", Provider: "ollama", ModelName: "llama3"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := v.Validate(context.Background(), tc.req)
			assert.False(t, res.Valid)
			assert.NotEmpty(t, res.Message)
		})
	}
}
