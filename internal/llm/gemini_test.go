package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGeminiKey = "gemini-test-key"

type geminiStub struct {
	*httptest.Server

	mu       sync.Mutex
	lastBody map[string]any
}

func newGeminiStub(t *testing.T) *geminiStub {
	t.Helper()

	stub := &geminiStub{}
	stub.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		key := r.Header.Get("x-goog-api-key")
		if key == "" {
			key = r.URL.Query().Get("key")
		}
		if key != testGeminiKey {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`))
			return
		}

		switch {
		case strings.Contains(r.URL.Path, "missing-model"):
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"models/missing-model is not found","status":"NOT_FOUND"}}`))
		case strings.HasSuffix(r.URL.Path, ":generateContent"):
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			stub.mu.Lock()
			stub.lastBody = body
			stub.mu.Unlock()
			_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"score\":0.5}"}]},"finishReason":"STOP"}]}`))
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/models/"):
			_, _ = w.Write([]byte(`{"name":"models/gemini-2.0-flash","displayName":"Gemini 2.0 Flash"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(stub.Close)
	return stub
}

func TestGeminiGenerate(t *testing.T) {
	stub := newGeminiStub(t)
	provider := NewGeminiProvider(stub.URL, stub.Client())

	text, err := provider.Generate(context.Background(), Settings{
		Provider: ProviderGemini, APIKey: testGeminiKey, Model: "gemini-2.0-flash", Temperature: 0, TopP: 0.9, MaxTokens: 128,
	}, "prompt")

	require.NoError(t, err)
	assert.JSONEq(t, `{"score":0.5}`, text)

	stub.mu.Lock()
	defer stub.mu.Unlock()
	cfg, ok := stub.lastBody["generationConfig"].(map[string]any)
	require.True(t, ok, "generationConfig missing from request")
	assert.Contains(t, cfg, "temperature")
	assert.Equal(t, "application/json", cfg["responseMimeType"])
}

func TestGeminiGenerateClassifiesErrors(t *testing.T) {
	stub := newGeminiStub(t)
	provider := NewGeminiProvider(stub.URL, stub.Client())

	_, err := provider.Generate(context.Background(), Settings{Provider: ProviderGemini, APIKey: "wrong", Model: "gemini-2.0-flash"}, "prompt")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = provider.Generate(context.Background(), Settings{Provider: ProviderGemini, APIKey: testGeminiKey, Model: "missing-model"}, "prompt")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestGeminiProbe(t *testing.T) {
	stub := newGeminiStub(t)
	provider := NewGeminiProvider(stub.URL, stub.Client())

	msg, err := provider.Probe(context.Background(), Settings{Provider: ProviderGemini, APIKey: testGeminiKey})
	require.NoError(t, err)
	assert.Contains(t, msg, "gemini-2.0-flash")

	_, err = provider.Probe(context.Background(), Settings{Provider: ProviderGemini, APIKey: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
