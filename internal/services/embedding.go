package services

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// maxEmbeddingRunes keeps a single input below the embedding model token limit.
const maxEmbeddingRunes = 8000

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type geminiEmbedder struct {
	client *genai.Client
	model  string
	dim    int32
}

// NewGeminiEmbedder uses the server-side Gemini key, independent of any user's
// LLM configuration.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dim int, httpClient *http.Client) (Embedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &geminiEmbedder{
		client: client,
		model:  model,
		dim:    int32(dim),
	}, nil
}

func (g *geminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if runes := []rune(text); len(runes) > maxEmbeddingRunes {
		text = string(runes[:maxEmbeddingRunes])
	}

	var cfg *genai.EmbedContentConfig
	if g.dim > 0 {
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &g.dim}
	}

	result, err := g.client.Models.EmbedContent(ctx, g.model, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}

	return result.Embeddings[0].Values, nil
}
