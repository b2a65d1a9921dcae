package embedding

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const geminiEmbeddingModel = "text-embedding-004"

type GeminiProvider struct {
	client     *genai.Client
	Model      string
	Dimensions int
}

// NewGeminiProvider embeds through the Gemini API. dimensions <= 0 keeps
// the model's native size.
func NewGeminiProvider(ctx context.Context, apiKey string, dimensions int) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	return newGeminiProvider(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, dimensions)
}

func newGeminiProvider(ctx context.Context, cfg *genai.ClientConfig, dimensions int) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiProvider{client: client, Model: geminiEmbeddingModel, Dimensions: dimensions}, nil
}

func (p *GeminiProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	config := &genai.EmbedContentConfig{TaskType: taskType}
	if p.Dimensions > 0 {
		dims := int32(p.Dimensions)
		config.OutputDimensionality = &dims
	}

	res, err := p.client.Models.EmbedContent(ctx, p.Model, genai.Text(text), config)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request: %w", err)
	}
	if len(res.Embeddings) == 0 || len(res.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("gemini returned an empty embedding")
	}

	// truncated outputs are no longer unit length
	return &EmbeddingResponse{
		Embedding: EmbeddingResponseEmbedding{Values: Normalize(res.Embeddings[0].Values)},
	}, nil
}
