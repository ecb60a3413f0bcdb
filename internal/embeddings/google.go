package embeddings

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GoogleModel represents a supported Google embedding model.
type GoogleModel string

const (
	ModelGeminiEmbedding001 GoogleModel = "gemini-embedding-001"
	ModelTextEmbedding004   GoogleModel = "text-embedding-004"
)

func (m GoogleModel) dimensions() int {
	if m == ModelTextEmbedding004 {
		return 768
	}
	return 3072
}

// GoogleEmbedder generates embeddings through the Gemini API using the
// google.golang.org/genai SDK.
type GoogleEmbedder struct {
	client   *genai.Client
	model    GoogleModel
	dims     int
	taskType string
}

// NewGoogleEmbedder creates a new Google embedder. dims > 0 requests a
// truncated output dimensionality.
func NewGoogleEmbedder(ctx context.Context, apiKey string, model GoogleModel, dims int) (*GoogleEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google embedder: API key is required")
	}
	if model == "" {
		model = ModelGeminiEmbedding001
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GoogleEmbedder{
		client:   client,
		model:    model,
		dims:     dims,
		taskType: "SEMANTIC_SIMILARITY",
	}, nil
}

func (e *GoogleEmbedder) Name() string {
	return string(e.model)
}

func (e *GoogleEmbedder) Dimensions() int {
	if e.dims > 0 {
		return e.dims
	}
	return e.model.dimensions()
}

func (e *GoogleEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += maxBatchSize {
		batch := texts[i:min(i+maxBatchSize, len(texts))]

		contents := make([]*genai.Content, len(batch))
		for j, text := range batch {
			contents[j] = genai.NewContentFromText(text, genai.RoleUser)
		}

		cfg := &genai.EmbedContentConfig{TaskType: e.taskType}
		if e.dims > 0 {
			d := int32(e.dims)
			cfg.OutputDimensionality = &d
		}

		result, err := e.client.Models.EmbedContent(ctx, string(e.model), contents, cfg)
		if err != nil {
			return nil, fmt.Errorf("google embed request failed: %w", err)
		}
		if len(result.Embeddings) != len(batch) {
			return nil, fmt.Errorf("google returned %d embeddings, expected %d", len(result.Embeddings), len(batch))
		}
		for _, emb := range result.Embeddings {
			all = append(all, emb.Values)
		}
	}

	return all, nil
}
