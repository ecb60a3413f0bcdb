package embeddings

import (
	"context"
	"fmt"
	"os"
)

// Embedder defines the interface for generating text embeddings.
type Embedder interface {
	// Embed generates embeddings for one or more texts, one vector per
	// text in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns the name/identifier of the embedding model.
	Name() string
}

// Spec selects and configures an embedder.
type Spec struct {
	Provider   string
	Model      string
	Dimensions int
	BaseURL    string
}

// New creates the embedder described by spec. API keys come from the
// provider's usual environment variable.
func New(ctx context.Context, spec Spec) (Embedder, error) {
	switch spec.Provider {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		model := OpenAIModel(spec.Model)
		if model == "" {
			model = ModelTextEmbedding3Small
		}
		return NewOpenAIEmbedder(apiKey, model, spec.Dimensions, spec.BaseURL), nil

	case "ollama":
		model := spec.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		dims := spec.Dimensions
		if dims == 0 {
			dims = 768
		}
		baseURL := spec.BaseURL
		if baseURL == "" {
			baseURL = os.Getenv("OLLAMA_HOST")
		}
		return NewOllamaEmbedder(model, dims, baseURL), nil

	case "google":
		return NewGoogleEmbedder(ctx, os.Getenv("GOOGLE_API_KEY"), GoogleModel(spec.Model), spec.Dimensions)

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", spec.Provider)
	}
}
