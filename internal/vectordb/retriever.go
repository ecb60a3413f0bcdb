package vectordb

import (
	"context"
	"fmt"

	"github.com/ziadkadry99/cverag/internal/embeddings"
)

// Retriever embeds free text and returns the nearest chunks.
type Retriever struct {
	embedder embeddings.Embedder
	searcher Searcher
}

// NewRetriever pairs an embedder with a searcher of the same dimensionality.
func NewRetriever(embedder embeddings.Embedder, searcher Searcher) *Retriever {
	return &Retriever{embedder: embedder, searcher: searcher}
}

// Searcher returns the underlying index.
func (r *Retriever) Searcher() Searcher { return r.searcher }

// Retrieve embeds text and returns its k nearest chunks.
func (r *Retriever) Retrieve(ctx context.Context, text string, k int) ([]Hit, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	vecs, err := r.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder %s returned %d vectors for one text", r.embedder.Name(), len(vecs))
	}
	return r.searcher.Search(ctx, vecs[0], k)
}

// Chunks returns only the text of each hit, preserving order.
func Chunks(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Chunk
	}
	return out
}
