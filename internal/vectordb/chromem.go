package vectordb

import (
	"context"
	"fmt"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/cverag/internal/embeddings"
)

const collectionName = "chunks"

// ChromemIndex is a Searcher backed by a chromem-go collection. chromem
// normalizes vectors on insert, so scores are cosine similarities and equal
// scores have no defined order.
type ChromemIndex struct {
	collection *chromem.Collection
	dims       int
}

// NewChromemIndex loads precomputed entries into an in-memory chromem
// collection. The embedder is only used by chromem for text queries.
func NewChromemIndex(ctx context.Context, entries []Entry, embedder embeddings.Embedder) (*ChromemIndex, error) {
	// Reuse the flat index validation for empty stores and ragged rows.
	flat, err := NewIndex(entries)
	if err != nil {
		return nil, err
	}

	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(collectionName, nil, embeddings.ToChromemFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(i),
			Content:   e.Chunk,
			Embedding: flat.Vector(i),
		}
	}
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return nil, fmt.Errorf("adding chunks: %w", err)
	}

	return &ChromemIndex{collection: col, dims: flat.Dimensions()}, nil
}

// Len returns the number of stored chunks.
func (c *ChromemIndex) Len() int { return c.collection.Count() }

// Dimensions returns the vector width.
func (c *ChromemIndex) Dimensions() int { return c.dims }

// Search implements Searcher.
func (c *ChromemIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	if len(query) != c.dims {
		return nil, fmt.Errorf("%w: query has %d values, index has %d", ErrDimensionMismatch, len(query), c.dims)
	}
	// chromem-go requires nResults <= collection size.
	if count := c.collection.Count(); k > count {
		k = count
	}

	results, err := c.collection.QueryEmbedding(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		row, err := strconv.Atoi(r.ID)
		if err != nil {
			return nil, fmt.Errorf("chromem returned unexpected id %q", r.ID)
		}
		hits[i] = Hit{Row: row, Chunk: r.Content, Score: r.Similarity}
	}
	return hits, nil
}
