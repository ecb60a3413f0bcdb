package vectordb

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDimensionMismatch is returned when vectors of different lengths are
	// mixed, either while loading a store or when querying it.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyIndex is returned when a store holds no rows.
	ErrEmptyIndex = errors.New("embedding store is empty")
	// ErrInvalidK is returned for k < 1.
	ErrInvalidK = errors.New("k must be at least 1")
	// ErrNonFinite is returned for vectors holding NaN or infinite values.
	ErrNonFinite = errors.New("vector value is not finite")
)

// DefaultK is the number of chunks retrieved when the caller does not ask
// for a specific count.
const DefaultK = 5

// Entry is one precomputed (chunk, vector) row of the embedding store.
type Entry struct {
	Chunk  string
	Vector []float32
}

// Hit is a single nearest-neighbour result.
type Hit struct {
	Row   int
	Chunk string
	Score float32
}

// Searcher answers top-k queries against a fixed set of vectors.
type Searcher interface {
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	Len() int
	Dimensions() int
}

// Index is an exact, in-memory inner-product index. It is immutable after
// construction and safe for concurrent queries.
type Index struct {
	chunks []string
	matrix []float32 // row-major, len(chunks) * dims
	dims   int
}

// NewIndex stacks the entries into a matrix. Every vector must have the
// length of the first one.
func NewIndex(entries []Entry) (*Index, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyIndex
	}
	dims := len(entries[0].Vector)
	if dims == 0 {
		return nil, fmt.Errorf("%w: row 0 has an empty vector", ErrDimensionMismatch)
	}

	idx := &Index{
		chunks: make([]string, len(entries)),
		matrix: make([]float32, 0, len(entries)*dims),
		dims:   dims,
	}
	for i, e := range entries {
		if len(e.Vector) != dims {
			return nil, fmt.Errorf("%w: row %d has %d values, expected %d", ErrDimensionMismatch, i, len(e.Vector), dims)
		}
		if j := nonFinite(e.Vector); j >= 0 {
			return nil, fmt.Errorf("%w: row %d value %d", ErrNonFinite, i, j)
		}
		idx.chunks[i] = e.Chunk
		idx.matrix = append(idx.matrix, e.Vector...)
	}
	return idx, nil
}

// Len returns the number of rows.
func (x *Index) Len() int { return len(x.chunks) }

// Dimensions returns the vector width.
func (x *Index) Dimensions() int { return x.dims }

// Chunk returns the text of a row.
func (x *Index) Chunk(row int) string { return x.chunks[row] }

// Vector returns a copy of a row's vector.
func (x *Index) Vector(row int) []float32 {
	v := make([]float32, x.dims)
	copy(v, x.matrix[row*x.dims:(row+1)*x.dims])
	return v
}

// Search implements Searcher.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return x.TopK(query, k)
}

// TopK returns the k rows with the largest inner product against query,
// highest first. Equal scores are ordered by ascending row. k is clamped to
// the number of rows.
func (x *Index) TopK(query []float32, k int) ([]Hit, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	if len(query) != x.dims {
		return nil, fmt.Errorf("%w: query has %d values, index has %d", ErrDimensionMismatch, len(query), x.dims)
	}
	if j := nonFinite(query); j >= 0 {
		return nil, fmt.Errorf("%w: query value %d", ErrNonFinite, j)
	}
	if k > len(x.chunks) {
		k = len(x.chunks)
	}

	// Min-heap of the best k seen so far; the root is the weakest keeper.
	h := make(hitHeap, 0, k)
	for row := range x.chunks {
		score := dot(query, x.matrix[row*x.dims:(row+1)*x.dims])
		cand := Hit{Row: row, Score: score}
		if len(h) < k {
			heap.Push(&h, cand)
			continue
		}
		if better(cand, h[0]) {
			h[0] = cand
			heap.Fix(&h, 0)
		}
	}

	hits := make([]Hit, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		hits[i] = heap.Pop(&h).(Hit)
		hits[i].Chunk = x.chunks[hits[i].Row]
	}
	return hits, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// nonFinite returns the position of the first NaN or infinite value, or -1.
func nonFinite(v []float32) int {
	for i, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return i
		}
	}
	return -1
}

// better reports whether a ranks ahead of b.
func better(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Row < b.Row
}

type hitHeap []Hit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(x any) { *h = append(*h, x.(Hit)) }

func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
