// Package indexer builds the embedding store that the fallback resolver
// searches: walk the sources, extract and chunk their text, embed the
// chunks and write (chunk, vector) rows.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/cverag/internal/chunker"
	"github.com/ziadkadry99/cverag/internal/embeddings"
	"github.com/ziadkadry99/cverag/internal/vectordb"
	"github.com/ziadkadry99/cverag/internal/walker"
)

// DefaultBatchSize is the number of chunks sent per embedding call.
const DefaultBatchSize = 32

// ErrNoChunks is returned when the sources yield no text to embed.
var ErrNoChunks = errors.New("no text to index")

// Options tunes a Pipeline.
type Options struct {
	Chunking    chunker.Options
	BatchSize   int // 0 means DefaultBatchSize
	Concurrency int // parallel file reads and embedding calls; 0 means 4
}

// Pipeline orchestrates the index build: chunk -> embed -> store.
type Pipeline struct {
	embedder   embeddings.Embedder
	opts       Options
	onProgress ProgressFunc
	onEmbed    ProgressFunc
}

// NewPipeline creates a new Pipeline.
func NewPipeline(embedder embeddings.Embedder, opts Options) *Pipeline {
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	return &Pipeline{embedder: embedder, opts: opts}
}

// SetProgressFunc sets the callback for processed files.
func (p *Pipeline) SetProgressFunc(fn ProgressFunc) {
	p.onProgress = fn
}

// SetEmbedProgressFunc sets the callback for embedded chunks.
func (p *Pipeline) SetEmbedProgressFunc(fn ProgressFunc) {
	p.onEmbed = fn
}

// Run chunks and embeds files and writes the store to outPath. Rows follow
// file order, then chunk order within a file. Extraction failures are
// collected in the result; embedding and write failures abort the build.
func (p *Pipeline) Run(ctx context.Context, files []walker.Document, outPath string) (*Result, error) {
	start := time.Now()
	if err := p.opts.Chunking.Validate(); err != nil {
		return nil, err
	}

	batcher := NewBatcher(p.opts.Concurrency, p.opts.Chunking, p.onProgress)
	batch := batcher.ProcessFiles(ctx, files)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{
		FilesProcessed: len(files) - len(batch.Errors),
		FilesFailed:    len(batch.Errors),
		Errors:         batch.Errors,
	}

	var texts []string
	for _, dc := range batch.Results {
		texts = append(texts, dc.Chunks...)
	}
	if len(texts) == 0 {
		return result, ErrNoChunks
	}

	vectors, err := p.embed(ctx, texts)
	if err != nil {
		return result, err
	}

	entries := make([]vectordb.Entry, len(texts))
	for i := range texts {
		entries[i] = vectordb.Entry{Chunk: texts[i], Vector: vectors[i]}
	}
	if err := vectordb.WriteStore(ctx, outPath, entries); err != nil {
		return result, fmt.Errorf("writing store: %w", err)
	}

	result.Chunks = len(entries)
	result.Dimensions = len(vectors[0])
	result.Duration = time.Since(start)
	return result, nil
}

// embed sends texts in batches, several at a time, and returns one vector
// per text in input order.
func (p *Pipeline) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	total := len(texts)
	var embedded int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for lo := 0; lo < total; lo += p.opts.BatchSize {
		hi := min(lo+p.opts.BatchSize, total)
		g.Go(func() error {
			vecs, err := p.embedder.Embed(gctx, texts[lo:hi])
			if err != nil {
				return fmt.Errorf("embedding chunks %d-%d: %w", lo, hi-1, err)
			}
			if len(vecs) != hi-lo {
				return fmt.Errorf("embedder %s returned %d vectors for %d chunks", p.embedder.Name(), len(vecs), hi-lo)
			}
			for i, v := range vecs {
				if len(v) != p.embedder.Dimensions() {
					return fmt.Errorf("%w: embedder %s returned %d values, expected %d",
						vectordb.ErrDimensionMismatch, p.embedder.Name(), len(v), p.embedder.Dimensions())
				}
				vectors[lo+i] = v
			}
			count := atomic.AddInt64(&embedded, int64(hi-lo))
			if p.onEmbed != nil {
				p.onEmbed(int(count), total, "")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
