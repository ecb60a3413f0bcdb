package indexer

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ziadkadry99/cverag/internal/chunker"
	"github.com/ziadkadry99/cverag/internal/upload"
	"github.com/ziadkadry99/cverag/internal/walker"
)

// Batcher extracts and chunks documents concurrently.
type Batcher struct {
	concurrency int
	chunking    chunker.Options
	onProgress  ProgressFunc
}

// NewBatcher creates a new Batcher with the given concurrency limit.
func NewBatcher(concurrency int, chunking chunker.Options, onProgress ProgressFunc) *Batcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Batcher{
		concurrency: concurrency,
		chunking:    chunking,
		onProgress:  onProgress,
	}
}

// BatchResult holds chunked documents, in input order, and per-file errors.
type BatchResult struct {
	Results []DocumentChunks
	Errors  []error
}

// ProcessFiles reads, extracts and chunks files. A file that fails is
// reported in Errors and skipped; documents without text are dropped.
func (b *Batcher) ProcessFiles(ctx context.Context, files []walker.Document) *BatchResult {
	total := len(files)
	if total == 0 {
		return &BatchResult{}
	}

	sem := make(chan struct{}, b.concurrency)
	slots := make([]*DocumentChunks, total)
	var mu sync.Mutex
	var processed int64
	result := &BatchResult{}

	fail := func(err error) {
		mu.Lock()
		result.Errors = append(result.Errors, err)
		mu.Unlock()
	}
	done := func(relPath string) {
		count := atomic.AddInt64(&processed, 1)
		if b.onProgress != nil {
			b.onProgress(int(count), total, relPath)
		}
	}

	var wg sync.WaitGroup
	for i, file := range files {
		select {
		case <-ctx.Done():
			fail(fmt.Errorf("chunk %s: %w", file.RelPath, ctx.Err()))
			done(file.RelPath)
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, f walker.Document) {
			defer wg.Done()
			defer func() { <-sem }()
			defer done(f.RelPath)

			chunks, err := b.chunkFile(f)
			if err != nil {
				fail(err)
				return
			}
			if len(chunks) > 0 {
				slots[i] = &DocumentChunks{Document: f, Chunks: chunks}
			}
		}(i, file)
	}
	wg.Wait()

	for _, s := range slots {
		if s != nil {
			result.Results = append(result.Results, *s)
		}
	}
	return result
}

func (b *Batcher) chunkFile(f walker.Document) ([]string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.RelPath, err)
	}
	text, err := upload.Extract(f.RelPath, data)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", f.RelPath, err)
	}
	chunks, err := chunker.Split(text, b.chunking)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", f.RelPath, err)
	}
	return chunks, nil
}
