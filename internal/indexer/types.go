package indexer

import (
	"time"

	"github.com/ziadkadry99/cverag/internal/walker"
)

// DocumentChunks holds the chunks cut from one source document.
type DocumentChunks struct {
	Document walker.Document
	Chunks   []string
}

// Result summarizes the outcome of an index build.
type Result struct {
	FilesProcessed int
	FilesFailed    int
	Chunks         int
	Dimensions     int
	Duration       time.Duration
	// Errors holds per-file extraction failures. They do not fail the build.
	Errors []error
}

// ProgressFunc is called as work items complete.
type ProgressFunc func(processed int, total int, current string)
