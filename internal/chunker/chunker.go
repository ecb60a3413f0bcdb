// Package chunker splits documents into overlapping word windows for
// embedding.
package chunker

import (
	"fmt"
	"strings"
)

// Defaults used when Options leave a field zero.
const (
	DefaultSize    = 200
	DefaultOverlap = 40
)

// Options control chunk size and overlap, both counted in words. A zero
// Size selects both defaults.
type Options struct {
	Size    int
	Overlap int
}

func (o Options) withDefaults() Options {
	if o.Size <= 0 {
		o.Size = DefaultSize
		if o.Overlap <= 0 {
			o.Overlap = DefaultOverlap
		}
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	return o
}

// Validate checks that consecutive windows advance.
func (o Options) Validate() error {
	o = o.withDefaults()
	if o.Overlap >= o.Size {
		return fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", o.Overlap, o.Size)
	}
	return nil
}

// Split breaks text into windows of opts.Size words, each sharing
// opts.Overlap words with the previous one. Whitespace is collapsed. The
// last window may be shorter; a window that would only repeat overlap is
// not emitted.
func Split(text string, opts Options) ([]string, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	step := opts.Size - opts.Overlap
	var chunks []string
	for start := 0; ; start += step {
		end := min(start+opts.Size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks, nil
}
