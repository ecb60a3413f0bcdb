package cve

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned by Get when no document exists at the record's
// shard path.
var ErrNotFound = errors.New("CVE record not found")

const defaultLookupConcurrency = 8

// CorpusOptions tunes a Corpus. The zero value disables caching and reads
// with the default concurrency.
type CorpusOptions struct {
	// CacheTTL keeps parsed records in memory for this long. Zero disables
	// the cache.
	CacheTTL time.Duration
	// MaxConcurrency bounds parallel file reads within a single Lookup.
	MaxConcurrency int
	Logger         *zap.Logger
}

// Corpus reads CVE records from a read-only directory tree laid out as
// <root>/<year>/<shard>/CVE-<year>-<seq>.json.
type Corpus struct {
	root        string
	cache       *cache.Cache
	concurrency int
	logger      *zap.Logger
}

// NewCorpus creates a Corpus rooted at root.
func NewCorpus(root string, opts CorpusOptions) *Corpus {
	c := &Corpus{
		root:        root,
		concurrency: opts.MaxConcurrency,
		logger:      opts.Logger,
	}
	if c.concurrency <= 0 {
		c.concurrency = defaultLookupConcurrency
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if opts.CacheTTL > 0 {
		c.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return c
}

// Root returns the corpus root directory.
func (c *Corpus) Root() string { return c.root }

// Path returns the file path where the record for id is expected.
func (c *Corpus) Path(id ID) (string, error) {
	year, seq, err := Parse(id)
	if err != nil {
		return "", err
	}
	y := strconv.Itoa(year)
	name := fmt.Sprintf("%s-%s-%s.json", Prefix, y, seq)
	return filepath.Join(c.root, y, ShardKey(seq), name), nil
}

// Get loads and parses the record for id. A missing file yields ErrNotFound.
func (c *Corpus) Get(ctx context.Context, id ID) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := c.Path(id)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if v, ok := c.cache.Get(string(id)); ok {
			return v.(*Record), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	rec, err := ParseRecord(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if c.cache != nil {
		c.cache.SetDefault(string(id), rec)
	}
	return rec, nil
}

// LookupResult partitions looked-up identifiers into found records and
// missing identifiers.
type LookupResult struct {
	// Found holds records in input order.
	Found []Record
	// NotFound holds identifiers without a record, in input order.
	NotFound []ID
	// Descriptions has one entry per input identifier, in input order:
	// the record description or the missing placeholder.
	Descriptions []string
}

// Lookup resolves every identifier. Reads run in parallel but the result
// keeps input order. A malformed identifier or corrupt record fails the
// whole call; a missing record does not.
func (c *Corpus) Lookup(ctx context.Context, ids []ID) (*LookupResult, error) {
	records := make([]*Record, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			rec, err := c.Get(gctx, id)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("corpus lookup: %w", err)
	}

	result := &LookupResult{
		Descriptions: make([]string, 0, len(ids)),
	}
	for i, id := range ids {
		if rec := records[i]; rec != nil {
			result.Found = append(result.Found, *rec)
			result.Descriptions = append(result.Descriptions, rec.Describe())
			continue
		}
		result.NotFound = append(result.NotFound, id)
		result.Descriptions = append(result.Descriptions, MissingDescription(id))
	}

	c.logger.Debug("corpus lookup",
		zap.Int("requested", len(ids)),
		zap.Int("found", len(result.Found)),
		zap.Stringers("missing", result.NotFound),
	)
	return result, nil
}
