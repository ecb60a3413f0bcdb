package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/cverag/internal/config"
	"github.com/ziadkadry99/cverag/internal/cve"
	"github.com/ziadkadry99/cverag/internal/db"
	"github.com/ziadkadry99/cverag/internal/embeddings"
	"github.com/ziadkadry99/cverag/internal/fallback"
	"github.com/ziadkadry99/cverag/internal/history"
	"github.com/ziadkadry99/cverag/internal/llm"
	"github.com/ziadkadry99/cverag/internal/logging"
	"github.com/ziadkadry99/cverag/internal/rag"
	"github.com/ziadkadry99/cverag/internal/telemetry"
	"github.com/ziadkadry99/cverag/internal/vectordb"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `cverag init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Console output always goes to
// stderr so stdout stays usable for command output and MCP.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Options{
		Level:      level,
		File:       cfg.Log.File,
		Production: cfg.Log.Production,
		Console:    os.Stderr,
	})
}

// modelSpecs maps the configured model menu onto provider specs.
func modelSpecs(cfg *config.Config) []llm.ModelSpec {
	specs := make([]llm.ModelSpec, len(cfg.Models))
	for i, m := range cfg.Models {
		specs[i] = llm.ModelSpec{
			Name:        m.Name,
			Provider:    string(m.Provider),
			Model:       m.Model,
			BaseURL:     m.BaseURL,
			Temperature: m.Temperature,
			MaxTokens:   m.MaxTokens,
			RPM:         m.RPM,
		}
	}
	return specs
}

// createEmbedderFromConfig creates the embedder that must match the one
// that built the store.
func createEmbedderFromConfig(ctx context.Context, cfg *config.Config) (embeddings.Embedder, error) {
	return embeddings.New(ctx, embeddings.Spec{
		Provider:   string(cfg.Embedding.Provider),
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		BaseURL:    cfg.Embedding.BaseURL,
	})
}

// loadSearcher reads the embedding store into the configured backend.
func loadSearcher(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder) (vectordb.Searcher, error) {
	if cfg.Index.Backend == config.BackendChromem {
		entries, err := vectordb.ReadEntries(ctx, cfg.Index.Path)
		if err != nil {
			return nil, err
		}
		return vectordb.NewChromemIndex(ctx, entries, embedder)
	}
	return vectordb.Load(ctx, cfg.Index.Path)
}

// app holds everything a prompt-serving command needs.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	service  *rag.Service
	history  *history.Store
	shutdown telemetry.ShutdownFunc
	closers  []func() error
}

type appOptions struct {
	// history opens the request history database when enabled in config.
	history bool
	// timeout bounds each prompt. Zero means no limit.
	timeout time.Duration
}

// newApp wires the model registry, corpus, fallback resolver and history
// into a prompt service. A missing corpus or embedding store degrades the
// service instead of failing: CVE prompts are refused without a corpus and
// missing identifiers are not corrected without a store.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	shutdown, err := telemetry.Init(ctx, telemetry.Options{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     Version,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	a.shutdown = shutdown

	registry, err := llm.BuildRegistry(modelSpecs(cfg), cfg.DefaultModel, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating models: %w", err)
	}

	pipeline, err := a.newPipeline(ctx, registry)
	if err != nil {
		a.Close()
		return nil, err
	}

	if opts.history && cfg.History.Enabled {
		if err := a.openHistory(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.service = rag.NewService(registry, pipeline, rag.Options{
		Timeout:  opts.timeout,
		History:  a.history,
		RAGTypes: cfg.RAGTypes,
		Logger:   logger,
	})
	return a, nil
}

func (a *app) newPipeline(ctx context.Context, registry *llm.Registry) (*rag.CVEPipeline, error) {
	cfg := a.cfg
	if _, err := os.Stat(cfg.Corpus.Root); err != nil {
		a.logger.Warn("CVE corpus unavailable, CVE prompts will be refused",
			zap.String("root", cfg.Corpus.Root), zap.Error(err))
		return nil, nil
	}
	corpus := cve.NewCorpus(cfg.Corpus.Root, cve.CorpusOptions{
		CacheTTL:       cfg.Corpus.CacheTTL,
		MaxConcurrency: cfg.Corpus.MaxConcurrency,
		Logger:         a.logger,
	})

	resolver, err := a.newResolver(ctx, registry)
	if err != nil {
		return nil, err
	}
	return rag.NewCVEPipeline(corpus, resolver, a.logger), nil
}

// newResolver returns nil when fallback is disabled or the store cannot be
// read.
func (a *app) newResolver(ctx context.Context, registry *llm.Registry) (*fallback.Resolver, error) {
	cfg := a.cfg
	if !cfg.Fallback.Enabled {
		return nil, nil
	}

	model, err := registry.Lookup(cfg.Fallback.Model)
	if err != nil {
		return nil, fmt.Errorf("fallback model: %w", err)
	}

	embedder, err := createEmbedderFromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	searcher, err := loadSearcher(ctx, cfg, embedder)
	if errors.Is(err, os.ErrNotExist) {
		a.logger.Warn("embedding store not found, missing CVEs will not be corrected",
			zap.String("path", cfg.Index.Path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading embedding store %s: %w", cfg.Index.Path, err)
	}
	if searcher.Dimensions() != embedder.Dimensions() {
		return nil, fmt.Errorf("%w: store %s has %d dimensions, embedder %s has %d",
			vectordb.ErrDimensionMismatch, cfg.Index.Path, searcher.Dimensions(), embedder.Name(), embedder.Dimensions())
	}
	a.logger.Info("embedding store loaded",
		zap.String("path", cfg.Index.Path),
		zap.String("backend", cfg.Index.Backend),
		zap.Int("chunks", searcher.Len()))

	return fallback.NewResolver(model, vectordb.NewRetriever(embedder, searcher), fallback.Options{
		Chunks:      cfg.Fallback.Chunks,
		Parallelism: cfg.Fallback.Parallelism,
		Logger:      a.logger,
	}), nil
}

func (a *app) openHistory(ctx context.Context) error {
	database, err := db.Open(a.cfg.History.Path)
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}
	a.closers = append(a.closers, database.Close)
	a.history = history.NewStore(database)

	if ret := a.cfg.History.Retention; ret > 0 {
		n, err := a.history.DeleteBefore(ctx, time.Now().Add(-ret))
		if err != nil {
			return fmt.Errorf("pruning history: %w", err)
		}
		if n > 0 {
			a.logger.Info("pruned history", zap.Int64("records", n))
		}
	}
	return nil
}

// Close releases databases and flushes telemetry.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("closing resource", zap.Error(err))
		}
	}
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdown(ctx); err != nil {
			a.logger.Warn("shutting down telemetry", zap.Error(err))
		}
	}
}

// setup loads config, the logger and the app in one step for commands.
func setup(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	a, err := newApp(ctx, cfg, logger, opts)
	if err != nil {
		logger.Sync()
		return nil, err
	}
	return a, nil
}
