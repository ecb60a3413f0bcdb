package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ziadkadry99/cverag/internal/chunker"
	"github.com/ziadkadry99/cverag/internal/indexer"
	"github.com/ziadkadry99/cverag/internal/progress"
	"github.com/ziadkadry99/cverag/internal/vectordb"
	"github.com/ziadkadry99/cverag/internal/walker"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build and query the embedding store",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Embed source documents into the store used to correct unknown CVEs",
	Long: `Walks the sources directory for .txt, .md and .pdf files, splits their text
into overlapping word windows, embeds every window with the configured
embedder and writes the (chunk, vector) rows to index.path. The extension
of the output path selects the format: .csv, .tsv or .db.`,
	RunE: runIndexBuild,
}

var indexSearchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Show the stored chunks nearest to a piece of text",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexSearch,
}

func init() {
	indexBuildCmd.Flags().String("sources", "", "directory to index (overrides index.sources)")
	indexBuildCmd.Flags().StringP("output", "o", "", "store to write (overrides index.path)")
	indexBuildCmd.Flags().Int("concurrency", 4, "parallel file reads and embedding calls")
	indexBuildCmd.Flags().Int("batch-size", indexer.DefaultBatchSize, "chunks per embedding call")
	indexSearchCmd.Flags().Int("k", vectordb.DefaultK, "number of chunks to return")

	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexSearchCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if s, _ := cmd.Flags().GetString("sources"); s != "" {
		cfg.Index.Sources = s
	}
	if o, _ := cmd.Flags().GetString("output"); o != "" {
		cfg.Index.Path = o
	}
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	batchSize, _ := cmd.Flags().GetInt("batch-size")

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	embedder, err := createEmbedderFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	files, err := walker.Walk(ctx, walker.Config{
		RootDir: cfg.Index.Sources,
		Include: cfg.Index.Include,
		Exclude: cfg.Index.Exclude,
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", cfg.Index.Sources, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no documents found under %s", cfg.Index.Sources)
	}
	logger.Info("found documents", zap.String("sources", cfg.Index.Sources), zap.Int("files", len(files)))

	pipeline := indexer.NewPipeline(embedder, indexer.Options{
		Chunking:    chunker.Options{Size: cfg.Index.ChunkSize, Overlap: cfg.Index.ChunkOverlap},
		BatchSize:   batchSize,
		Concurrency: concurrency,
	})

	out := cmd.ErrOrStderr()
	fileBar := progress.NewReporter("Chunking", out)
	fileBar.Start(len(files))
	pipeline.SetProgressFunc(func(processed, total int, current string) {
		fileBar.Update(processed, current)
	})

	// Embedding batches report concurrently.
	var mu sync.Mutex
	var embedBar progress.Reporter
	pipeline.SetEmbedProgressFunc(func(processed, total int, _ string) {
		mu.Lock()
		defer mu.Unlock()
		if embedBar == nil {
			fileBar.Finish()
			embedBar = progress.NewReporter("Embedding", out)
			embedBar.Start(total)
		}
		embedBar.Update(processed, "")
	})

	res, err := pipeline.Run(ctx, files, cfg.Index.Path)
	if embedBar != nil {
		embedBar.Finish()
	} else {
		fileBar.Finish()
	}
	if res != nil {
		for _, e := range res.Errors {
			logger.Warn("skipped document", zap.Error(e))
		}
	}
	if errors.Is(err, indexer.ErrNoChunks) {
		return fmt.Errorf("%w: every document under %s was empty or unreadable", err, cfg.Index.Sources)
	}
	if err != nil {
		return err
	}

	logger.Info("embedding store written",
		zap.String("path", cfg.Index.Path),
		zap.String("embedder", embedder.Name()),
		zap.Int("files", res.FilesProcessed),
		zap.Int("failed", res.FilesFailed),
		zap.Int("chunks", res.Chunks),
		zap.Int("dimensions", res.Dimensions),
		zap.Duration("duration", res.Duration),
	)
	return nil
}

func runIndexSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	k, _ := cmd.Flags().GetInt("k")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	embedder, err := createEmbedderFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	searcher, err := loadSearcher(ctx, cfg, embedder)
	if err != nil {
		return fmt.Errorf("loading embedding store %s: %w\nRun `cverag index build` first", cfg.Index.Path, err)
	}

	hits, err := vectordb.NewRetriever(embedder, searcher).Retrieve(ctx, args[0], k)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), vectordb.FormatResults(hits))
	return nil
}
