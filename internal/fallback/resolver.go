package fallback

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/cverag/internal/cve"
	"github.com/ziadkadry99/cverag/internal/llm"
	"github.com/ziadkadry99/cverag/internal/vectordb"
)

// Retriever returns the chunks nearest to a piece of text.
type Retriever interface {
	Retrieve(ctx context.Context, text string, k int) ([]vectordb.Hit, error)
}

// Options tune a Resolver.
type Options struct {
	// Chunks is the number of reference chunks retrieved per identifier.
	Chunks int
	// Parallelism > 1 resolves that many identifiers at once. Output order
	// is unaffected.
	Parallelism int
	Logger      *zap.Logger
}

// Resolver proposes corrections for identifiers that have no corpus record.
// Each identifier costs two generate calls and one retrieval; nothing is
// retried.
type Resolver struct {
	gen         llm.Generator
	retriever   Retriever
	chunks      int
	parallelism int
	logger      *zap.Logger
	tracer      trace.Tracer
}

// NewResolver creates a Resolver.
func NewResolver(gen llm.Generator, retriever Retriever, opts Options) *Resolver {
	if opts.Chunks < 1 {
		opts.Chunks = vectordb.DefaultK
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Resolver{
		gen:         gen,
		retriever:   retriever,
		chunks:      opts.Chunks,
		parallelism: opts.Parallelism,
		logger:      opts.Logger.Named("fallback"),
		tracer:      otel.Tracer("github.com/ziadkadry99/cverag/internal/fallback"),
	}
}

// WithChunks returns a copy of r that retrieves k chunks per identifier.
// Values below one keep the current setting.
func (r *Resolver) WithChunks(k int) *Resolver {
	if k < 1 || k == r.chunks {
		return r
	}
	cp := *r
	cp.chunks = k
	return &cp
}

// Resolve returns one Correction per missing identifier, in the order given.
// The first failure aborts the whole call and is returned as a *StageError.
func (r *Resolver) Resolve(ctx context.Context, missing []cve.ID, sourceText string) ([]Correction, error) {
	if len(missing) == 0 {
		return nil, nil
	}

	ctx, span := r.tracer.Start(ctx, "fallback.resolve",
		trace.WithAttributes(attribute.Int("cve.missing", len(missing))))
	defer span.End()

	out := make([]Correction, len(missing))

	if r.parallelism == 1 {
		for i, id := range missing {
			c, err := r.resolveOne(ctx, id, sourceText)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i, id := range missing {
		g.Go(func() error {
			c, err := r.resolveOne(gctx, id, sourceText)
			if err != nil {
				return err
			}
			out[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

func (r *Resolver) resolveOne(ctx context.Context, id cve.ID, sourceText string) (Correction, error) {
	ctx, span := r.tracer.Start(ctx, "fallback.identifier",
		trace.WithAttributes(attribute.String("cve.id", id.String())))
	defer span.End()
	start := time.Now()

	candidate, err := r.gen.Generate(ctx, describeMessages(id, sourceText))
	if err != nil {
		return Correction{}, &StageError{Stage: StageDescribe, ID: id, Err: err}
	}
	candidate = strings.TrimSpace(candidate)

	hits, err := r.retriever.Retrieve(ctx, candidate, r.chunks)
	if err != nil {
		return Correction{}, &StageError{Stage: StageRetrieve, ID: id, Err: err}
	}
	chunks := vectordb.Chunks(hits)

	suggested, err := r.gen.Generate(ctx, recommendMessages(vectordb.BulletList(chunks), candidate))
	if err != nil {
		return Correction{}, &StageError{Stage: StageRecommend, ID: id, Err: err}
	}

	c := Correction{
		Original:             id,
		Suggested:            strings.TrimSpace(suggested),
		CandidateDescription: candidate,
		Context:              chunks,
	}
	span.SetAttributes(attribute.String("cve.suggested", c.Suggested))
	r.logger.Info("proposed correction",
		zap.Stringer("cve", id),
		zap.String("suggested", c.Suggested),
		zap.Int("chunks", len(chunks)),
		zap.Duration("duration", time.Since(start)),
	)
	return c, nil
}
