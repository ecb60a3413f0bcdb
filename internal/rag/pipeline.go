// Package rag ties identifier lookup, fallback resolution and prompt
// assembly into the request flow served by the HTTP, MCP and CLI surfaces.
package rag

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ziadkadry99/cverag/internal/cve"
	"github.com/ziadkadry99/cverag/internal/fallback"
	"github.com/ziadkadry99/cverag/internal/prompt"
)

const tracerName = "github.com/ziadkadry99/cverag/internal/rag"

// Build is everything the CVE pipeline produced for one request.
type Build struct {
	Messages prompt.Messages
	// SideChannel holds the corpus descriptions followed by the correction
	// annotations, for display next to the answer.
	SideChannel []string
	Identifiers []cve.ID
	Missing     []cve.ID
	Corrections []fallback.Correction
}

// CVEPipeline turns a question and its context into the CVE conversation.
type CVEPipeline struct {
	corpus   *cve.Corpus
	resolver *fallback.Resolver
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewCVEPipeline creates a pipeline. A nil resolver disables fallback
// resolution; missing identifiers then keep only their placeholder
// description.
func NewCVEPipeline(corpus *cve.Corpus, resolver *fallback.Resolver, logger *zap.Logger) *CVEPipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CVEPipeline{
		corpus:   corpus,
		resolver: resolver,
		logger:   logger.Named("rag"),
		tracer:   otel.Tracer(tracerName),
	}
}

// Corpus returns the corpus the pipeline reads from.
func (p *CVEPipeline) Corpus() *cve.Corpus { return p.corpus }

// BuildMessages returns the conversation for userPrompt and the side-channel
// strings shown alongside the answer. chunkCount is the number of reference
// chunks retrieved per unresolved identifier.
func (p *CVEPipeline) BuildMessages(ctx context.Context, userPrompt, contextText string, chunkCount int) (prompt.Messages, []string, error) {
	b, err := p.Build(ctx, userPrompt, contextText, chunkCount)
	if err != nil {
		return prompt.Messages{}, nil, err
	}
	return b.Messages, b.SideChannel, nil
}

// Build runs extraction, lookup, fallback and assembly.
func (p *CVEPipeline) Build(ctx context.Context, userPrompt, contextText string, chunkCount int) (*Build, error) {
	ctx, span := p.tracer.Start(ctx, "rag.cve.build")
	defer span.End()

	source := joinNonEmpty(userPrompt, contextText)
	ids := cve.Extract(source)
	span.SetAttributes(attribute.Int("cve.identifiers", len(ids)))

	res, err := p.corpus.Lookup(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	b := &Build{Identifiers: ids, Missing: res.NotFound}

	var annotations string
	if len(res.NotFound) > 0 && p.resolver != nil {
		corrections, err := p.resolver.WithChunks(chunkCount).Resolve(ctx, res.NotFound, source)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		b.Corrections = corrections
		annotations = fallback.Annotations(corrections)
		contextText = joinNonEmpty(contextText, annotations)
	}

	b.Messages, b.SideChannel = prompt.Assemble(userPrompt, contextText, res.Descriptions, annotations)

	p.logger.Debug("built CVE prompt",
		zap.Int("identifiers", len(ids)),
		zap.Int("found", len(res.Found)),
		zap.Int("missing", len(res.NotFound)),
		zap.Int("corrections", len(b.Corrections)),
	)
	return b, nil
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
