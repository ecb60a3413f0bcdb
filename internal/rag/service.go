package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ziadkadry99/cverag/internal/cve"
	"github.com/ziadkadry99/cverag/internal/history"
	"github.com/ziadkadry99/cverag/internal/llm"
	"github.com/ziadkadry99/cverag/internal/normalize"
	"github.com/ziadkadry99/cverag/internal/prompt"
	"github.com/ziadkadry99/cverag/internal/vectordb"
)

// TypeCVE selects the CVE pipeline. Any other RAG type gets the plain chat
// conversation.
const TypeCVE = "CVE"

// DefaultRAGTypes is the menu offered to clients.
var DefaultRAGTypes = []string{TypeCVE, "Threat Intelligence", "Pen-Testing", "Malware"}

var (
	// ErrEmptyPrompt is returned for requests without a question.
	ErrEmptyPrompt = errors.New("prompt is required")
	// ErrPipelineUnavailable is returned when a CVE request arrives but no
	// corpus is configured.
	ErrPipelineUnavailable = errors.New("CVE pipeline is not configured")
)

// Request is one question from a client.
type Request struct {
	Prompt   string   `json:"prompt"`
	Model    string   `json:"model"`
	RAGTypes []string `json:"ragTypes"`
	Chunks   int      `json:"chunks"`
	// Context is the text of an uploaded file, if any.
	Context string `json:"context,omitempty"`
}

// IsCVE reports whether the request selects the CVE pipeline.
func (r Request) IsCVE() bool {
	for _, t := range r.RAGTypes {
		if strings.EqualFold(strings.TrimSpace(t), TypeCVE) {
			return true
		}
	}
	return false
}

// Result is the answer returned to the client.
type Result struct {
	ID       string   `json:"id,omitempty"`
	Response string   `json:"response"`
	Chunks   []string `json:"chunks"`
}

// Options configure a Service.
type Options struct {
	// Timeout bounds each request. Zero means no deadline beyond the
	// caller's context.
	Timeout time.Duration
	// History, when set, records every request.
	History  *history.Store
	RAGTypes []string
	Logger   *zap.Logger
}

// Service answers prompts with the configured models.
type Service struct {
	models   *llm.Registry
	cve      *CVEPipeline
	history  *history.Store
	timeout  time.Duration
	ragTypes []string
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewService creates a Service. pipeline may be nil, in which case CVE
// requests fail with ErrPipelineUnavailable.
func NewService(models *llm.Registry, pipeline *CVEPipeline, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.RAGTypes) == 0 {
		opts.RAGTypes = DefaultRAGTypes
	}
	return &Service{
		models:   models,
		cve:      pipeline,
		history:  opts.History,
		timeout:  opts.Timeout,
		ragTypes: opts.RAGTypes,
		logger:   opts.Logger.Named("rag"),
		tracer:   otel.Tracer(tracerName),
	}
}

// Models returns the caller-facing model names.
func (s *Service) Models() []string { return s.models.Names() }

// RAGTypes returns the RAG types offered to clients.
func (s *Service) RAGTypes() []string {
	out := make([]string, len(s.ragTypes))
	copy(out, s.ragTypes)
	return out
}

// Pipeline returns the CVE pipeline, which may be nil.
func (s *Service) Pipeline() *CVEPipeline { return s.cve }

// Prompt answers one request. CVE requests have their model output trimmed
// to the JSON array; other requests return the model text as is.
func (s *Service) Prompt(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if req.Chunks < 1 {
		req.Chunks = vectordb.DefaultK
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ctx, span := s.tracer.Start(ctx, "rag.prompt", trace.WithAttributes(
		attribute.String("rag.model", req.Model),
		attribute.StringSlice("rag.types", req.RAGTypes),
		attribute.Int("rag.chunks", req.Chunks),
	))
	defer span.End()

	start := time.Now()
	rec := history.Record{
		Model:   req.Model,
		RAGType: strings.Join(req.RAGTypes, ","),
		Prompt:  req.Prompt,
		Chunks:  req.Chunks,
	}

	res, err := s.answer(ctx, req, &rec)
	rec.Duration = time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		rec.Error = err.Error()
		s.logger.Warn("prompt failed", zap.String("model", req.Model), zap.Error(err))
	} else {
		s.logger.Info("prompt answered",
			zap.String("model", rec.Model),
			zap.String("rag_type", rec.RAGType),
			zap.Int("identifiers", len(rec.Identifiers)),
			zap.Int("missing", len(rec.Missing)),
			zap.Duration("duration", rec.Duration),
		)
	}

	if s.history != nil {
		// The request context may already be past its deadline.
		id, herr := s.history.Log(context.WithoutCancel(ctx), rec)
		if herr != nil {
			s.logger.Warn("recording history", zap.Error(herr))
		} else if res != nil {
			res.ID = id
		}
	}
	return res, err
}

func (s *Service) answer(ctx context.Context, req Request, rec *history.Record) (*Result, error) {
	model, err := s.models.Lookup(req.Model)
	if err != nil {
		return nil, err
	}
	rec.Model = model.Name

	var (
		msgs prompt.Messages
		side []string
	)
	if req.IsCVE() {
		if s.cve == nil {
			return nil, ErrPipelineUnavailable
		}
		b, err := s.cve.Build(ctx, req.Prompt, req.Context, req.Chunks)
		if err != nil {
			return nil, fmt.Errorf("building CVE prompt: %w", err)
		}
		msgs, side = b.Messages, b.SideChannel
		rec.Identifiers = idStrings(b.Identifiers)
		rec.Missing = idStrings(b.Missing)
		rec.Corrections = b.Corrections
	} else {
		msgs = prompt.DefaultMessages(req.Prompt, req.Context)
	}

	ctx, span := s.tracer.Start(ctx, "rag.generate", trace.WithAttributes(attribute.String("llm.model", model.Name)))
	text, err := model.Generate(ctx, msgs.LLM())
	span.End()
	if err != nil {
		return nil, fmt.Errorf("generating with %s: %w", model.Name, err)
	}

	if req.IsCVE() {
		text = normalize.ExtractJSONArray(text)
	}
	if side == nil {
		side = []string{}
	}
	return &Result{Response: text, Chunks: side}, nil
}

func idStrings(ids []cve.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
