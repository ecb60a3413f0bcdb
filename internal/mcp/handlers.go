package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/cverag/internal/cve"
	"github.com/ziadkadry99/cverag/internal/rag"
)

// handleExtractCVEs returns the identifiers cited in the text as a JSON array.
func (s *Server) handleExtractCVEs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}

	ids := cve.Extract(text)
	if ids == nil {
		ids = []cve.ID{}
	}
	out, err := json.Marshal(ids)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding identifiers: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// handleLookupCVEs reads the cited identifiers from the corpus.
func (s *Server) handleLookupCVEs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("ids")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: ids"), nil
	}

	pipeline := s.service.Pipeline()
	if pipeline == nil {
		return mcp.NewToolResultError("the CVE corpus is not configured"), nil
	}

	ids := cve.Extract(raw)
	if len(ids) == 0 {
		return mcp.NewToolResultText("No CVE identifiers found in the input."), nil
	}

	res, err := pipeline.Corpus().Lookup(ctx, ids)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatLookup(res)), nil
}

// handleAsk runs a prompt through the service.
func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := request.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: prompt"), nil
	}

	req := rag.Request{
		Prompt:   prompt,
		Model:    request.GetString("model", ""),
		RAGTypes: []string{request.GetString("rag_type", rag.TypeCVE)},
		Chunks:   request.GetInt("chunks", 0),
		Context:  request.GetString("context", ""),
	}

	res, err := s.service.Prompt(ctx, req)
	if errors.Is(err, rag.ErrEmptyPrompt) {
		return mcp.NewToolResultError("prompt must not be empty"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("prompt failed: %v", err)), nil
	}
	return mcp.NewToolResultText(res.Response), nil
}

// formatLookup renders found records followed by missing identifiers.
func formatLookup(res *cve.LookupResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d of %d identifier(s):\n", len(res.Found), len(res.Found)+len(res.NotFound)))

	for _, r := range res.Found {
		sb.WriteString(fmt.Sprintf("\n--- %s ---\n", r.ID))
		if r.Vendor != "" {
			sb.WriteString(fmt.Sprintf("Vendor: %s\n", r.Vendor))
		}
		if r.Product != "" {
			sb.WriteString(fmt.Sprintf("Product: %s\n", r.Product))
		}
		sb.WriteString(r.Description)
		sb.WriteString("\n")
	}

	if len(res.NotFound) > 0 {
		missing := make([]string, len(res.NotFound))
		for i, id := range res.NotFound {
			missing[i] = id.String()
		}
		sb.WriteString(fmt.Sprintf("\nNot in the corpus: %s\n", strings.Join(missing, ", ")))
	}

	return sb.String()
}
