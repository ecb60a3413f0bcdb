package mcp

import "github.com/mark3labs/mcp-go/mcp"

// extractCVEsTool defines the extract_cves MCP tool.
var extractCVEsTool = mcp.NewTool("extract_cves",
	mcp.WithDescription("Find every distinct CVE identifier cited in a piece of text, in order of first appearance."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("Report or free text to scan"),
	),
)

// lookupCVEsTool defines the lookup_cves MCP tool.
var lookupCVEsTool = mcp.NewTool("lookup_cves",
	mcp.WithDescription("Look up CVE identifiers in the local CVE corpus and return their vendor, product, and description."),
	mcp.WithString("ids",
		mcp.Required(),
		mcp.Description("CVE identifiers separated by commas or spaces, or any text that cites them"),
	),
)

// askTool defines the ask MCP tool.
var askTool = mcp.NewTool("ask",
	mcp.WithDescription("Ask a security question. With rag_type CVE the answer is grounded on the CVE corpus and returned as a JSON array."),
	mcp.WithString("prompt",
		mcp.Required(),
		mcp.Description("The question to answer"),
	),
	mcp.WithString("context",
		mcp.Description("Extra context such as the text of a report"),
	),
	mcp.WithString("model",
		mcp.Description("Model name from the configured menu (default model when omitted)"),
	),
	mcp.WithString("rag_type",
		mcp.Description("RAG type (default CVE)"),
	),
	mcp.WithNumber("chunks",
		mcp.Description("Number of reference chunks retrieved for unknown CVEs (default 5)"),
	),
)
