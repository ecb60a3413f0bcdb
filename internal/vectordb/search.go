package vectordb

import (
	"fmt"
	"strings"
)

// FormatResults renders search hits as human-readable text.
func FormatResults(hits []Hit) string {
	if len(hits) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d result(s):\n\n", len(hits)))

	for i, h := range hits {
		sb.WriteString(fmt.Sprintf("--- Result %d (row %d, score: %.4f) ---\n", i+1, h.Row, h.Score))
		sb.WriteString(h.Chunk)
		sb.WriteString("\n\n")
	}

	return sb.String()
}

// BulletList joins chunks as "- <chunk>" lines.
func BulletList(chunks []string) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("- ")
		sb.WriteString(c)
	}
	return sb.String()
}
