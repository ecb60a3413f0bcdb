package fallback

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/cverag/internal/cve"
)

// Correction is the outcome of resolving one identifier that has no corpus
// record.
type Correction struct {
	Original cve.ID `json:"original"`
	// Suggested is the model's answer with surrounding whitespace trimmed.
	// It is not checked against the corpus.
	Suggested            string   `json:"suggested"`
	CandidateDescription string   `json:"candidate_description"`
	Context              []string `json:"context,omitempty"`
}

// Annotation renders the inline marker appended to the prompt context.
func (c Correction) Annotation() string {
	return fmt.Sprintf("[[CVE_CORRECTION]: %s is used incorrectly, the correct identifier is: %s]",
		c.Original, strings.TrimSpace(c.Suggested))
}

// Annotations joins the annotations of cs, one per line, in order.
func Annotations(cs []Correction) string {
	lines := make([]string, len(cs))
	for i, c := range cs {
		lines[i] = c.Annotation()
	}
	return strings.Join(lines, "\n")
}
