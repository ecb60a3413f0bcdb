// Package prompt builds the two-message conversations sent to the model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/cverag/internal/llm"
)

// NoContext replaces an empty file/context input.
const NoContext = "No extra context given."

// Messages is a system instruction plus one user turn.
type Messages struct {
	System string
	User   string
}

// LLM renders the messages in order: system, then user.
func (m Messages) LLM() []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: m.System},
		{Role: llm.RoleUser, Content: m.User},
	}
}

// Field names of the two JSON response schemas.
var (
	VerifyFields   = []string{"cve", "used_correctly", "report_excerpt", "correct_description", "explanation"}
	DescribeFields = []string{"cve", "vendor", "product", "description"}
)

const cveSystemTemplate = `You are a CVE information system. You check how CVE identifiers are used in security reports and you describe CVEs by identifier.

Reference CVE descriptions (each ends with [DESCRIPTION_END]):
%s

Choose exactly ONE of the two modes below for your whole response. Never mix them.

MODE 1: VERIFY USAGE. Use this when the user asks whether the CVEs in a report or file are used correctly.
A CVE is used correctly only when the report describes the same vulnerability as its reference description. Citing a CVE that does not exist, attributing it to a different weakness, or applying it to the wrong product is incorrect usage, even if the report is otherwise accurate.
If the context contains a [[CVE_CORRECTION]] marker for a CVE, mark that CVE as used incorrectly and name the suggested identifier in the explanation.
Return one object per CVE found in the report with these fields:
%s

MODE 2: DESCRIBE. Use this when the user asks for information about CVE identifiers.
Return one object per requested CVE with these fields:
%s

Output rules:
- Respond with a single JSON array and nothing else.
- "used_correctly" is a JSON boolean; every other field is a string.
- Quote the report verbatim in "report_excerpt".`

// Assemble builds the CVE conversation. descriptions are the composed corpus
// descriptions (including not-found placeholders); non-empty notes, such as
// fallback annotations, follow them in both the system reference block and
// the returned side channel. An empty contextText becomes NoContext.
func Assemble(userPrompt, contextText string, descriptions []string, notes ...string) (Messages, []string) {
	if strings.TrimSpace(contextText) == "" {
		contextText = NoContext
	}

	side := make([]string, 0, len(descriptions)+len(notes))
	side = append(side, descriptions...)
	for _, n := range notes {
		if n != "" {
			side = append(side, n)
		}
	}

	refs := "None."
	if len(side) > 0 {
		refs = strings.Join(side, "\n")
	}

	msgs := Messages{
		System: fmt.Sprintf(cveSystemTemplate, refs, schema(VerifyFields), schema(DescribeFields)),
		User:   fmt.Sprintf("%s - File Input: %s", userPrompt, contextText),
	}
	return msgs, side
}

func schema(fields []string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + f + `"`
	}
	return "{" + strings.Join(quoted, ", ") + "}"
}

const defaultSystem = `You are a security assistant. Answer the question to the best of your knowledge, using the extra context when it is relevant.`

// DefaultMessages builds the plain chat conversation used for RAG types
// without a dedicated pipeline.
func DefaultMessages(userPrompt, contextText string) Messages {
	if strings.TrimSpace(contextText) == "" {
		contextText = NoContext
	}
	return Messages{
		System: defaultSystem,
		User:   fmt.Sprintf("Question: %s\nExtra context to answer question: %s", userPrompt, contextText),
	}
}
