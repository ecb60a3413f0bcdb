package fallback

import (
	"fmt"

	"github.com/ziadkadry99/cverag/internal/cve"
	"github.com/ziadkadry99/cverag/internal/llm"
)

const describeSystem = `You are a security analyst. You read vulnerability reports and summarise what a cited CVE identifier is being used to describe.`

const describeUser = `The identifier %s does not exist in the CVE database but is cited in the text below.
In at most two sentences, describe the vulnerability the text attributes to %s: the affected product, the weakness, and its impact. Reply with the description only.

Text:
%s`

const recommendSystem = `You are a CVE lookup assistant. Use only the following reference material, one entry per line:
%s`

const recommendUser = `Which single CVE identifier from the reference material best matches this description?
Description: %s
Answer with the identifier only, in the form CVE-YYYY-NNNN, and no other text.`

func describeMessages(id cve.ID, sourceText string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: describeSystem},
		{Role: llm.RoleUser, Content: fmt.Sprintf(describeUser, id, id, sourceText)},
	}
}

func recommendMessages(contextBlock, candidate string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(recommendSystem, contextBlock)},
		{Role: llm.RoleUser, Content: fmt.Sprintf(recommendUser, candidate)},
	}
}
