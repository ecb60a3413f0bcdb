package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/cverag/internal/llm"
)

func TestAssemble(t *testing.T) {
	descs := []string{
		"CVE Number: CVE-2024-0008, Vendor: Palo Alto Networks, Product: PAN-OS, Description: x [DESCRIPTION_END]",
		"CVE Number: CVE-2099-99999, Description: This CVE does not exist in the database. [DESCRIPTION_END]",
	}
	msgs, side := Assemble("Verify the CVEs", "report body", descs)

	for _, d := range descs {
		assert.Contains(t, msgs.System, d)
	}
	for _, f := range append(VerifyFields, DescribeFields...) {
		assert.Contains(t, msgs.System, `"`+f+`"`)
	}
	assert.Contains(t, msgs.System, "JSON array")
	assert.Equal(t, "Verify the CVEs - File Input: report body", msgs.User)
	assert.Equal(t, descs, side)
}

func TestAssembleNotesAndEmptyContext(t *testing.T) {
	note := "[[CVE_CORRECTION]: CVE-2099-99999 is used incorrectly, the correct identifier is: CVE-2021-44228]"
	msgs, side := Assemble("Describe", "  ", nil, "", note)

	assert.True(t, strings.HasSuffix(msgs.User, "File Input: "+NoContext))
	assert.Contains(t, msgs.System, note)
	assert.NotContains(t, msgs.System, "None.")
	assert.Equal(t, []string{note}, side)

	empty, side := Assemble("Describe", "", nil, "")
	assert.Contains(t, empty.System, "None.")
	assert.Empty(t, side)
}

func TestMessagesLLM(t *testing.T) {
	out := Messages{System: "s", User: "u"}.LLM()
	require.Len(t, out, 2)
	assert.Equal(t, llm.Message{Role: llm.RoleSystem, Content: "s"}, out[0])
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "u"}, out[1])
}

func TestDefaultMessages(t *testing.T) {
	m := DefaultMessages("What is a threat intelligence report?", "")
	assert.Equal(t, "Question: What is a threat intelligence report?\nExtra context to answer question: "+NoContext, m.User)
	assert.NotEmpty(t, m.System)
}
