package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelect(t *testing.T) {
	assert.IsType(t, DefaultFamily{}, Select("gpt-4o"))
	assert.IsType(t, DefaultFamily{}, Select("gemini-2.5-flash"))
	assert.IsType(t, GraniteFamily{}, Select("granite-3.1-8b-instruct"))
	assert.IsType(t, GraniteFamily{}, Select("ibm/GRANITE-13b"))
}

func TestSearchQueriesPrompt_CountAndTask(t *testing.T) {
	p := DefaultFamily{}.SearchQueriesPrompt("solar panels", "", "research_report", 3, "")
	assert.Contains(t, p, "Write 3 google search queries")
	assert.Contains(t, p, `"solar panels"`)
	assert.Contains(t, p, `"query 3"`)
}

func TestSearchQueriesPrompt_SubtopicUsesParent(t *testing.T) {
	p := DefaultFamily{}.SearchQueriesPrompt("efficiency", "solar panels", "subtopic_report", 2, "")
	assert.Contains(t, p, "solar panels - efficiency")
}

func TestJoinLocalWebDocuments(t *testing.T) {
	d := DefaultFamily{}
	assert.Equal(t, "web", d.JoinLocalWebDocuments("", "web"))
	assert.Equal(t, "docs", d.JoinLocalWebDocuments("docs", ""))

	joined := d.JoinLocalWebDocuments("docs", "web")
	docsIdx := strings.Index(joined, "docs")
	webIdx := strings.Index(joined, "web sources")
	assert.Less(t, docsIdx, webIdx, "documents must come first")
}

func TestGraniteJoinDiffers(t *testing.T) {
	def := DefaultFamily{}.JoinLocalWebDocuments("a", "b")
	gran := GraniteFamily{}.JoinLocalWebDocuments("a", "b")
	assert.NotEqual(t, def, gran)
	assert.Contains(t, gran, "<document>")
}

func TestMCPToolSelectionPrompt(t *testing.T) {
	p := DefaultFamily{}.MCPToolSelectionPrompt("q", []ToolInfo{
		{Index: 0, Name: "search_docs", Description: "Searches docs"},
		{Index: 1, Name: "noop"},
	}, 2)
	assert.Contains(t, p, "0. search_docs: Searches docs")
	assert.Contains(t, p, "1. noop: No description available")
	assert.Contains(t, p, "selected_tools")
}
