package jsonx

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshal_StrictMatchesEncodingJSON(t *testing.T) {
	input := `{"server":"researcher","agent_role_prompt":"You research things."}`

	var strict, tolerant map[string]string
	require.NoError(t, json.Unmarshal([]byte(input), &strict))
	require.NoError(t, Unmarshal(input, &tolerant))

	if diff := cmp.Diff(strict, tolerant); diff != "" {
		t.Errorf("tolerant parse differs from strict (-strict +tolerant):\n%s", diff)
	}
}

func TestUnmarshal_MarkdownFence(t *testing.T) {
	input := "```json\n{\"queries\": [\"a\", \"b\"]}\n```"

	var out map[string][]string
	require.NoError(t, Unmarshal(input, &out))
	assert.Equal(t, []string{"a", "b"}, out["queries"])
}

func TestUnmarshal_TrailingComma(t *testing.T) {
	input := `{"a": 1, "b": 2,}`

	var out map[string]int
	require.NoError(t, Unmarshal(input, &out))
	assert.Equal(t, 2, out["b"])
}

func TestUnmarshal_EmbeddedObject(t *testing.T) {
	input := `Sure! Here is the selection you asked for: {"selected_tools": [{"index": 0}]} Let me know.`

	var out struct {
		SelectedTools []struct {
			Index int `json:"index"`
		} `json:"selected_tools"`
	}
	require.NoError(t, Unmarshal(input, &out))
	require.Len(t, out.SelectedTools, 1)
	assert.Equal(t, 0, out.SelectedTools[0].Index)
}

func TestUnmarshal_NotJSON(t *testing.T) {
	var out map[string]any
	assert.Error(t, Unmarshal("not-json", &out))
}

func TestExtract_BracesInsideStrings(t *testing.T) {
	input := `prefix {"msg": "a { b } c", "ok": true} suffix`
	got := Extract(input)
	assert.Equal(t, `{"msg": "a { b } c", "ok": true}`, got)
}

func TestExtract_Unbalanced(t *testing.T) {
	assert.Equal(t, "", Extract(`{"open": 1`))
	assert.Equal(t, "", Extract("no json here"))
}

func TestStringList(t *testing.T) {
	assert.Equal(t, []string{"x", "y", "z"}, StringList(`["x", "y", "z"]`))
	assert.Equal(t, []string{"x"}, StringList("```json\n[\"x\"]\n```"))
	assert.Nil(t, StringList("nope"))
}

func TestStringList_MixedTypes(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, StringList(`["a", 3, "b", null]`))
}
