package mcp

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_EnvelopeStructuredResults(t *testing.T) {
	payload := map[string]any{
		"structured_content": map[string]any{
			"results": []any{
				map[string]any{"title": "Doc A", "url": "https://a.example", "content": "body a"},
				map[string]any{"title": "Doc B", "href": "https://b.example", "body": "body b"},
			},
		},
	}
	got := Normalize("search_docs", payload)
	require.Len(t, got, 2)
	assert.Equal(t, Result{Title: "Doc A", Href: "https://a.example", Body: "body a"}, got[0])
	assert.Equal(t, Result{Title: "Doc B", Href: "https://b.example", Body: "body b"}, got[1])
}

func TestNormalize_EnvelopeStructuredSingle(t *testing.T) {
	payload := map[string]any{
		"structured_content": map[string]any{
			"title":   "Single",
			"url":     "https://one.example",
			"content": "only one",
		},
	}
	got := Normalize("tool", payload)
	require.Len(t, got, 1)
	assert.Equal(t, "Single", got[0].Title)
	assert.Equal(t, "https://one.example", got[0].Href)
	assert.Equal(t, "only one", got[0].Body)
}

func TestNormalize_EnvelopeContentParts(t *testing.T) {
	payload := map[string]any{
		"content": []any{
			map[string]any{"type": "text", "text": "part one"},
			map[string]any{"type": "text", "text": "part two"},
		},
	}
	got := Normalize("fetch_page", payload)
	require.Len(t, got, 1)
	assert.Equal(t, "Result from fetch_page", got[0].Title)
	assert.Equal(t, "mcp://fetch_page", got[0].Href)
	assert.Equal(t, "part one\n\npart two", got[0].Body)
}

func TestNormalize_EnvelopeContentString(t *testing.T) {
	got := Normalize("t", map[string]any{"content": "plain text"})
	require.Len(t, got, 1)
	assert.Equal(t, "plain text", got[0].Body)
}

func TestNormalize_List(t *testing.T) {
	payload := []any{
		map[string]any{"title": "Hit", "content": "c", "url": "https://hit.example"},
		map[string]any{"other": "shape"},
		"bare string",
	}
	got := Normalize("lister", payload)
	require.Len(t, got, 3)
	assert.Equal(t, "Hit", got[0].Title)
	assert.Equal(t, "https://hit.example", got[0].Href)
	assert.Equal(t, "Result from lister", got[1].Title)
	assert.Equal(t, "mcp://lister/1", got[1].Href)
	assert.Equal(t, "bare string", got[2].Body)
	assert.Equal(t, "mcp://lister/2", got[2].Href)
}

func TestNormalize_PlainMap(t *testing.T) {
	got := Normalize("t", map[string]any{"title": "T", "body": "B", "href": "https://x.example"})
	require.Len(t, got, 1)
	assert.Equal(t, Result{Title: "T", Href: "https://x.example", Body: "B"}, got[0])
}

func TestNormalize_Scalar(t *testing.T) {
	got := Normalize("calc", 42.0)
	require.Len(t, got, 1)
	assert.Equal(t, "Result from calc", got[0].Title)
	assert.Equal(t, "mcp://calc", got[0].Href)
	assert.Equal(t, "42", got[0].Body)
}

// Normalizing an already-normalized entry must yield the same entry.
func TestNormalize_Idempotent(t *testing.T) {
	entry := map[string]any{"title": "T", "href": "https://x.example", "body": "B"}

	first := Normalize("tool", entry)
	require.Len(t, first, 1)

	roundTripped := map[string]any{
		"title": first[0].Title,
		"href":  first[0].Href,
		"body":  first[0].Body,
	}
	second := Normalize("tool", roundTripped)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("normalizer is not idempotent (-first +second):\n%s", diff)
	}

	// Same for a list of normalized entries.
	listFirst := Normalize("tool", []any{entry, entry})
	listSecond := Normalize("tool", []any{roundTripped, roundTripped})
	if diff := cmp.Diff(listFirst, listSecond); diff != "" {
		t.Errorf("list normalization is not idempotent:\n%s", diff)
	}
}

func TestNormalizeRaw(t *testing.T) {
	raw := json.RawMessage(`{"content":[{"type":"text","text":"hello"}]}`)
	got := NormalizeRaw("t", raw)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Body)

	assert.Nil(t, NormalizeRaw("t", nil))

	// Invalid JSON is stringified, not dropped.
	got = NormalizeRaw("t", json.RawMessage("not-json"))
	require.Len(t, got, 1)
	assert.Equal(t, "not-json", got[0].Body)
}
