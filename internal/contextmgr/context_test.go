package contextmgr

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"researchnerd/internal/scraper"
)

// fakeEngine embeds by marking presence of a keyword so similarity is
// predictable: texts containing the key score 1, others 0.
type fakeEngine struct {
	key  string
	fail bool
}

func (f *fakeEngine) vector(text string) []float32 {
	if strings.Contains(strings.ToLower(text), f.key) {
		return []float32{1, 0}
	}
	return []float32{0, 1}
}

func (f *fakeEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.fail {
		return nil, fmt.Errorf("embedding backend down")
	}
	return f.vector(text), nil
}

func (f *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.fail {
		return nil, fmt.Errorf("embedding backend down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *fakeEngine) Dimensions() int { return 2 }
func (f *fakeEngine) Name() string    { return "fake" }

func sources() []scraper.Source {
	return []scraper.Source{
		{URL: "https://solar.example", Title: "Solar", RawText: "solar panels convert sunlight into power", Status: scraper.StatusSuccess},
		{URL: "https://cooking.example", Title: "Cooking", RawText: "how to bake sourdough bread at home", Status: scraper.StatusSuccess},
		{URL: "https://failed.example", Title: "Nope", RawText: "", Status: scraper.StatusFailed},
	}
}

func TestSimilarContent_RanksRelevantFirst(t *testing.T) {
	m := NewManager(&fakeEngine{key: "solar"}, nil, Config{})
	got := m.SimilarContent(context.Background(), "solar energy", sources())

	require.NotEmpty(t, got)
	solarIdx := strings.Index(got, "solar.example")
	cookingIdx := strings.Index(got, "cooking.example")
	require.NotEqual(t, -1, solarIdx)
	assert.True(t, cookingIdx == -1 || solarIdx < cookingIdx, "relevant source must rank first")
}

func TestSimilarContent_EmptyCandidates(t *testing.T) {
	m := NewManager(&fakeEngine{}, nil, Config{})
	assert.Equal(t, "", m.SimilarContent(context.Background(), "q", nil))
	assert.Equal(t, "", m.SimilarContent(context.Background(), "q", []scraper.Source{{URL: "u", Status: scraper.StatusFailed}}))
}

func TestSimilarContent_EmbeddingFailureFallsBackToLexical(t *testing.T) {
	m := NewManager(&fakeEngine{fail: true}, nil, Config{})
	got := m.SimilarContent(context.Background(), "sourdough bread", sources())

	require.NotEmpty(t, got, "lexical fallback must still produce a bounded context")
	cookingIdx := strings.Index(got, "cooking.example")
	solarIdx := strings.Index(got, "solar.example")
	require.NotEqual(t, -1, cookingIdx)
	assert.True(t, solarIdx == -1 || cookingIdx < solarIdx)
}

func TestSimilarContent_RespectsBudget(t *testing.T) {
	m := NewManager(nil, nil, Config{TokenBudget: 50, CharsPerToken: 4})

	long := strings.Repeat("relevant words about the query topic ", 50)
	got := m.SimilarContent(context.Background(), "relevant query", []scraper.Source{
		{URL: "https://a.example", Title: "A", RawText: long, Status: scraper.StatusSuccess},
		{URL: "https://b.example", Title: "B", RawText: long, Status: scraper.StatusSuccess},
	})

	assert.LessOrEqual(t, len(got), 200)
	if got != "" {
		// Budget cuts must land on a delimiter, never mid-word.
		assert.NotRegexp(t, `\S{40}$`, got)
	}
}

func TestSimilarContent_DedupsByURL(t *testing.T) {
	m := NewManager(nil, nil, Config{ChunkSize: 30, TopK: 10})
	text := strings.Repeat("query term content here ", 10)
	got := m.SimilarContent(context.Background(), "query term", []scraper.Source{
		{URL: "https://one.example", Title: "One", RawText: text, Status: scraper.StatusSuccess},
	})
	assert.Equal(t, 1, strings.Count(got, "Source: https://one.example"), "one entry per url")
}

func TestSplitChunks(t *testing.T) {
	chunks := splitChunks("short", 100)
	assert.Equal(t, []string{"short"}, chunks)

	text := strings.Repeat("word ", 100)
	chunks = splitChunks(text, 50)
	assert.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 50)
	}
}

func TestTruncateAtDelimiter(t *testing.T) {
	assert.Equal(t, "", truncateAtDelimiter("anything", 0))
	assert.Equal(t, "short", truncateAtDelimiter("short", 100))

	got := truncateAtDelimiter("one two three four", 12)
	assert.Equal(t, "one two", got)

	// No delimiter inside the limit: nothing useful to keep.
	assert.Equal(t, "", truncateAtDelimiter("abcdefghijklmnop", 5))
}

func TestLexicalOverlap(t *testing.T) {
	assert.Equal(t, 1.0, lexicalOverlap("go channels", "using go channels safely"))
	assert.Equal(t, 0.5, lexicalOverlap("go channels", "a story about go routines"))
	assert.Equal(t, 0.0, lexicalOverlap("", "content"))
}

func TestEstimateTokens_CharRatioFallback(t *testing.T) {
	// Unknown model falls back to the character ratio.
	assert.Equal(t, 3, EstimateTokens("unknown-model", strings.Repeat("a", 12), 4))
	assert.Equal(t, 1, EstimateTokens("", "abc", 4))
}
