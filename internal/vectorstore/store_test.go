package vectorstore

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFloat32Blob(t *testing.T) {
	blob := encodeFloat32Blob([]float32{1.5, -2.0})
	require.Len(t, blob, 8)
	assert.Equal(t, float32(1.5), math.Float32frombits(binary.LittleEndian.Uint32(blob[0:4])))
	assert.Equal(t, float32(-2.0), math.Float32frombits(binary.LittleEndian.Uint32(blob[4:8])))
}

func TestBuildFilter(t *testing.T) {
	where, args := buildFilter(nil)
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = buildFilter(map[string]string{"kind": "web", "origin_query": "q"})
	assert.Equal(t, "WHERE d.origin_query = ? AND d.kind = ?", where)
	assert.Equal(t, []any{"q", "web"}, args)

	// Unknown keys are ignored rather than interpolated.
	where, args = buildFilter(map[string]string{"evil": "x'; DROP TABLE"})
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestStore_RoundTrip(t *testing.T) {
	store, err := Open(":memory:", 3)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	docs := []Document{
		{URL: "https://a.example", Title: "A", Content: "alpha", Kind: "web"},
		{URL: "https://b.example", Title: "B", Content: "beta", Kind: "web"},
		{URL: "https://c.example", Title: "C", Content: "gamma", Kind: "local"},
	}
	embeddings := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	}
	require.NoError(t, store.Upsert(ctx, docs, embeddings))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	matches, err := store.Query(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "https://a.example", matches[0].URL)
	assert.Equal(t, "https://c.example", matches[1].URL)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)

	// Metadata filter restricts the candidate set.
	matches, err = store.Query(ctx, []float32{1, 0, 0}, 5, map[string]string{"kind": "local"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "https://c.example", matches[0].URL)
}

func TestStore_DimensionMismatch(t *testing.T) {
	store, err := Open(":memory:", 3)
	require.NoError(t, err)
	defer store.Close()

	err = store.Upsert(context.Background(), []Document{{URL: "u", Content: "c"}}, [][]float32{{1, 2}})
	assert.Error(t, err)

	_, err = store.Query(context.Background(), []float32{1}, 5, nil)
	assert.Error(t, err)
}
