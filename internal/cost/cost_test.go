package cost

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Monotonic(t *testing.T) {
	tr := NewTracker(nil)

	var mu sync.Mutex
	var observed []float64

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tr.OnUsage(Usage{PromptTokens: rand.Intn(500), CompletionTokens: rand.Intn(500), Model: "gpt-4o"})
				mu.Lock()
				observed = append(observed, tr.Total())
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Every later observation within a goroutine is >= an earlier one; in
	// aggregate the final total must be the max.
	final := tr.Total()
	for _, v := range observed {
		assert.LessOrEqual(t, v, final)
	}
	assert.Greater(t, final, 0.0)
}

func TestTracker_AddCostRejectsNegative(t *testing.T) {
	tr := NewTracker(nil)
	require.NoError(t, tr.AddCost(0.5))
	assert.Error(t, tr.AddCost(-0.1))
	assert.Equal(t, 0.5, tr.Total())
}

func TestTracker_SnapshotCounts(t *testing.T) {
	tr := NewTracker(nil)
	tr.OnUsage(Usage{PromptTokens: 100, CompletionTokens: 50, Model: "gpt-4o-mini"})
	tr.OnUsage(Usage{PromptTokens: 10, CompletionTokens: 5, Model: "gpt-4o-mini"})

	snap := tr.Snapshot()
	assert.Equal(t, 110, snap.PromptTokens)
	assert.Equal(t, 55, snap.CompletionTokens)
	assert.Equal(t, 165, snap.TotalTokens)
}

func TestCalculate_UnknownModelUsesDefault(t *testing.T) {
	got := Calculate(500, 500, "never-heard-of-it")
	assert.InDelta(t, 0.0001, got, 1e-9)
}

func TestTracker_UpdateCallback(t *testing.T) {
	var snaps []Snapshot
	tr := NewTracker(func(s Snapshot) { snaps = append(snaps, s) })

	tr.OnUsage(Usage{PromptTokens: 1000, CompletionTokens: 0, Model: "gpt-4"})
	require.Len(t, snaps, 1)
	assert.InDelta(t, 0.03, snaps[0].TotalCost, 1e-9)
}
