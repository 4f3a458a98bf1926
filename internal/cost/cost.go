// Package cost tracks LLM spend for a research task. The tracker is a
// task-scoped monotonic accumulator fed by provider usage callbacks.
package cost

import (
	"fmt"
	"strings"
	"sync"

	"researchnerd/internal/logging"
)

// perThousandTokens maps lowercase model names to USD cost per 1k tokens.
// Unknown models fall back to defaultRate.
var perThousandTokens = map[string]float64{
	"gpt-4o":                 0.00001,
	"gpt-4o-mini":            0.000001,
	"o3-mini":                0.0000005,
	"gpt-4":                  0.03,
	"gpt-3.5-turbo":          0.002,
	"gemini-2.5-pro":         0.00325,
	"gemini-2.5-flash":       0.0007,
	"gemini-3-flash-preview": 0.0007,
	"gemini-embedding-001":   0.00013,
}

const defaultRate = 0.0001

// Usage is one provider-reported usage record.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	Model            string
}

// Callback receives usage as LLM calls complete.
type Callback func(Usage)

// Snapshot is a read-only view of accumulated spend.
type Snapshot struct {
	TotalTokens      int     `json:"total_tokens"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalCost        float64 `json:"total_cost"`
}

// Tracker accumulates token usage and dollar cost. All methods are safe for
// concurrent use; the total only ever increases.
type Tracker struct {
	mu               sync.Mutex
	promptTokens     int
	completionTokens int
	totalCost        float64

	onUpdate func(Snapshot)
}

// NewTracker creates an empty tracker. onUpdate, if non-nil, is invoked
// after every increment with the new snapshot.
func NewTracker(onUpdate func(Snapshot)) *Tracker {
	return &Tracker{onUpdate: onUpdate}
}

// OnUsage records a usage event, translating tokens to dollars via the
// per-model rate table.
func (t *Tracker) OnUsage(u Usage) {
	cost := Calculate(u.PromptTokens, u.CompletionTokens, u.Model)

	t.mu.Lock()
	t.promptTokens += u.PromptTokens
	t.completionTokens += u.CompletionTokens
	t.totalCost += cost
	snap := t.snapshotLocked()
	cb := t.onUpdate
	t.mu.Unlock()

	logging.Get(logging.CategoryAPI).Debug("usage: model=%s prompt=%d completion=%d cost=$%.6f total=$%.6f",
		u.Model, u.PromptTokens, u.CompletionTokens, cost, snap.TotalCost)

	if cb != nil {
		cb(snap)
	}
}

// AddCost adds a raw dollar amount (used by collaborators that report cost
// directly rather than tokens). Negative amounts are rejected to preserve
// monotonicity.
func (t *Tracker) AddCost(amount float64) error {
	if amount < 0 {
		return fmt.Errorf("cost must be non-negative, got %f", amount)
	}
	t.mu.Lock()
	t.totalCost += amount
	snap := t.snapshotLocked()
	cb := t.onUpdate
	t.mu.Unlock()

	if cb != nil {
		cb(snap)
	}
	return nil
}

// Total returns the accumulated dollar cost.
func (t *Tracker) Total() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalCost
}

// Snapshot returns the current totals.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{
		TotalTokens:      t.promptTokens + t.completionTokens,
		PromptTokens:     t.promptTokens,
		CompletionTokens: t.completionTokens,
		TotalCost:        t.totalCost,
	}
}

// Calculate converts a token count into dollars for the given model.
func Calculate(promptTokens, completionTokens int, model string) float64 {
	rate, ok := perThousandTokens[strings.ToLower(model)]
	if !ok {
		logging.Get(logging.CategoryAPI).Debug("unknown model %q, using default rate", model)
		rate = defaultRate
	}
	total := promptTokens + completionTokens
	return float64(total) / 1000 * rate
}
