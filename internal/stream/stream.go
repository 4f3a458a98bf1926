// Package stream publishes structured progress events for a research task.
// Events flow through a bounded channel to an optional subscriber; with no
// subscriber attached the publisher degrades to category logging only.
package stream

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"researchnerd/internal/logging"
)

// Kind tags an event for the subscriber.
type Kind string

const (
	KindLogs     Kind = "logs"
	KindCost     Kind = "cost"
	KindImages   Kind = "images"
	KindTool     Kind = "tool"
	KindProgress Kind = "research_progress"
	KindError    Kind = "error"
	KindReport   Kind = "report"
)

// essential kinds use blocking delivery; everything else is drop-oldest.
func (k Kind) essential() bool {
	return k == KindCost || k == KindError
}

// Event is one JSON-shaped progress record.
type Event struct {
	ID      string         `json:"id"`
	Kind    Kind           `json:"type"`
	Content string         `json:"content"`
	Output  string         `json:"output"`
	Meta    map[string]any `json:"metadata,omitempty"`
}

// DefaultBuffer is the subscriber channel capacity.
const DefaultBuffer = 256

// Publisher multiplexes task progress to at most one subscriber.
type Publisher struct {
	mu         sync.Mutex
	ch         chan Event
	closed     bool
	subscribed bool
}

// NewPublisher creates a publisher with the default buffer.
func NewPublisher() *Publisher {
	return &Publisher{ch: make(chan Event, DefaultBuffer)}
}

// Events returns the subscriber channel and attaches the subscriber. Until
// this is called, published events are logged and discarded. The channel is
// closed by Close.
func (p *Publisher) Events() <-chan Event {
	p.mu.Lock()
	p.subscribed = true
	p.mu.Unlock()
	return p.ch
}

// Publish delivers an event. Essential kinds (cost, error) block until the
// subscriber drains; other kinds drop the oldest buffered event under
// back-pressure so a slow subscriber never stalls research.
func (p *Publisher) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	logging.Get(logging.CategoryStream).Debug("[%s] %s: %s", ev.Kind, ev.Content, ev.Output)

	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !p.subscribed {
		return
	}

	if ev.Kind.essential() {
		// The lock is held across the send so Close cannot race the channel.
		// The buffer keeps this from deadlocking against a live subscriber.
		p.ch <- ev
		return
	}

	// Bounded eviction: a buffer somehow full of essential events drops
	// the new non-essential event instead of spinning.
	for attempt := 0; attempt <= DefaultBuffer; attempt++ {
		select {
		case p.ch <- ev:
			return
		default:
		}
		// Buffer full: evict the oldest non-essential slot and retry.
		select {
		case old := <-p.ch:
			if old.Kind.essential() {
				// Never drop an essential event; re-deliver it first.
				p.ch <- old
			} else {
				logging.Get(logging.CategoryStream).Debug("dropped %s event under back-pressure", old.Kind)
			}
		default:
		}
	}
	logging.Get(logging.CategoryStream).Debug("dropped %s event, buffer saturated with essential events", ev.Kind)
}

// Close closes the subscriber channel. Further publishes are no-ops.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
}

// Log publishes a free-form progress line.
func (p *Publisher) Log(content, format string, args ...any) {
	p.Publish(Event{Kind: KindLogs, Content: content, Output: fmt.Sprintf(format, args...)})
}

// Error publishes an error event.
func (p *Publisher) Error(format string, args ...any) {
	p.Publish(Event{Kind: KindError, Content: "error", Output: fmt.Sprintf(format, args...)})
}

// Cost publishes a cost update.
func (p *Publisher) Cost(totalTokens, promptTokens, completionTokens int, totalCost float64) {
	p.Publish(Event{
		Kind:    KindCost,
		Content: "cost_update",
		Output:  fmt.Sprintf("$%.4f", totalCost),
		Meta: map[string]any{
			"total_tokens":      totalTokens,
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_cost":        totalCost,
		},
	})
}

// Images publishes a batch of discovered image URLs.
func (p *Publisher) Images(urls []string) {
	if len(urls) == 0 {
		return
	}
	p.Publish(Event{
		Kind:    KindImages,
		Content: "selected_images",
		Output:  fmt.Sprintf("%d images", len(urls)),
		Meta:    map[string]any{"urls": urls},
	})
}

// Tool publishes a tool lifecycle event. Stage is "start" or "complete".
func (p *Publisher) Tool(toolName, stage string, meta map[string]any) {
	m := map[string]any{"tool_name": toolName, "stage": stage}
	for k, v := range meta {
		m[k] = v
	}
	p.Publish(Event{
		Kind:    KindTool,
		Content: "tool_" + stage,
		Output:  fmt.Sprintf("%s %s", toolName, stage),
		Meta:    m,
	})
}

// Progress publishes sub-query completion progress.
func (p *Publisher) Progress(current, total int) {
	pct := 0.0
	if total > 0 {
		pct = float64(current) / float64(total)
	}
	p.Publish(Event{
		Kind:    KindProgress,
		Content: "research_progress",
		Output:  fmt.Sprintf("%d/%d sub-queries", current, total),
		Meta:    map[string]any{"current": current, "total": total, "progress": pct},
	})
}
