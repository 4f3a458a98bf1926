package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPublisher_NoSubscriberIsNoop(t *testing.T) {
	p := NewPublisher()
	defer p.Close()

	// Without a subscriber these must not block or buffer.
	for i := 0; i < DefaultBuffer*2; i++ {
		p.Log("test", "line %d", i)
		p.Error("err %d", i)
	}
}

func TestPublisher_DropOldestForLogs(t *testing.T) {
	p := NewPublisher()
	ch := p.Events()

	for i := 0; i < DefaultBuffer+50; i++ {
		p.Log("test", "line %d", i)
	}
	p.Close()

	var got []Event
	for ev := range ch {
		got = append(got, ev)
	}
	// Oldest events were evicted, newest survive.
	require.Len(t, got, DefaultBuffer)
	assert.Equal(t, "line 305", got[len(got)-1].Output)
	assert.Equal(t, "line 50", got[0].Output)
}

func TestPublisher_EssentialSurvivesPressure(t *testing.T) {
	p := NewPublisher()
	ch := p.Events()

	p.Cost(100, 60, 40, 0.01)
	for i := 0; i < DefaultBuffer+10; i++ {
		p.Log("test", "line %d", i)
	}
	p.Close()

	costs := 0
	for ev := range ch {
		if ev.Kind == KindCost {
			costs++
		}
	}
	assert.Equal(t, 1, costs, "cost events must never be dropped")
}

func TestPublisher_PublishAfterClose(t *testing.T) {
	p := NewPublisher()
	ch := p.Events()
	p.Close()
	p.Log("test", "after close")
	p.Error("after close")

	_, open := <-ch
	assert.False(t, open)
}

func TestPublisher_EventShapes(t *testing.T) {
	p := NewPublisher()
	ch := p.Events()

	p.Progress(2, 4)
	p.Tool("search_docs", "start", nil)
	p.Images([]string{"https://example.com/a.png"})
	p.Close()

	var got []Event
	for ev := range ch {
		got = append(got, ev)
	}
	require.Len(t, got, 3)

	assert.Equal(t, KindProgress, got[0].Kind)
	assert.Equal(t, 0.5, got[0].Meta["progress"])
	assert.Equal(t, KindTool, got[1].Kind)
	assert.Equal(t, "search_docs", got[1].Meta["tool_name"])
	assert.Equal(t, KindImages, got[2].Kind)
	assert.NotEmpty(t, got[2].ID)
}
