package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/net/html"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// countingFetcher records which URLs it saw and when.
type countingFetcher struct {
	mu      sync.Mutex
	fetched map[string]int
	fail    map[string]bool
	delay   time.Duration
}

func newCountingFetcher() *countingFetcher {
	return &countingFetcher{fetched: make(map[string]int), fail: make(map[string]bool)}
}

func (f *countingFetcher) Fetch(ctx context.Context, pageURL string) (Source, error) {
	f.mu.Lock()
	f.fetched[pageURL]++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail[pageURL] {
		return Source{}, fmt.Errorf("synthetic failure")
	}
	return Source{Title: "t", RawText: strings.Repeat("content ", 40)}, nil
}

func TestPool_ScrapesEachURLOnce(t *testing.T) {
	fetcher := newCountingFetcher()
	pool := NewPoolWithFetcher(Config{MaxWorkers: 4, Timeout: time.Second}, fetcher)

	urls := []string{
		"https://a.example/1",
		"https://b.example/2",
		"https://c.example/3",
	}
	results := pool.Run(context.Background(), urls)
	require.Len(t, results, len(urls))

	for _, u := range urls {
		assert.Equal(t, 1, fetcher.fetched[u], "url %s must be fetched exactly once", u)
	}
	for i, r := range results {
		assert.Equal(t, urls[i], r.URL)
		assert.Equal(t, StatusSuccess, r.Status)
	}
}

func TestPool_FailureIsolation(t *testing.T) {
	fetcher := newCountingFetcher()
	fetcher.fail["https://bad.example/x"] = true
	pool := NewPoolWithFetcher(Config{MaxWorkers: 2, Timeout: time.Second}, fetcher)

	results := pool.Run(context.Background(), []string{"https://bad.example/x", "https://good.example/y"})
	require.Len(t, results, 2)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.NotEmpty(t, results[0].Error)
	assert.Equal(t, StatusSuccess, results[1].Status)
}

func TestPool_ShortBodyFlagged(t *testing.T) {
	pool := NewPoolWithFetcher(Config{Timeout: time.Second}, fetchFunc(func(ctx context.Context, u string) (Source, error) {
		return Source{RawText: "tiny"}, nil
	}))
	results := pool.Run(context.Background(), []string{"https://a.example"})
	require.Len(t, results, 1)
	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.True(t, results[0].ShortBody)
}

type fetchFunc func(ctx context.Context, pageURL string) (Source, error)

func (f fetchFunc) Fetch(ctx context.Context, pageURL string) (Source, error) { return f(ctx, pageURL) }

func TestPool_CancelledContextSkips(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := NewPoolWithFetcher(Config{Timeout: time.Second}, newCountingFetcher())
	results := pool.Run(ctx, []string{"https://a.example/1"})
	require.Len(t, results, 1)
	assert.Equal(t, StatusSkipped, results[0].Status)
}

func TestRegistrableDomain(t *testing.T) {
	tests := map[string]string{
		"https://docs.go.dev/ref":         "go.dev",
		"https://go.dev/doc":              "go.dev",
		"https://a.b.c.example.co/x":      "example.co",
		"https://localhost:8080/":         "localhost",
		"https://www.arxiv.org/abs/1.2":   "arxiv.org",
	}
	for input, want := range tests {
		assert.Equal(t, want, registrableDomain(input), input)
	}
}

func TestAcquireDomain_SerializesAndReportsContention(t *testing.T) {
	pool := NewPoolWithFetcher(Config{}, newCountingFetcher())

	release1, contended1 := pool.acquireDomain("go.dev")
	assert.False(t, contended1)

	acquired := make(chan bool)
	go func() {
		release2, contended2 := pool.acquireDomain("go.dev")
		acquired <- contended2
		release2()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquisition should block while the gate is held")
	case <-time.After(50 * time.Millisecond):
	}

	release1()
	assert.True(t, <-acquired, "second acquisition must report contention")
}

func TestFetcherFor_SpecializedPaths(t *testing.T) {
	pool := NewPool(Config{Backend: "static"})

	assert.IsType(t, &pdfFetcher{}, pool.fetcherFor("https://example.com/paper.PDF"))
	assert.IsType(t, &arxivFetcher{}, pool.fetcherFor("https://arxiv.org/abs/2401.00001"))
	assert.IsType(t, &staticFetcher{}, pool.fetcherFor("https://example.com/page"))
}

func TestRewriteArxivURL(t *testing.T) {
	assert.Equal(t, "https://arxiv.org/abs/2401.1", rewriteArxivURL("https://arxiv.org/pdf/2401.1.pdf"))
	assert.Equal(t, "https://arxiv.org/abs/2401.1", rewriteArxivURL("https://arxiv.org/pdf/2401.1"))
	assert.Equal(t, "https://arxiv.org/abs/2401.1", rewriteArxivURL("https://arxiv.org/abs/2401.1"))
}

const samplePage = `<html><head><title>Sample Page</title></head><body>
<nav>Navigation junk</nav>
<article><h1>Heading</h1><p>Real content paragraph.</p>
<img src="/images/figure1.png"><img src="/assets/logo.png"><img src="data:image/png;base64,xx">
<img src="https://cdn.example.com/photo.jpg"></article>
<script>var x = "script junk";</script>
</body></html>`

func parseSample(t *testing.T) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(samplePage))
	require.NoError(t, err)
	return doc
}

func TestExtractTitleAndText(t *testing.T) {
	doc := parseSample(t)
	assert.Equal(t, "Sample Page", extractTitle(doc))

	text := extractText(doc)
	assert.Contains(t, text, "Real content paragraph.")
	assert.NotContains(t, text, "script junk")
	assert.NotContains(t, text, "Navigation junk")
}

func TestExtractImages_ResolvesAndFilters(t *testing.T) {
	doc := parseSample(t)
	images := extractImages(doc, "https://site.example/post/1")

	assert.Contains(t, images, "https://site.example/images/figure1.png")
	assert.Contains(t, images, "https://cdn.example.com/photo.jpg")
	for _, img := range images {
		assert.NotContains(t, img, "logo")
		assert.NotContains(t, img, "data:")
	}
}

func TestExtractPDFText(t *testing.T) {
	data := []byte(`stream BT (Hello) Tj (World\)) Tj ET endstream`)
	got := extractPDFText(data)
	assert.Contains(t, got, "Hello")
	assert.Contains(t, got, "World)")
}
