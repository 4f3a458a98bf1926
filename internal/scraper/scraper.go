// Package scraper fetches URLs and extracts text, images and titles. A
// worker pool bounds total concurrency while per-registrable-domain gates
// serialize requests to the same site with jitter under contention.
package scraper

import (
	"context"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"researchnerd/internal/logging"
)

// Status classifies a scrape outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Source is the per-URL scrape record. A failing URL never aborts the
// batch; its Source carries StatusFailed and the error text.
type Source struct {
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	RawText   string   `json:"raw_content"`
	ImageURLs []string `json:"image_urls"`
	Status    Status   `json:"status"`
	Error     string   `json:"error,omitempty"`

	// ShortBody flags successful scrapes under 200 chars for diagnostics.
	ShortBody bool `json:"short_body,omitempty"`
}

// shortBodyThreshold is the soft minimum body length.
const shortBodyThreshold = 200

// Fetcher is one fetch backend (static HTTP, headless browser, ...).
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (Source, error)
}

// Config selects the fetch backend and bounds the pool.
type Config struct {
	// Backend: "static" (default) or "browser".
	Backend    string
	UserAgent  string
	MaxWorkers int
	// Timeout bounds a single fetch.
	Timeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Backend:    "static",
		UserAgent:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
		MaxWorkers: 8,
		Timeout:    30 * time.Second,
	}
}

// Pool runs scrapes with bounded workers and per-domain serialization.
type Pool struct {
	cfg     Config
	general Fetcher
	pdf     Fetcher
	arxiv   Fetcher

	mu    sync.Mutex
	gates map[string]chan struct{}
}

// NewPool creates a pool for the configured backend.
func NewPool(cfg Config) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultConfig().MaxWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	static := newStaticFetcher(cfg.UserAgent, cfg.Timeout)
	var general Fetcher = static
	if cfg.Backend == "browser" {
		general = newBrowserFetcher(cfg.Timeout)
	}
	return &Pool{
		cfg:     cfg,
		general: general,
		pdf:     newPDFFetcher(cfg.UserAgent, cfg.Timeout),
		arxiv:   newArxivFetcher(static),
		gates:   make(map[string]chan struct{}),
	}
}

// NewPoolWithFetcher creates a pool with a caller-supplied backend for all
// URLs. Used by tests and by collaborators with their own fetch stack.
func NewPoolWithFetcher(cfg Config, fetcher Fetcher) *Pool {
	p := NewPool(cfg)
	p.general = fetcher
	p.pdf = fetcher
	p.arxiv = fetcher
	return p
}

// Run scrapes the URLs and returns one Source per URL. The caller is
// expected to have de-duplicated the list.
func (p *Pool) Run(ctx context.Context, urls []string) []Source {
	if len(urls) == 0 {
		return nil
	}

	results := make([]Source, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxWorkers)

	for i, pageURL := range urls {
		g.Go(func() error {
			results[i] = p.scrapeOne(gctx, pageURL)
			return nil // failures are recorded, never propagated
		})
	}
	_ = g.Wait()

	success := 0
	for _, s := range results {
		if s.Status == StatusSuccess {
			success++
		}
	}
	logging.Scraper("scraped %d/%d urls successfully", success, len(urls))
	return results
}

func (p *Pool) scrapeOne(ctx context.Context, pageURL string) Source {
	if err := ctx.Err(); err != nil {
		return Source{URL: pageURL, Status: StatusSkipped, Error: err.Error()}
	}

	release, contended := p.acquireDomain(registrableDomain(pageURL))
	defer release()
	if contended {
		// Jitter between requests to the same registrable domain.
		delay := time.Duration(600+rand.Intn(600)) * time.Millisecond
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Source{URL: pageURL, Status: StatusSkipped, Error: ctx.Err().Error()}
		}
	}

	fctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	src, err := p.fetcherFor(pageURL).Fetch(fctx, pageURL)
	if err != nil {
		logging.Get(logging.CategoryScraper).Warn("scrape failed for %s: %v", pageURL, err)
		return Source{URL: pageURL, Status: StatusFailed, Error: err.Error()}
	}

	src.URL = pageURL
	src.Status = StatusSuccess
	if len(src.RawText) < shortBodyThreshold {
		src.ShortBody = true
		logging.Get(logging.CategoryScraper).Debug("short body (%d chars) for %s", len(src.RawText), pageURL)
	}
	return src
}

// fetcherFor routes PDFs and arXiv URLs to their specialized paths.
func (p *Pool) fetcherFor(pageURL string) Fetcher {
	lower := strings.ToLower(pageURL)
	if strings.HasSuffix(lower, ".pdf") {
		return p.pdf
	}
	if u, err := url.Parse(pageURL); err == nil {
		host := strings.TrimPrefix(u.Hostname(), "www.")
		if host == "arxiv.org" || host == "export.arxiv.org" {
			return p.arxiv
		}
	}
	return p.general
}

// acquireDomain takes the capacity-1 gate for the domain, reporting whether
// the acquisition contended. The gate map itself is guarded by a short-held
// lock.
func (p *Pool) acquireDomain(domain string) (release func(), contended bool) {
	p.mu.Lock()
	gate, ok := p.gates[domain]
	if !ok {
		gate = make(chan struct{}, 1)
		p.gates[domain] = gate
	}
	p.mu.Unlock()

	select {
	case gate <- struct{}{}:
		return func() { <-gate }, false
	default:
		gate <- struct{}{}
		return func() { <-gate }, true
	}
}

// registrableDomain returns the last two labels of the host, so
// "docs.go.dev" and "go.dev" share one gate.
func registrableDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	labels := strings.Split(u.Hostname(), ".")
	if len(labels) <= 2 {
		return u.Hostname()
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
