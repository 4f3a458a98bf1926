package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/net/html"
)

// browserFetcher renders pages in a shared headless Chrome before
// extraction. The browser launches lazily on first fetch, guarded by a
// mutex, and is reused for the pool's lifetime.
type browserFetcher struct {
	timeout time.Duration

	mu      sync.Mutex
	browser *rod.Browser
}

func newBrowserFetcher(timeout time.Duration) *browserFetcher {
	return &browserFetcher{timeout: timeout}
}

func (f *browserFetcher) ensureStarted() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		if _, err := f.browser.Version(); err == nil {
			return f.browser, nil
		}
		// Stale connection, relaunch.
		_ = f.browser.Close()
		f.browser = nil
	}

	controlURL, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	f.browser = browser
	return browser, nil
}

func (f *browserFetcher) Fetch(ctx context.Context, pageURL string) (Source, error) {
	browser, err := f.ensureStarted()
	if err != nil {
		return Source{}, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return Source{}, fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx)

	// Readiness: load event within the timeout, degrading to whatever HTML
	// is present when the timeout fires.
	waitCtx, cancel := context.WithTimeout(ctx, f.timeout)
	_ = page.Context(waitCtx).WaitLoad()
	cancel()

	content, err := page.HTML()
	if err != nil {
		return Source{}, fmt.Errorf("read page html: %w", err)
	}

	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return Source{}, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return Source{
		Title:     extractTitle(doc),
		RawText:   extractText(doc),
		ImageURLs: extractImages(doc, pageURL),
	}, nil
}

// Close shuts the shared browser down.
func (f *browserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser == nil {
		return nil
	}
	err := f.browser.Close()
	f.browser = nil
	return err
}
