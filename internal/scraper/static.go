package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// staticFetcher fetches a page with plain HTTP and extracts text, title
// and content images from the parsed HTML.
type staticFetcher struct {
	userAgent string
	client    *http.Client
}

func newStaticFetcher(userAgent string, timeout time.Duration) *staticFetcher {
	return &staticFetcher{
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

func (f *staticFetcher) Fetch(ctx context.Context, pageURL string) (Source, error) {
	body, err := f.get(ctx, pageURL)
	if err != nil {
		return Source{}, err
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return Source{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return Source{
		Title:     extractTitle(doc),
		RawText:   extractText(doc),
		ImageURLs: extractImages(doc, pageURL),
	}, nil
}

func (f *staticFetcher) get(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// extractTitle returns the <title> text.
func extractTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}

// skipElements are dropped wholesale during text extraction.
var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"nav": true, "header": true, "footer": true, "iframe": true,
}

// extractText flattens the page body into whitespace-normalized text.
func extractText(doc *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "section", "article", "li", "h1", "h2", "h3", "h4", "pre", "br", "tr":
				sb.WriteString("\n")
			}
		}
	}
	walk(doc)
	return strings.TrimSpace(sb.String())
}

// extractImages collects <img> sources resolved against the page URL and
// filtered to those that look like content.
func extractImages(doc *html.Node, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var images []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" {
			src := ""
			for _, attr := range n.Attr {
				if attr.Key == "src" || (src == "" && attr.Key == "data-src") {
					src = attr.Val
				}
			}
			if resolved := resolveContentImage(base, src); resolved != "" && !seen[resolved] {
				seen[resolved] = true
				images = append(images, resolved)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return images
}

// nonContentMarkers mark chrome images (icons, sprites, tracking pixels).
var nonContentMarkers = []string{"icon", "sprite", "logo", "avatar", "pixel", "badge", "button"}

// resolveContentImage resolves src against base and returns "" for
// anything that does not look like a content image.
func resolveContentImage(base *url.URL, src string) string {
	src = strings.TrimSpace(src)
	if src == "" || strings.HasPrefix(src, "data:") {
		return ""
	}

	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}

	lower := strings.ToLower(resolved.String())
	if strings.HasSuffix(lower, ".svg") || strings.HasSuffix(lower, ".gif") {
		return ""
	}
	for _, marker := range nonContentMarkers {
		if strings.Contains(lower, marker) {
			return ""
		}
	}
	return resolved.String()
}
