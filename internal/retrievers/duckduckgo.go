package retrievers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"researchnerd/internal/logging"
)

// duckDuckGo scrapes the DuckDuckGo HTML interface. No API key required.
type duckDuckGo struct {
	query   string
	domains []string
}

func newDuckDuckGo(query string, opts Options) (Retriever, error) {
	return &duckDuckGo{query: query, domains: opts.QueryDomains}, nil
}

func (d *duckDuckGo) Search(ctx context.Context, maxResults int) ([]SearchHit, error) {
	if maxResults == 0 {
		return nil, nil
	}
	if maxResults > 30 {
		maxResults = 30
	}

	query := d.query
	if len(d.domains) > 0 {
		query += " site:" + strings.Join(d.domains, " OR site:")
	}
	searchURL := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	hits, err := parseDuckDuckGoResults(string(body), maxResults)
	if err != nil {
		return nil, err
	}
	logging.Retriever("duckduckgo returned %d hits for %q", len(hits), d.query)
	return hits, nil
}

// parseDuckDuckGoResults extracts search results from DuckDuckGo HTML.
// Result blocks are divs with class containing "result" and "results_links".
func parseDuckDuckGoResults(htmlContent string, maxResults int) ([]SearchHit, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var hits []SearchHit
	var findResults func(*html.Node)
	findResults = func(n *html.Node) {
		if len(hits) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" {
			for _, attr := range n.Attr {
				if attr.Key == "class" && strings.Contains(attr.Val, "result") && strings.Contains(attr.Val, "results_links") {
					hit := extractHit(n)
					if hit.Href != "" && hit.Title != "" {
						hits = append(hits, hit)
					}
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findResults(c)
		}
	}
	findResults(doc)
	return hits, nil
}

func extractHit(n *html.Node) SearchHit {
	var hit SearchHit
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "class" {
					continue
				}
				if strings.Contains(attr.Val, "result__a") {
					hit.Href = attrValue(n, "href")
					hit.Title = textContent(n)
				} else if strings.Contains(attr.Val, "result__snippet") {
					hit.Body = textContent(n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)

	// Unwrap DuckDuckGo redirect links.
	if strings.HasPrefix(hit.Href, "//duckduckgo.com/l/?uddg=") {
		if decoded, err := url.QueryUnescape(strings.TrimPrefix(hit.Href, "//duckduckgo.com/l/?uddg=")); err == nil {
			if idx := strings.Index(decoded, "&"); idx > 0 {
				decoded = decoded[:idx]
			}
			hit.Href = decoded
		}
	}
	return hit
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
