package scraper

import (
	"context"
	"strings"
)

// arxivFetcher handles arxiv.org links: PDF links are rewritten to their
// abstract pages, which are scraped statically. arXiv sources never carry
// image URLs.
type arxivFetcher struct {
	static *staticFetcher
}

func newArxivFetcher(static *staticFetcher) *arxivFetcher {
	return &arxivFetcher{static: static}
}

func (f *arxivFetcher) Fetch(ctx context.Context, pageURL string) (Source, error) {
	src, err := f.static.Fetch(ctx, rewriteArxivURL(pageURL))
	if err != nil {
		return Source{}, err
	}
	src.ImageURLs = nil
	return src, nil
}

// rewriteArxivURL maps /pdf/<id> and /pdf/<id>.pdf to /abs/<id>.
func rewriteArxivURL(pageURL string) string {
	if !strings.Contains(pageURL, "/pdf/") {
		return pageURL
	}
	rewritten := strings.Replace(pageURL, "/pdf/", "/abs/", 1)
	return strings.TrimSuffix(rewritten, ".pdf")
}
