package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"
)

// pdfFetcher downloads a PDF and pulls what text it can from the
// uncompressed content streams. Extraction is best effort; compressed
// streams yield little, which the short-body flag surfaces. PDFs never
// carry image URLs.
type pdfFetcher struct {
	userAgent string
	client    *http.Client
}

func newPDFFetcher(userAgent string, timeout time.Duration) *pdfFetcher {
	return &pdfFetcher{
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

func (f *pdfFetcher) Fetch(ctx context.Context, pageURL string) (Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Source{}, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return Source{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Source{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return Source{}, err
	}

	return Source{
		Title:     strings.TrimSuffix(path.Base(pageURL), ".pdf"),
		RawText:   extractPDFText(data),
		ImageURLs: nil,
	}, nil
}

// pdfTextRe matches a string literal followed directly by a text operator
// in uncompressed streams, as in (string) Tj. Strings inside [(...)...] TJ
// arrays are followed by other array items or ']' and are not matched.
var pdfTextRe = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)\s*T[jJ]?`)

func extractPDFText(data []byte) string {
	matches := pdfTextRe.FindAllSubmatch(data, -1)
	var sb strings.Builder
	for _, m := range matches {
		text := string(m[1])
		text = strings.NewReplacer(`\(`, "(", `\)`, ")", `\\`, `\`, `\n`, "\n").Replace(text)
		if strings.TrimSpace(text) == "" {
			continue
		}
		sb.WriteString(text)
		sb.WriteString(" ")
	}
	return strings.TrimSpace(sb.String())
}
