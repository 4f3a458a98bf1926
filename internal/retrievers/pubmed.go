package retrievers

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// pubMedCentral searches NCBI's esearch endpoint and fetches article
// abstracts through efetch. Works without a key at a reduced rate limit,
// so construction never fails; the readiness probe still reports the
// retriever not ready while NCBI_API_KEY is unset.
type pubMedCentral struct {
	query  string
	apiKey string
	db     string
}

func newPubMedCentral(query string, opts Options) (Retriever, error) {
	db := os.Getenv("PUBMED_DB")
	if db == "" {
		db = "pmc"
	}
	return &pubMedCentral{query: query, apiKey: os.Getenv("NCBI_API_KEY"), db: db}, nil
}

func (p *pubMedCentral) Search(ctx context.Context, maxResults int) ([]SearchHit, error) {
	if maxResults == 0 {
		return nil, nil
	}

	ids, err := p.searchArticles(ctx, maxResults)
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(ids))
	for _, id := range ids {
		hit, err := p.fetchArticle(ctx, id)
		if err != nil {
			continue
		}
		hits = append(hits, hit)
		if len(hits) == maxResults {
			break
		}
	}
	return hits, nil
}

func (p *pubMedCentral) searchArticles(ctx context.Context, maxResults int) ([]string, error) {
	term := p.query
	if p.db == "pubmed" {
		term = fmt.Sprintf("%s AND (ffrft[filter] OR pmc[filter])", p.query)
	}

	params := url.Values{}
	params.Set("db", p.db)
	params.Set("term", term)
	params.Set("retmax", strconv.Itoa(maxResults))
	params.Set("retmode", "json")
	params.Set("sort", "relevance")
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pubmed search request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pubmed search HTTP %d", resp.StatusCode)
	}

	var result struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("pubmed search response parse failed: %w", err)
	}
	return result.ESearchResult.IDList, nil
}

func (p *pubMedCentral) fetchArticle(ctx context.Context, id string) (SearchHit, error) {
	params := url.Values{}
	params.Set("db", "pmc")
	params.Set("id", id)
	params.Set("rettype", "full")
	params.Set("retmode", "xml")
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi?"+params.Encode(), nil)
	if err != nil {
		return SearchHit{}, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return SearchHit{}, fmt.Errorf("pubmed fetch request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return SearchHit{}, fmt.Errorf("pubmed fetch HTTP %d", resp.StatusCode)
	}

	title, abstract, err := parsePubMedArticle(resp.Body)
	if err != nil {
		return SearchHit{}, err
	}
	return SearchHit{
		Title: title,
		Href:  "https://www.ncbi.nlm.nih.gov/pmc/articles/PMC" + id + "/",
		Body:  abstract,
	}, nil
}

// parsePubMedArticle pulls the article title and abstract text out of the
// efetch XML stream.
func parsePubMedArticle(r io.Reader) (title, abstract string, err error) {
	decoder := xml.NewDecoder(r)
	var inTitle, inAbstract bool
	var abstractParts []string
	depth := 0
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "article-title":
				if title == "" {
					inTitle = true
				}
			case "abstract":
				inAbstract = true
				depth = 0
			default:
				if inAbstract {
					depth++
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "article-title":
				inTitle = false
			case "abstract":
				inAbstract = false
			default:
				if inAbstract && depth > 0 {
					depth--
				}
			}
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			if inTitle {
				title += text
			}
			if inAbstract {
				abstractParts = append(abstractParts, text)
			}
		}
	}
	if title == "" && len(abstractParts) == 0 {
		return "", "", fmt.Errorf("no content in article XML")
	}
	return title, strings.Join(abstractParts, " "), nil
}
