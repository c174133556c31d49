// Package arxiv fetches paper metadata from the arXiv Atom API.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spin-glass/papers-rag-agent/internal/domain"
)

const defaultBaseURL = "https://export.arxiv.org/api/query"

// Client queries the arXiv export API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds arXiv client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates an arXiv API client.
func NewClient(cfg *Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     cfg.Logger,
	}
}

// Entry is one paper entry from the Atom feed.
type Entry struct {
	ID      string `xml:"id"`
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Links   []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
		Type string `xml:"type,attr"`
	} `xml:"link"`
}

type feed struct {
	Entries []Entry `xml:"entry"`
}

// SearchResult is a normalized arXiv paper record.
type SearchResult struct {
	ID      string
	Title   string
	Link    string
	Summary string
}

// Search queries arXiv with an all-fields query, sorted by relevance.
// Returns up to maxResults entries; fewer (or zero) is not an error.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	q := url.Values{}
	q.Set("search_query", "all:"+query)
	q.Set("start", "0")
	q.Set("max_results", fmt.Sprintf("%d", maxResults))
	q.Set("sortBy", "relevance")
	q.Set("sortOrder", "descending")

	reqURL := c.baseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build arxiv request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read arxiv response: %w", err)
	}

	var f feed
	if err := xml.Unmarshal(body, &f); err != nil {
		return nil, fmt.Errorf("parse arxiv feed: %w", err)
	}

	results := make([]SearchResult, 0, len(f.Entries))
	for _, e := range f.Entries {
		id := extractID(e.ID)
		if id == "" {
			c.logger.Debug("skipping arxiv entry without id", zap.String("raw_id", e.ID))
			continue
		}
		results = append(results, SearchResult{
			ID:      id,
			Title:   normalizeWhitespace(e.Title),
			Link:    abstractLink(e),
			Summary: normalizeWhitespace(e.Summary),
		})
	}

	return results, nil
}

// SearchPapers runs Search and maps the entries to domain papers.
func (c *Client) SearchPapers(ctx context.Context, query string, maxResults int) ([]domain.Paper, error) {
	results, err := c.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	papers := make([]domain.Paper, len(results))
	for i, r := range results {
		papers[i] = domain.Paper{
			ID:      r.ID,
			Title:   r.Title,
			Link:    r.Link,
			Summary: r.Summary,
		}
	}
	return papers, nil
}

// extractID turns "http://arxiv.org/abs/1706.03762v5" into "1706.03762".
func extractID(raw string) string {
	if raw == "" {
		return ""
	}
	id := raw[strings.LastIndex(raw, "/")+1:]
	if i := strings.LastIndex(id, "v"); i > 0 {
		if isDigits(id[i+1:]) {
			id = id[:i]
		}
	}
	return id
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// abstractLink prefers the alternate (abstract page) link, falling back to the entry id.
func abstractLink(e Entry) string {
	for _, l := range e.Links {
		if l.Rel == "alternate" && l.Href != "" {
			return l.Href
		}
	}
	return e.ID
}

// normalizeWhitespace collapses the newline-wrapped text arXiv returns.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
