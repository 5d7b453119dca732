package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// WebSearcher queries a SearxNG-style JSON search API.
type WebSearcher struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewWebSearcher creates a web search backend against the given endpoint.
func NewWebSearcher(endpoint string, logger *zap.Logger) *WebSearcher {
	return &WebSearcher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

type searxResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Engine  string  `json:"engine"`
		Score   float32 `json:"score"`
	} `json:"results"`
}

// Search runs one query and returns up to maxResults hits. Failures are
// logged and produce the degraded placeholder set, never an error.
func (s *WebSearcher) Search(ctx context.Context, query string, maxResults int) []Result {
	if maxResults <= 0 {
		maxResults = 5
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/search?"+q.Encode(), nil)
	if err != nil {
		s.logger.Warn("web search request build failed", zap.String("query", query), zap.Error(err))
		return Placeholder(query)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("web search failed", zap.String("query", query), zap.Error(err))
		return Placeholder(query)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("web search bad status",
			zap.String("query", query), zap.String("status", strconv.Itoa(resp.StatusCode)))
		return Placeholder(query)
	}

	var parsed searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		s.logger.Warn("web search decode failed", zap.String("query", query), zap.Error(err))
		return Placeholder(query)
	}
	if len(parsed.Results) == 0 {
		return Placeholder(query)
	}

	results := make([]Result, 0, maxResults)
	for _, r := range parsed.Results {
		results = append(results, Result{
			Title:          r.Title,
			URL:            r.URL,
			Snippet:        r.Content,
			Source:         r.Engine,
			RelevanceScore: r.Score,
		})
		if len(results) == maxResults {
			break
		}
	}
	return results
}
