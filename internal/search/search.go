package search

import "context"

// Result is one ranked search hit.
type Result struct {
	Title          string  `json:"title"`
	URL            string  `json:"url"`
	Snippet        string  `json:"snippet"`
	Source         string  `json:"source"`
	RelevanceScore float32 `json:"relevance_score,omitempty"`
}

// Searcher is the search capability consumed by the research strategy. It
// never returns an error: a backend that fails completely yields the
// degraded placeholder result set instead.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) []Result
}

// PlaceholderSearcher always returns the degraded result set. It serves
// deployments with no search backend configured.
type PlaceholderSearcher struct{}

func (PlaceholderSearcher) Search(_ context.Context, query string, _ int) []Result {
	return Placeholder(query)
}

// Placeholder returns the single-element degraded result set used when a
// backend cannot produce anything for a query.
func Placeholder(query string) []Result {
	return []Result{{
		Title:   "Search unavailable",
		Snippet: "No results could be retrieved for: " + query,
		Source:  "degraded",
	}}
}
