package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/voxhollow/parley/internal/memory"
	"github.com/voxhollow/parley/internal/provider"
	"github.com/voxhollow/parley/internal/search"
)

const (
	maxSearchQueries   = 3
	resultsPerQuery    = 5
	maxFollowUpActions = 3
)

// followUpKeywords marks sentences in a synthesis that read as suggested
// next steps.
var followUpKeywords = []string{"suggest", "recommend", "could also", "might want to", "consider"}

// ResearchAgent extracts search queries from the request, fans them out to
// the search capability in parallel, and synthesizes the flattened results
// into one answer.
type ResearchAgent struct {
	llm      LLM
	searcher Searcher
	model    string
	logger   *zap.Logger
}

// NewResearchAgent creates the research strategy.
func NewResearchAgent(llm LLM, searcher Searcher, model string, logger *zap.Logger) *ResearchAgent {
	return &ResearchAgent{llm: llm, searcher: searcher, model: model, logger: logger}
}

func (a *ResearchAgent) Name() string { return "research" }

func (a *ResearchAgent) Process(ctx context.Context, req *Request, mem *memory.Conversation) *Response {
	queries, err := a.extractQueries(ctx, req.Content)
	if err != nil {
		a.logger.Warn("query extraction failed", zap.Error(err))
		return degraded(a.Name(), err)
	}

	results := a.searchAll(ctx, queries)

	answer, err := a.synthesize(ctx, req.Content, mem, results)
	if err != nil {
		a.logger.Warn("synthesis failed", zap.Error(err))
		return degraded(a.Name(), err)
	}

	return &Response{
		Success:         true,
		Content:         answer,
		AgentUsed:       a.Name(),
		FollowUpActions: extractFollowUpSentences(answer),
		Metadata: map[string]string{
			"search_queries": strings.Join(queries, "; "),
			"result_count":   strconv.Itoa(len(results)),
		},
	}
}

// extractQueries asks the LLM for up to three search queries, one per line.
func (a *ResearchAgent) extractQueries(ctx context.Context, content string) ([]string, error) {
	resp, err := a.llm.Chat(ctx, &provider.ChatRequest{
		Model: a.model,
		Messages: []provider.Message{
			{Role: "system", Content: "Extract 1-3 web search queries that would help answer the user's request. Reply with one query per line and nothing else."},
			{Role: "user", Content: content},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, err
	}

	var queries []string
	for _, line := range strings.Split(resp.Content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		queries = append(queries, line)
		if len(queries) == maxSearchQueries {
			break
		}
	}
	if len(queries) == 0 {
		queries = []string{content}
	}
	return queries, nil
}

// searchAll issues every query concurrently and flattens the results in
// query order.
func (a *ResearchAgent) searchAll(ctx context.Context, queries []string) []search.Result {
	perQuery := make([][]search.Result, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			perQuery[i] = a.searcher.Search(ctx, q, resultsPerQuery)
		}(i, q)
	}
	wg.Wait()

	var flat []search.Result
	for _, rs := range perQuery {
		flat = append(flat, rs...)
	}
	return flat
}

// synthesize combines the search results and conversation history into one
// answer.
func (a *ResearchAgent) synthesize(ctx context.Context, content string, mem *memory.Conversation, results []search.Result) (string, error) {
	var b strings.Builder
	b.WriteString("Search results:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s (%s)\n%s\n", i+1, r.Title, r.URL, r.Snippet)
	}

	messages := []provider.Message{
		{Role: "system", Content: "You are a research assistant. Synthesize the search results below into a direct answer to the user's request. Cite sources where useful."},
		{Role: "system", Content: b.String()},
	}
	if history := formatHistory(mem); history != "" {
		messages = append(messages, provider.Message{Role: "system", Content: "Recent conversation:\n" + history})
	}
	messages = append(messages, provider.Message{Role: "user", Content: content})

	resp, err := a.llm.Chat(ctx, &provider.ChatRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: 0.5,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// extractFollowUpSentences scans the synthesis for sentences carrying a
// follow-up keyword and returns up to three, trimmed and deduplicated.
func extractFollowUpSentences(text string) []string {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})

	var actions []string
	for _, s := range sentences {
		lower := strings.ToLower(s)
		for _, kw := range followUpKeywords {
			if strings.Contains(lower, kw) {
				actions = append(actions, s)
				break
			}
		}
	}
	return dedupeAndCap(actions, maxFollowUpActions)
}
