package agent

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/voxhollow/parley/internal/memory"
	"github.com/voxhollow/parley/internal/provider"
	"github.com/voxhollow/parley/internal/search"
)

// scriptedLLM replays canned completions in call order.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []*provider.ChatRequest
}

func (l *scriptedLLM) Chat(_ context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, req)
	if l.err != nil {
		return nil, l.err
	}
	reply := ""
	if len(l.replies) > 0 {
		reply = l.replies[0]
		l.replies = l.replies[1:]
	}
	return &provider.ChatResponse{Content: reply, Model: "test-model"}, nil
}

// recordingSearcher returns one canned hit per query and records queries.
type recordingSearcher struct {
	mu      sync.Mutex
	queries []string
	delay   time.Duration
}

func (s *recordingSearcher) Search(_ context.Context, query string, _ int) []search.Result {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	return []search.Result{{Title: "hit for " + query, Snippet: "snippet", Source: "test"}}
}

func testMemory() *memory.Conversation {
	return &memory.Conversation{
		ConversationID: "c1",
		UserID:         "u1",
		Summary:        "Recent conversation topics: engines",
		RecentInteractions: []memory.Entry{
			{UserInput: "tell me about engines", AgentResponse: "engines convert fuel to motion"},
		},
	}
}

func TestReasoningIncludesHistoryAndPersona(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"a careful answer"}}
	a := NewReasoningAgent(llm, "test-model", zap.NewNop())

	resp := a.Process(context.Background(), &Request{Content: "why do engines knock?"}, testMemory())

	if !resp.Success || resp.Content != "a careful answer" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.AgentUsed != "reasoning" {
		t.Errorf("agent_used = %q", resp.AgentUsed)
	}
	req := llm.requests[0]
	var sawHistory bool
	for _, m := range req.Messages {
		if strings.Contains(m.Content, "tell me about engines") {
			sawHistory = true
		}
	}
	if !sawHistory {
		t.Error("prompt does not include serialized history")
	}
	if last := req.Messages[len(req.Messages)-1]; last.Role != "user" || last.Content != "why do engines knock?" {
		t.Errorf("last message should be the user content, got %+v", last)
	}
}

func TestReasoningDegradesOnProviderFailure(t *testing.T) {
	llm := &scriptedLLM{err: &provider.Error{Provider: "p", Message: "down"}}
	a := NewReasoningAgent(llm, "test-model", zap.NewNop())

	resp := a.Process(context.Background(), &Request{Content: "hello"}, nil)

	if resp.Success {
		t.Fatal("expected degraded response")
	}
	if resp.AgentUsed != "reasoning" {
		t.Errorf("agent_used = %q, want reasoning", resp.AgentUsed)
	}
	if resp.Metadata["error"] == "" {
		t.Error("fault detail missing from metadata")
	}
	if strings.Contains(resp.Content, "down") {
		t.Error("fault detail leaked into user-facing content")
	}
}

func TestResearchQueriesAllAndReportsMetadata(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		"transformer efficiency papers\nattention optimization benchmarks\n",
		"Here is what I found. You might want to read the survey paper.",
	}}
	searcher := &recordingSearcher{}
	a := NewResearchAgent(llm, searcher, "test-model", zap.NewNop())

	resp := a.Process(context.Background(), &Request{Content: "Find recent papers on transformer efficiency"}, nil)

	if !resp.Success || resp.AgentUsed != "research" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(searcher.queries) != 2 {
		t.Fatalf("searched %d queries, want 2", len(searcher.queries))
	}
	if resp.Metadata["search_queries"] == "" {
		t.Error("search_queries metadata empty")
	}
	if resp.Metadata["result_count"] != "2" {
		t.Errorf("result_count = %q, want 2", resp.Metadata["result_count"])
	}
	if len(resp.FollowUpActions) != 1 {
		t.Fatalf("follow-ups = %v, want the 'might want to' sentence", resp.FollowUpActions)
	}
}

func TestResearchFallsBackToContentAsQuery(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"\n\n", "synthesized"}}
	searcher := &recordingSearcher{}
	a := NewResearchAgent(llm, searcher, "test-model", zap.NewNop())

	a.Process(context.Background(), &Request{Content: "obscure topic"}, nil)

	if len(searcher.queries) != 1 || searcher.queries[0] != "obscure topic" {
		t.Errorf("queries = %v, want the raw content", searcher.queries)
	}
}

func TestResearchDegradesOnExtractionFailure(t *testing.T) {
	llm := &scriptedLLM{err: &provider.Error{Provider: "p", Message: "down"}}
	a := NewResearchAgent(llm, &recordingSearcher{}, "test-model", zap.NewNop())

	resp := a.Process(context.Background(), &Request{Content: "find things"}, nil)
	if resp.Success || resp.AgentUsed != "research" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestTaskUsesParsedPlan(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		`{"type":"report","complexity":"complex","steps":["gather","draft"],"requirements":["numbers"]}`,
		"Done. Next step: share the report with the team.",
	}}
	a := NewTaskAgent(llm, "test-model", zap.NewNop())

	resp := a.Process(context.Background(), &Request{Content: "run the quarterly report"}, nil)

	if !resp.Success || resp.AgentUsed != "task" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Metadata["task_type"] != "report" || resp.Metadata["complexity"] != "complex" {
		t.Errorf("plan metadata wrong: %v", resp.Metadata)
	}
	if len(resp.FollowUpActions) != 1 || !strings.Contains(resp.FollowUpActions[0], "share the report") {
		t.Errorf("follow-ups = %v", resp.FollowUpActions)
	}
}

func TestTaskFallsBackOnUnparseablePlan(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		"I cannot answer in JSON, sorry!",
		"executed anyway",
	}}
	a := NewTaskAgent(llm, "test-model", zap.NewNop())

	resp := a.Process(context.Background(), &Request{Content: "do the thing"}, nil)

	if !resp.Success {
		t.Fatalf("parse failure must not degrade the response: %+v", resp)
	}
	if resp.Metadata["task_type"] != "general" || resp.Metadata["complexity"] != "medium" {
		t.Errorf("expected default plan metadata, got %v", resp.Metadata)
	}
}

func TestTaskHandlesFencedJSON(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		"```json\n{\"type\":\"lookup\",\"complexity\":\"simple\",\"steps\":[\"search\"]}\n```",
		"found it",
	}}
	a := NewTaskAgent(llm, "test-model", zap.NewNop())

	resp := a.Process(context.Background(), &Request{Content: "look this up"}, nil)
	if resp.Metadata["task_type"] != "lookup" {
		t.Errorf("fenced JSON not parsed: %v", resp.Metadata)
	}
}

func TestTaskDegradesOnProviderFailure(t *testing.T) {
	llm := &scriptedLLM{err: &provider.Error{Provider: "p", Message: "down"}}
	a := NewTaskAgent(llm, "test-model", zap.NewNop())

	resp := a.Process(context.Background(), &Request{Content: "do the thing"}, nil)
	if resp.Success || resp.AgentUsed != "task" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestExtractFollowUpMatchesDedupesAndCaps(t *testing.T) {
	text := `Next step: review the draft. I suggest adding charts. I recommend a summary.
I suggest adding charts. I recommend an appendix. Next steps: publish it.`
	actions := extractFollowUpMatches(text)
	if len(actions) != 3 {
		t.Fatalf("got %d actions, want 3: %v", len(actions), actions)
	}
	seen := make(map[string]bool)
	for _, a := range actions {
		if seen[a] {
			t.Errorf("duplicate follow-up %q", a)
		}
		seen[a] = true
	}
}

func TestRequestValidate(t *testing.T) {
	cases := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"valid", Request{Content: "hi", Context: ConversationContext{ConversationID: "c1"}}, false},
		{"empty content", Request{Content: "  ", Context: ConversationContext{ConversationID: "c1"}}, true},
		{"missing conversation", Request{Content: "hi"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
