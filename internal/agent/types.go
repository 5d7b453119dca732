package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/voxhollow/parley/internal/memory"
	"github.com/voxhollow/parley/internal/provider"
	"github.com/voxhollow/parley/internal/search"
)

// Kind is the routing hint carried by a request. It is a hint, not
// authoritative: keyword matching can override it.
type Kind string

const (
	KindChat      Kind = "chat"
	KindTask      Kind = "task"
	KindResearch  Kind = "research"
	KindReasoning Kind = "reasoning"
)

// Priority is informational only in the core.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ConversationContext identifies the conversation a request belongs to.
// Identifiers are immutable for the lifetime of the conversation.
type ConversationContext struct {
	UserID         string            `json:"user_id"`
	ConversationID string            `json:"conversation_id"`
	SessionID      string            `json:"session_id"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Request is one turn of user input.
type Request struct {
	Kind     Kind                `json:"kind"`
	Content  string              `json:"content"`
	Context  ConversationContext `json:"context"`
	Priority Priority            `json:"priority,omitempty"`
	Metadata map[string]string   `json:"metadata,omitempty"`
}

// Validate checks the fields every request must carry.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.Content) == "" {
		return errors.New("content is required")
	}
	if r.Context.ConversationID == "" {
		return errors.New("conversation_id is required")
	}
	return nil
}

// Response is one turn of agent output. FollowUpActions holds at most three
// deduplicated suggested next steps.
type Response struct {
	Success         bool              `json:"success"`
	Content         string            `json:"content"`
	AgentUsed       string            `json:"agent_used"`
	ExecutionTimeMs int64             `json:"execution_time_ms"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	FollowUpActions []string          `json:"follow_up_actions,omitempty"`
}

// Strategy is the contract all processing variants implement. Process never
// propagates a fault: capability failures degrade to a Success=false
// response carrying the strategy's own name.
type Strategy interface {
	Name() string
	Process(ctx context.Context, req *Request, mem *memory.Conversation) *Response
}

// LLM is the completion capability the strategies consume. provider.Router
// satisfies it.
type LLM interface {
	Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error)
}

// Searcher is the search capability the research strategy consumes.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) []search.Result
}

// degraded builds the user-safe failure response a strategy returns when a
// capability call fails. The fault detail stays in metadata, never in the
// user-facing content.
func degraded(agentName string, err error) *Response {
	return &Response{
		Success:   false,
		Content:   "I apologize, but I was unable to complete that request. Please try again.",
		AgentUsed: agentName,
		Metadata:  map[string]string{"error": err.Error()},
	}
}

// formatHistory serializes the retained interactions and summary of a
// conversation for inclusion in a prompt. An absent memory serializes to "".
func formatHistory(mem *memory.Conversation) string {
	if mem == nil || (len(mem.RecentInteractions) == 0 && mem.Summary == "") {
		return ""
	}
	var b strings.Builder
	if mem.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", mem.Summary)
	}
	for _, e := range mem.RecentInteractions {
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", e.UserInput, e.AgentResponse)
	}
	return b.String()
}

// dedupeAndCap trims, deduplicates and caps follow-up actions at limit,
// preserving first-seen order.
func dedupeAndCap(actions []string, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range actions {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}
	return out
}
