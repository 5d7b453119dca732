package memory

import (
	"context"
	"fmt"
	"time"
)

const (
	// MaxRecentEntries bounds the per-conversation history window.
	MaxRecentEntries = 10
	// summaryMinEntries is the retained-entry count at which a summary is derived.
	summaryMinEntries = 3
	// DefaultCacheTTL is how long a repopulated cache entry stays warm.
	DefaultCacheTTL = time.Hour
)

// Entry is one recorded turn of a conversation. Entries are immutable once written.
type Entry struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	UserInput      string            `json:"user_input"`
	AgentResponse  string            `json:"agent_response"`
	AgentUsed      string            `json:"agent_used"`
	Timestamp      time.Time         `json:"timestamp"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Conversation is the per-conversation memory aggregate. RecentInteractions is
// ordered oldest first and never exceeds MaxRecentEntries.
type Conversation struct {
	ConversationID     string            `json:"conversation_id"`
	UserID             string            `json:"user_id"`
	RecentInteractions []Entry           `json:"recent_interactions"`
	Summary            string            `json:"summary"`
	Context            map[string]string `json:"context,omitempty"`
	LastUpdated        time.Time         `json:"last_updated"`
}

// Turn is the input to Store.Append: one user/agent exchange to record.
type Turn struct {
	UserID        string
	UserInput     string
	AgentResponse string
	AgentUsed     string
	Timestamp     time.Time
	Metadata      map[string]string
}

// Cache is a best-effort expiring key-value layer in front of the durable
// store. Implementations must treat a miss as (nil, nil); their failures are
// never fatal to the Store.
type Cache interface {
	Get(ctx context.Context, conversationID string) (*Conversation, error)
	Put(ctx context.Context, conversationID string, conv *Conversation, ttl time.Duration) error
	Delete(ctx context.Context, conversationID string) error
}

// Durable is the authoritative keyed storage, one row per conversation.
// ReadOne returns (nil, nil) when the conversation does not exist.
type Durable interface {
	ReadOne(ctx context.Context, conversationID string) (*Conversation, error)
	Upsert(ctx context.Context, conv *Conversation) error
	Delete(ctx context.Context, conversationID string) error
}

// Summarizer derives a conversation summary from retained entries.
type Summarizer interface {
	Summarize(entries []Entry) string
}

// PersistenceError reports a durable-store failure. Cache failures are logged
// and swallowed; durable failures threaten the source of truth and propagate.
type PersistenceError struct {
	Op             string
	ConversationID string
	Err            error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("memory: %s conversation %s: %v", e.Op, e.ConversationID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
