package conversation

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voxhollow/parley/internal/agent"
)

// Record is a registered conversation and its bookkeeping.
type Record struct {
	Context   agent.ConversationContext `json:"context"`
	CreatedAt time.Time                 `json:"created_at"`
}

// Registry is the injected store of active conversations keyed by
// conversation id. It backs the lifecycle endpoints; conversation memory
// itself lives in the memory store.
type Registry struct {
	mu     sync.RWMutex
	convs  map[string]*Record
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		convs:  make(map[string]*Record),
		logger: logger,
	}
}

// Create registers a new conversation and returns its context. SessionID
// defaults to a fresh id when empty.
func (r *Registry) Create(userID, sessionID string, metadata map[string]string) *agent.ConversationContext {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	cc := agent.ConversationContext{
		UserID:         userID,
		ConversationID: uuid.New().String(),
		SessionID:      sessionID,
		Metadata:       metadata,
	}

	r.mu.Lock()
	r.convs[cc.ConversationID] = &Record{Context: cc, CreatedAt: time.Now().UTC()}
	r.mu.Unlock()

	r.logger.Info("conversation created",
		zap.String("conversation", cc.ConversationID),
		zap.String("user", userID))
	return &cc
}

// Touch registers a conversation seen on the chat path without an explicit
// create, so it shows up in listings. Identifiers of an existing record are
// never overwritten.
func (r *Registry) Touch(cc agent.ConversationContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.convs[cc.ConversationID]; ok {
		return
	}
	r.convs[cc.ConversationID] = &Record{Context: cc, CreatedAt: time.Now().UTC()}
}

// Get returns the record for a conversation, or false.
func (r *Registry) Get(conversationID string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.convs[conversationID]
	return rec, ok
}

// List returns all records, newest first.
func (r *Registry) List() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Record, 0, len(r.convs))
	for _, rec := range r.convs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Delete removes a conversation record. Deleting an unknown id is a no-op.
func (r *Registry) Delete(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.convs, conversationID)
}
