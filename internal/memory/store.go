package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Store is the hybrid conversation-memory store: an expiring cache in front
// of a durable keyed store. The durable layer is the source of truth; the
// cache is a read accelerator only, and any divergence self-heals on the
// next cache miss.
type Store struct {
	cache      Cache
	durable    Durable
	summarizer Summarizer
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewStore creates a Store over the given cache and durable layers. A nil
// cache degrades to durable-only reads.
func NewStore(cache Cache, durable Durable, summarizer Summarizer, logger *zap.Logger) *Store {
	if summarizer == nil {
		summarizer = NewTopicSummarizer()
	}
	if cache == nil {
		cache = nopCache{}
	}
	return &Store{
		cache:      cache,
		durable:    durable,
		summarizer: summarizer,
		cacheTTL:   DefaultCacheTTL,
		logger:     logger,
	}
}

// nopCache misses on every read and drops every write.
type nopCache struct{}

func (nopCache) Get(context.Context, string) (*Conversation, error) { return nil, nil }
func (nopCache) Put(context.Context, string, *Conversation, time.Duration) error {
	return nil
}
func (nopCache) Delete(context.Context, string) error { return nil }

// Get returns the memory aggregate for a conversation, or (nil, nil) if the
// conversation is unknown to both layers. A durable hit after a cache miss
// repopulates the cache with a time-bounded entry.
func (s *Store) Get(ctx context.Context, conversationID string) (*Conversation, error) {
	conv, err := s.cache.Get(ctx, conversationID)
	if err != nil {
		s.logger.Warn("cache read failed, falling back to durable store",
			zap.String("conversation", conversationID), zap.Error(err))
	} else if conv != nil {
		return conv, nil
	}

	conv, err = s.durable.ReadOne(ctx, conversationID)
	if err != nil {
		return nil, &PersistenceError{Op: "read", ConversationID: conversationID, Err: err}
	}
	if conv == nil {
		return nil, nil
	}

	if err := s.cache.Put(ctx, conversationID, conv, s.cacheTTL); err != nil {
		s.logger.Warn("cache repopulate failed",
			zap.String("conversation", conversationID), zap.Error(err))
	}
	return conv, nil
}

// Append records one turn: it loads (or initializes) the aggregate, appends
// the entry, trims to MaxRecentEntries oldest-first, recomputes the summary
// once at least summaryMinEntries are retained, and writes both layers
// concurrently. The cache write is best effort; the durable write is
// authoritative and its failure fails the call.
func (s *Store) Append(ctx context.Context, conversationID string, turn Turn) error {
	conv, err := s.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		userID := turn.UserID
		if userID == "" {
			userID = "unknown"
		}
		conv = &Conversation{
			ConversationID: conversationID,
			UserID:         userID,
			Context:        make(map[string]string),
		}
	}

	ts := turn.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	conv.RecentInteractions = append(conv.RecentInteractions, Entry{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		UserInput:      turn.UserInput,
		AgentResponse:  turn.AgentResponse,
		AgentUsed:      turn.AgentUsed,
		Timestamp:      ts,
		Metadata:       turn.Metadata,
	})
	if n := len(conv.RecentInteractions); n > MaxRecentEntries {
		conv.RecentInteractions = conv.RecentInteractions[n-MaxRecentEntries:]
	}
	if len(conv.RecentInteractions) >= summaryMinEntries {
		conv.Summary = s.summarizer.Summarize(conv.RecentInteractions)
	}
	conv.LastUpdated = time.Now().UTC()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.durable.Upsert(gctx, conv); err != nil {
			return &PersistenceError{Op: "upsert", ConversationID: conversationID, Err: err}
		}
		return nil
	})
	g.Go(func() error {
		if err := s.cache.Put(gctx, conversationID, conv, s.cacheTTL); err != nil {
			s.logger.Warn("cache write failed",
				zap.String("conversation", conversationID), zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}

// Clear removes the conversation from both layers. Clearing a conversation
// that was never created is not an error.
func (s *Store) Clear(ctx context.Context, conversationID string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.durable.Delete(gctx, conversationID); err != nil {
			return &PersistenceError{Op: "delete", ConversationID: conversationID, Err: err}
		}
		return nil
	})
	g.Go(func() error {
		if err := s.cache.Delete(gctx, conversationID); err != nil {
			s.logger.Warn("cache delete failed",
				zap.String("conversation", conversationID), zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}
