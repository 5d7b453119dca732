package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeCache is an in-process Cache with switchable failure modes.
type fakeCache struct {
	mu      sync.Mutex
	data    map[string]*Conversation
	puts    int
	gets    int
	failAll bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]*Conversation)}
}

func (c *fakeCache) Get(_ context.Context, id string) (*Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.failAll {
		return nil, errors.New("cache down")
	}
	return c.data[id], nil
}

func (c *fakeCache) Put(_ context.Context, id string, conv *Conversation, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	if c.failAll {
		return errors.New("cache down")
	}
	c.data[id] = conv
	return nil
}

func (c *fakeCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll {
		return errors.New("cache down")
	}
	delete(c.data, id)
	return nil
}

func (c *fakeCache) evict(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, id)
}

func (c *fakeCache) has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[id]
	return ok
}

// fakeDurable is an in-process Durable with a switchable write failure.
type fakeDurable struct {
	mu         sync.Mutex
	rows       map[string]*Conversation
	failUpsert bool
	reads      int
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{rows: make(map[string]*Conversation)}
}

func (d *fakeDurable) ReadOne(_ context.Context, id string) (*Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	return d.rows[id], nil
}

func (d *fakeDurable) Upsert(_ context.Context, conv *Conversation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failUpsert {
		return errors.New("disk on fire")
	}
	d.rows[conv.ConversationID] = conv
	return nil
}

func (d *fakeDurable) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.rows, id)
	return nil
}

func newTestStore() (*Store, *fakeCache, *fakeDurable) {
	cache := newFakeCache()
	durable := newFakeDurable()
	return NewStore(cache, durable, nil, zap.NewNop()), cache, durable
}

func appendN(t *testing.T, s *Store, convID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := s.Append(context.Background(), convID, Turn{
			UserID:        "u1",
			UserInput:     fmt.Sprintf("input %d", i),
			AgentResponse: fmt.Sprintf("response %d", i),
			AgentUsed:     "reasoning",
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
}

func TestGetUnknownConversation(t *testing.T) {
	s, _, _ := newTestStore()
	conv, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv != nil {
		t.Fatalf("expected nil for unknown conversation, got %+v", conv)
	}
}

func TestAppendTrimsToTenOldestFirst(t *testing.T) {
	s, _, _ := newTestStore()
	appendN(t, s, "c1", 15)

	conv, err := s.Get(context.Background(), "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := len(conv.RecentInteractions); got != MaxRecentEntries {
		t.Fatalf("got %d entries, want %d", got, MaxRecentEntries)
	}
	// Entries 5..14 survive, in chronological order.
	for i, e := range conv.RecentInteractions {
		want := fmt.Sprintf("input %d", i+5)
		if e.UserInput != want {
			t.Errorf("entry %d: got %q, want %q", i, e.UserInput, want)
		}
	}
	for i := 1; i < len(conv.RecentInteractions); i++ {
		if conv.RecentInteractions[i].Timestamp.Before(conv.RecentInteractions[i-1].Timestamp) {
			t.Errorf("entries out of chronological order at %d", i)
		}
	}
}

func TestSummaryThreshold(t *testing.T) {
	s, _, _ := newTestStore()

	appendN(t, s, "c1", 2)
	conv, _ := s.Get(context.Background(), "c1")
	if conv.Summary != "" {
		t.Errorf("summary before 3 entries should be empty, got %q", conv.Summary)
	}

	appendN(t, s, "c1", 1)
	conv, _ = s.Get(context.Background(), "c1")
	if conv.Summary == "" {
		t.Error("summary after 3 entries should be non-empty")
	}
}

func TestEntriesGetUniqueIDs(t *testing.T) {
	s, _, _ := newTestStore()
	appendN(t, s, "c1", 5)

	conv, _ := s.Get(context.Background(), "c1")
	seen := make(map[string]bool)
	for _, e := range conv.RecentInteractions {
		if e.ID == "" {
			t.Fatal("entry without id")
		}
		if seen[e.ID] {
			t.Fatalf("duplicate entry id %s", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestLastUpdatedMonotonic(t *testing.T) {
	s, _, _ := newTestStore()
	appendN(t, s, "c1", 1)
	conv, _ := s.Get(context.Background(), "c1")
	first := conv.LastUpdated

	appendN(t, s, "c1", 1)
	conv, _ = s.Get(context.Background(), "c1")
	if conv.LastUpdated.Before(first) {
		t.Errorf("last_updated went backwards: %v then %v", first, conv.LastUpdated)
	}
}

func TestGetRepopulatesCacheAfterEviction(t *testing.T) {
	s, cache, durable := newTestStore()
	appendN(t, s, "c1", 4)

	before, _ := s.Get(context.Background(), "c1")
	cache.evict("c1")

	after, err := s.Get(context.Background(), "c1")
	if err != nil {
		t.Fatalf("get after eviction: %v", err)
	}
	if len(after.RecentInteractions) != len(before.RecentInteractions) || after.Summary != before.Summary {
		t.Error("memory after cache eviction differs from before")
	}
	if !cache.has("c1") {
		t.Error("cache was not repopulated from durable store")
	}

	// A second read must be served by the cache, not the durable store.
	reads := durable.reads
	if _, err := s.Get(context.Background(), "c1"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if durable.reads != reads {
		t.Errorf("second get hit the durable store (%d -> %d reads)", reads, durable.reads)
	}
}

func TestAppendSurvivesCacheFailure(t *testing.T) {
	s, cache, durable := newTestStore()
	cache.failAll = true

	if err := s.Append(context.Background(), "c1", Turn{UserInput: "hi", AgentResponse: "hello", AgentUsed: "reasoning"}); err != nil {
		t.Fatalf("append with dead cache should succeed, got %v", err)
	}
	if durable.rows["c1"] == nil {
		t.Fatal("durable row missing after append")
	}
}

func TestAppendPropagatesDurableFailure(t *testing.T) {
	s, cache, durable := newTestStore()
	durable.failUpsert = true

	err := s.Append(context.Background(), "c1", Turn{UserInput: "hi", AgentResponse: "hello", AgentUsed: "reasoning"})
	if err == nil {
		t.Fatal("expected error from durable failure")
	}
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PersistenceError, got %T: %v", err, err)
	}
	// A successful cache write must not mask the durable failure.
	_ = cache
}

func TestClearThenGetReturnsAbsent(t *testing.T) {
	s, _, _ := newTestStore()
	appendN(t, s, "c1", 3)

	if err := s.Clear(context.Background(), "c1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	conv, err := s.Get(context.Background(), "c1")
	if err != nil {
		t.Fatalf("get after clear: %v", err)
	}
	if conv != nil {
		t.Fatalf("expected absent after clear, got %+v", conv)
	}
}

func TestClearNeverCreatedConversation(t *testing.T) {
	s, _, _ := newTestStore()
	if err := s.Clear(context.Background(), "ghost"); err != nil {
		t.Fatalf("clear of never-created conversation should not fault: %v", err)
	}
}

func TestDefaultUserIDOnFirstWrite(t *testing.T) {
	s, _, _ := newTestStore()
	if err := s.Append(context.Background(), "c1", Turn{UserInput: "hi", AgentResponse: "yo", AgentUsed: "reasoning"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	conv, _ := s.Get(context.Background(), "c1")
	if conv.UserID != "unknown" {
		t.Errorf("got user id %q, want %q", conv.UserID, "unknown")
	}
}
