package dispatch

import "sync"

// conversationLocks hands out one mutex per conversation so that at most one
// Handle call per conversation is in flight. Unrelated conversations never
// contend; there is no global lock around request handling.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[string]*sync.Mutex)}
}

// get returns the mutex owning the given conversation, creating it on first
// use. Mutexes are retained for the life of the process; a conversation key
// is a few dozen bytes and the map is bounded by distinct conversations seen.
func (c *conversationLocks) get(conversationID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.locks[conversationID]
	if !ok {
		m = &sync.Mutex{}
		c.locks[conversationID] = m
	}
	return m
}
