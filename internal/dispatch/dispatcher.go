package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voxhollow/parley/internal/agent"
	"github.com/voxhollow/parley/internal/memory"
)

const apology = "I apologize, but something went wrong while handling your request. Please try again."

// Dispatcher selects a strategy per request, runs it exclusively for its
// conversation, and records the exchange in memory. Handle never returns an
// error: every fault terminates in a well-formed degraded response.
type Dispatcher struct {
	strategies map[string]agent.Strategy
	memory     *memory.Store
	locks      *conversationLocks
	logger     *zap.Logger
}

// New creates a Dispatcher over the given memory store and strategies.
func New(mem *memory.Store, strategies []agent.Strategy, logger *zap.Logger) *Dispatcher {
	byName := make(map[string]agent.Strategy, len(strategies))
	for _, s := range strategies {
		byName[s.Name()] = s
	}
	return &Dispatcher{
		strategies: byName,
		memory:     mem,
		locks:      newConversationLocks(),
		logger:     logger,
	}
}

// Handle processes one request end to end: load memory, select and run a
// strategy, append the turn, stamp timing. The whole call holds the
// conversation's lock, so memory reads and writes for one conversation are
// strictly ordered.
func (d *Dispatcher) Handle(ctx context.Context, req *agent.Request) (resp *agent.Response) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic in handle", zap.Any("panic", r))
			resp = d.failure(fmt.Errorf("panic: %v", r))
		}
	}()

	if err := req.Validate(); err != nil {
		return d.failure(err)
	}

	start := time.Now()
	convID := req.Context.ConversationID

	lock := d.locks.get(convID)
	lock.Lock()
	defer lock.Unlock()

	mem, err := d.memory.Get(ctx, convID)
	if err != nil {
		d.logger.Error("memory load failed", zap.String("conversation", convID), zap.Error(err))
		return d.failure(err)
	}

	name := SelectStrategy(req)
	strategy, ok := d.strategies[name]
	if !ok {
		return d.failure(fmt.Errorf("no strategy registered for %q", name))
	}

	d.logger.Info("dispatching request",
		zap.String("conversation", convID),
		zap.String("strategy", name),
		zap.String("kind", string(req.Kind)))

	resp = strategy.Process(ctx, req, mem)

	// Failed turns are recorded too, so later turns keep their context.
	err = d.memory.Append(ctx, convID, memory.Turn{
		UserID:        req.Context.UserID,
		UserInput:     req.Content,
		AgentResponse: resp.Content,
		AgentUsed:     resp.AgentUsed,
		Timestamp:     time.Now().UTC(),
		Metadata:      resp.Metadata,
	})
	if err != nil {
		d.logger.Error("memory append failed", zap.String("conversation", convID), zap.Error(err))
		return d.failure(err)
	}

	resp.ExecutionTimeMs = time.Since(start).Milliseconds()
	return resp
}

// failure is the top-level degraded response: user-safe content, the fault
// confined to metadata.
func (d *Dispatcher) failure(err error) *agent.Response {
	return &agent.Response{
		Success:         false,
		Content:         apology,
		AgentUsed:       "orchestrator",
		ExecutionTimeMs: 0,
		Metadata:        map[string]string{"error": err.Error()},
	}
}

// SelectStrategy picks a strategy name for a request. Checks run in a fixed
// order and the first match wins: research beats task beats reasoning, and
// reasoning is the default. The order is a contract: "please search and
// execute this" routes to research.
func SelectStrategy(req *agent.Request) string {
	content := strings.ToLower(req.Content)

	switch {
	case req.Kind == agent.KindResearch || containsAny(content, "search", "find", "research"):
		return "research"
	case req.Kind == agent.KindTask || containsAny(content, "do", "execute", "run"):
		return "task"
	case req.Kind == agent.KindReasoning || containsAny(content, "analyze", "think", "reason"):
		return "reasoning"
	default:
		return "reasoning"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
