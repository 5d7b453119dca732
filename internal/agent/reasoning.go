package agent

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/voxhollow/parley/internal/memory"
	"github.com/voxhollow/parley/internal/provider"
)

const reasoningPersona = `You are a thoughtful reasoning assistant. Work through the user's
question step by step, state your assumptions, and give a clear, direct answer.`

// ReasoningAgent answers with a single completion over the persona preamble,
// the conversation history and the request content. It is also the default
// strategy when no routing rule matches.
type ReasoningAgent struct {
	llm    LLM
	model  string
	logger *zap.Logger
}

// NewReasoningAgent creates the reasoning strategy.
func NewReasoningAgent(llm LLM, model string, logger *zap.Logger) *ReasoningAgent {
	return &ReasoningAgent{llm: llm, model: model, logger: logger}
}

func (a *ReasoningAgent) Name() string { return "reasoning" }

// Process builds one prompt and returns the completion verbatim.
func (a *ReasoningAgent) Process(ctx context.Context, req *Request, mem *memory.Conversation) *Response {
	messages := []provider.Message{{Role: "system", Content: reasoningPersona}}
	if history := formatHistory(mem); history != "" {
		messages = append(messages, provider.Message{
			Role:    "system",
			Content: "Recent conversation:\n" + history,
		})
	}
	messages = append(messages, provider.Message{Role: "user", Content: req.Content})

	resp, err := a.llm.Chat(ctx, &provider.ChatRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: 0.7,
	})
	if err != nil {
		a.logger.Warn("reasoning completion failed", zap.Error(err))
		return degraded(a.Name(), err)
	}

	return &Response{
		Success:   true,
		Content:   resp.Content,
		AgentUsed: a.Name(),
		Metadata: map[string]string{
			"model":       resp.Model,
			"tokens_used": strconv.Itoa(resp.Usage.TotalTokens),
		},
	}
}
