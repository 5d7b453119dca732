package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/voxhollow/parley/internal/memory"
	"github.com/voxhollow/parley/internal/provider"
)

// taskPlan is the structured classification of a task request.
type taskPlan struct {
	Type         string   `json:"type"`
	Complexity   string   `json:"complexity"`
	Steps        []string `json:"steps"`
	Requirements []string `json:"requirements"`
}

// defaultPlan is the contractual fallback when the classification output
// cannot be parsed.
func defaultPlan() taskPlan {
	return taskPlan{
		Type:       "general",
		Complexity: "medium",
		Steps: []string{
			"Understand the request",
			"Work through the task",
			"Report the outcome",
		},
	}
}

// Follow-up phrasing patterns: next-step, suggestion, recommendation.
var followUpPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:next steps?|you should)[:\s]+([^.!?\n]+)`),
	regexp.MustCompile(`(?i)(?:i suggest|suggestion[:\s])\s*([^.!?\n]+)`),
	regexp.MustCompile(`(?i)(?:i recommend|recommendation[:\s])\s*([^.!?\n]+)`),
}

// TaskAgent classifies the request into a structured plan, then executes the
// plan against the request content and conversation history.
type TaskAgent struct {
	llm    LLM
	model  string
	logger *zap.Logger
}

// NewTaskAgent creates the task strategy.
func NewTaskAgent(llm LLM, model string, logger *zap.Logger) *TaskAgent {
	return &TaskAgent{llm: llm, model: model, logger: logger}
}

func (a *TaskAgent) Name() string { return "task" }

func (a *TaskAgent) Process(ctx context.Context, req *Request, mem *memory.Conversation) *Response {
	plan, err := a.classify(ctx, req.Content)
	if err != nil {
		a.logger.Warn("task classification failed", zap.Error(err))
		return degraded(a.Name(), err)
	}

	answer, err := a.execute(ctx, req.Content, plan, mem)
	if err != nil {
		a.logger.Warn("task execution failed", zap.Error(err))
		return degraded(a.Name(), err)
	}

	return &Response{
		Success:         true,
		Content:         answer,
		AgentUsed:       a.Name(),
		FollowUpActions: extractFollowUpMatches(answer),
		Metadata: map[string]string{
			"task_type":  plan.Type,
			"complexity": plan.Complexity,
		},
	}
}

// classify asks the LLM for a JSON plan. A transport failure propagates; a
// parse failure falls back to the default plan, by contract.
func (a *TaskAgent) classify(ctx context.Context, content string) (taskPlan, error) {
	resp, err := a.llm.Chat(ctx, &provider.ChatRequest{
		Model: a.model,
		Messages: []provider.Message{
			{Role: "system", Content: `Classify the user's task. Reply with JSON only:
{"type": "<category>", "complexity": "simple|medium|complex", "steps": ["..."], "requirements": ["..."]}`},
			{Role: "user", Content: content},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return taskPlan{}, err
	}

	var plan taskPlan
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Content)), &plan); err != nil || plan.Type == "" {
		a.logger.Debug("plan parse failed, using default", zap.String("raw", resp.Content))
		return defaultPlan(), nil
	}
	return plan, nil
}

// execute runs the plan against the request and history.
func (a *TaskAgent) execute(ctx context.Context, content string, plan taskPlan, mem *memory.Conversation) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Task type: %s (complexity: %s)\nPlanned steps:\n", plan.Type, plan.Complexity)
	for i, step := range plan.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	if len(plan.Requirements) > 0 {
		fmt.Fprintf(&b, "Requirements: %s\n", strings.Join(plan.Requirements, ", "))
	}

	messages := []provider.Message{
		{Role: "system", Content: "You are a task execution assistant. Follow the plan below and produce the final result for the user."},
		{Role: "system", Content: b.String()},
	}
	if history := formatHistory(mem); history != "" {
		messages = append(messages, provider.Message{Role: "system", Content: "Recent conversation:\n" + history})
	}
	messages = append(messages, provider.Message{Role: "user", Content: content})

	resp, err := a.llm.Chat(ctx, &provider.ChatRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: 0.4,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// extractFollowUpMatches applies the fixed phrasing patterns to the output,
// deduplicates matches and caps them at three.
func extractFollowUpMatches(text string) []string {
	var actions []string
	for _, re := range followUpPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if len(m) > 1 {
				actions = append(actions, m[1])
			}
		}
	}
	return dedupeAndCap(actions, maxFollowUpActions)
}

// stripCodeFence removes a surrounding markdown code fence from an LLM reply.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
