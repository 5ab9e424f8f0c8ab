// Package llm adapts language model providers to the assistant's tool-calling
// conversation loop.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// TimeoutLLMCall bounds a single provider call. The orchestrator itself only
// enforces a step budget.
const TimeoutLLMCall = 60 * time.Second

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

var (
	ErrProviderNotAvailable = errors.New("provider not available")
	ErrEmptyResponse        = errors.New("provider returned no choices")
)

// Provider is implemented by every language model backend.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai", "anthropic").
	Name() string
	// Generate runs one completion step and returns the full response.
	Generate(ctx context.Context, req *Request) (*Response, error)
	// Stream runs one completion step, calling onDelta for every text chunk as
	// it arrives. The returned Response carries the assembled text and any
	// tool calls. An error from onDelta aborts the step.
	Stream(ctx context.Context, req *Request, onDelta func(string) error) (*Response, error)
}

// Request is one completion step.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Tools       []Tool
}

// Message is a chat message. Assistant messages may carry ToolCalls; tool
// messages answer one call identified by ToolCallID.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// Tool is the model-facing declaration of a callable tool.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Response is the result of one completion step.
type Response struct {
	Content      string
	FinishReason string
	InputTokens  int
	OutputTokens int
	Model        string
	ToolCalls    []ToolCall
}

// ToolCall is a request from the model to run a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// parseArguments decodes a JSON argument string. Malformed or empty input
// yields an empty map so the tool's schema validation reports the problem.
func parseArguments(raw string) map[string]any {
	args := map[string]any{}
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

func marshalArguments(args map[string]any) json.RawMessage {
	if args == nil {
		return json.RawMessage("{}")
	}
	b, err := json.Marshal(args)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}
