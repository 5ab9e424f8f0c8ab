// Package testutil provides shared test helpers, mocks, and utilities for assistant tests.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/hrm8/assistant/internal/llm"
)

// MockProvider implements llm.Provider for tests without live API calls.
// When Content is empty, Generate returns "mock response from " + ProviderName; otherwise uses Content.
// Set Err to simulate LLM errors.
type MockProvider struct {
	ProviderName string // provider identifier, e.g. "openai"
	Content      string // canned response; empty = "mock response from " + ProviderName
	Err          error  // if set, Generate and Stream return this error
}

// Name returns the provider identifier (implements llm.Provider).
func (m *MockProvider) Name() string { return m.ProviderName }

// Generate returns a canned response or the configured error.
func (m *MockProvider) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	content := m.Content
	if content == "" {
		content = "mock response from " + m.ProviderName
	}
	return &llm.Response{
		Content:      content,
		FinishReason: "stop",
		InputTokens:  10,
		OutputTokens: 20,
		Model:        req.Model,
	}, nil
}

// Stream emits the canned response word by word.
func (m *MockProvider) Stream(ctx context.Context, req *llm.Request, onDelta func(string) error) (*llm.Response, error) {
	resp, err := m.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := emitWords(resp.Content, onDelta); err != nil {
		return nil, err
	}
	return resp, nil
}

// ToolCallMockProvider implements llm.Provider for testing the tool loop.
// It returns a configurable sequence of responses (e.g. tool calls then final answer)
// and tracks call count and received requests for assertions.
// Set ErrOnCall (1-based) and Err to make a call fail (e.g. mid-loop failure).
type ToolCallMockProvider struct {
	mu               sync.Mutex
	Responses        []*llm.Response // call N gets Responses[N] or the last one if N >= len
	CallCount        int             // incremented on each Generate or Stream call
	ReceivedMessages [][]llm.Message
	ReceivedTools    [][]llm.Tool
	ErrOnCall        int   // 1-based; when CallCount == ErrOnCall the call returns (nil, Err). 0 = never
	Err              error // error to return when ErrOnCall is hit
}

// Name returns "openai".
func (p *ToolCallMockProvider) Name() string { return "openai" }

// Generate returns the next response in the sequence and records the request.
func (p *ToolCallMockProvider) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	p.CallCount++
	idx := p.CallCount - 1
	msgCopy := make([]llm.Message, len(req.Messages))
	copy(msgCopy, req.Messages)
	p.ReceivedMessages = append(p.ReceivedMessages, msgCopy)
	toolCopy := make([]llm.Tool, len(req.Tools))
	copy(toolCopy, req.Tools)
	p.ReceivedTools = append(p.ReceivedTools, toolCopy)
	resps := p.Responses
	callCount := p.CallCount
	errOnCall := p.ErrOnCall
	errReturn := p.Err
	p.mu.Unlock()

	if errOnCall > 0 && callCount == errOnCall && errReturn != nil {
		return nil, errReturn
	}
	if len(resps) == 0 {
		return &llm.Response{
			Content:      "no responses configured",
			FinishReason: "stop",
			InputTokens:  10,
			OutputTokens: 20,
			Model:        req.Model,
		}, nil
	}
	if idx >= len(resps) {
		idx = len(resps) - 1
	}
	out := resps[idx]
	r := &llm.Response{
		Content:      out.Content,
		FinishReason: out.FinishReason,
		InputTokens:  out.InputTokens,
		OutputTokens: out.OutputTokens,
		Model:        out.Model,
	}
	if r.Model == "" {
		r.Model = req.Model
	}
	if len(out.ToolCalls) > 0 {
		r.ToolCalls = make([]llm.ToolCall, len(out.ToolCalls))
		copy(r.ToolCalls, out.ToolCalls)
	}
	return r, nil
}

// Stream behaves like Generate and emits the response text word by word.
func (p *ToolCallMockProvider) Stream(ctx context.Context, req *llm.Request, onDelta func(string) error) (*llm.Response, error) {
	resp, err := p.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := emitWords(resp.Content, onDelta); err != nil {
		return nil, err
	}
	return resp, nil
}

// Calls returns the number of provider calls made so far.
func (p *ToolCallMockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CallCount
}

func emitWords(content string, onDelta func(string) error) error {
	if content == "" {
		return nil
	}
	words := strings.SplitAfter(content, " ")
	for _, w := range words {
		if err := onDelta(w); err != nil {
			return err
		}
	}
	return nil
}
