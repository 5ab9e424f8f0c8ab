package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/trace"

	assistantotel "github.com/hrm8/assistant/internal/otel"
)

var tracer = assistantotel.Tracer("github.com/hrm8/assistant/internal/llm")

// OpenAIProvider implements Provider on the OpenAI chat completions API.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates an OpenAI provider with the given API key.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{client: openai.NewClient(apiKey)}
}

// NewOpenAIProviderWithBaseURL points the client at an OpenAI-compatible
// endpoint. baseURL is scheme+host; "/v1" is appended.
func NewOpenAIProviderWithBaseURL(apiKey, baseURL string) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL + "/v1"
	return &OpenAIProvider{client: openai.NewClientWithConfig(config)}
}

func newOpenAIProviderWithClient(client *openai.Client) *OpenAIProvider {
	return &OpenAIProvider{client: client}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

// Generate sends a chat completion request to OpenAI.
func (p *OpenAIProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "gen_ai.generate",
		trace.WithAttributes(assistantotel.LLMRequestAttributes(ProviderOpenAI, req.Model, req.Temperature, req.MaxTokens)...))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, TimeoutLLMCall)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, p.chatRequest(req))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("openai api call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai api call: %w", ErrEmptyResponse)
	}

	choice := resp.Choices[0]
	span.SetAttributes(assistantotel.LLMUsageAttributes(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)...)
	span.SetAttributes(
		assistantotel.GenAIResponseFinishReason.String(string(choice.FinishReason)),
		assistantotel.GenAIResponseID.String(resp.ID),
	)

	calls := make([]ToolCall, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		calls = append(calls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: parseArguments(tc.Function.Arguments),
		})
	}

	return &Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Model:        resp.Model,
		ToolCalls:    calls,
	}, nil
}

// Stream runs a streaming chat completion, forwarding text deltas as they
// arrive and assembling tool call fragments by index.
func (p *OpenAIProvider) Stream(ctx context.Context, req *Request, onDelta func(string) error) (*Response, error) {
	ctx, span := tracer.Start(ctx, "gen_ai.stream",
		trace.WithAttributes(assistantotel.LLMRequestAttributes(ProviderOpenAI, req.Model, req.Temperature, req.MaxTokens)...))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, TimeoutLLMCall)
	defer cancel()

	chatReq := p.chatRequest(req)
	chatReq.Stream = true
	chatReq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("openai stream: %w", err)
	}
	defer stream.Close()

	out := &Response{Model: req.Model}
	var content []byte
	partial := map[int]*partialCall{}

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("openai stream recv: %w", err)
		}
		if chunk.Model != "" {
			out.Model = chunk.Model
		}
		if chunk.Usage != nil {
			out.InputTokens = chunk.Usage.PromptTokens
			out.OutputTokens = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			out.FinishReason = string(choice.FinishReason)
		}
		if d := choice.Delta.Content; d != "" {
			content = append(content, d...)
			if err := onDelta(d); err != nil {
				return nil, err
			}
		}
		for i, tc := range choice.Delta.ToolCalls {
			idx := i
			if tc.Index != nil {
				idx = *tc.Index
			}
			pc, ok := partial[idx]
			if !ok {
				pc = &partialCall{}
				partial[idx] = pc
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
			}
			pc.args += tc.Function.Arguments
		}
	}

	out.Content = string(content)
	out.ToolCalls = assembleCalls(partial)
	span.SetAttributes(assistantotel.LLMUsageAttributes(out.InputTokens, out.OutputTokens)...)
	span.SetAttributes(assistantotel.GenAIResponseFinishReason.String(out.FinishReason))
	return out, nil
}

type partialCall struct {
	id, name, args string
}

func assembleCalls(partial map[int]*partialCall) []ToolCall {
	if len(partial) == 0 {
		return nil
	}
	idxs := make([]int, 0, len(partial))
	for i := range partial {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	calls := make([]ToolCall, 0, len(idxs))
	for _, i := range idxs {
		pc := partial[i]
		calls = append(calls, ToolCall{ID: pc.id, Name: pc.name, Arguments: parseArguments(pc.args)})
	}
	return calls
}

func (p *OpenAIProvider) chatRequest(req *Request) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		m := openai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Name,
		}
		for _, tc := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(marshalArguments(tc.Arguments)),
				},
			})
		}
		messages = append(messages, m)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
	for _, t := range req.Tools {
		chatReq.Tools = append(chatReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return chatReq
}
