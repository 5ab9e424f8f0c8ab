package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/apperr"
	"github.com/hrm8/assistant/internal/llm"
	assistantotel "github.com/hrm8/assistant/internal/otel"
	"github.com/hrm8/assistant/internal/store"
	"github.com/hrm8/assistant/internal/tools"
)

// Step budgets: model round trips allowed per request.
const (
	ChatStepBudget   = 5
	StreamStepBudget = 10
)

// budgetExhaustedAnswer is returned when the step budget runs out before the
// model produced any text.
const budgetExhaustedAnswer = "I could not finish answering within the allowed number of steps. Please narrow the question and try again."

// ErrStreamClosed is returned by Stream when the caller's writer fails,
// usually because the client went away.
var ErrStreamClosed = errors.New("stream closed by client")

// Config holds model parameters for every provider call.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Orchestrator drives the generate, call tools, generate loop for one actor
// request at a time. It holds no per-request state and is safe for
// concurrent use.
type Orchestrator struct {
	provider llm.Provider
	exec     *Executor
	dir      store.Directory
	cfg      Config
}

// NewOrchestrator wires an orchestrator. dir is used for prompt
// personalization only and may be nil.
func NewOrchestrator(provider llm.Provider, exec *Executor, dir store.Directory, cfg Config) *Orchestrator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	return &Orchestrator{provider: provider, exec: exec, dir: dir, cfg: cfg}
}

// HistoryMessage is one prior conversation turn supplied by the client.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the buffered chat request body.
type ChatRequest struct {
	Message string           `json:"message"`
	History []HistoryMessage `json:"history,omitempty"`
}

// StreamRequest is the streaming request body. Either Messages or Message
// must be set.
type StreamRequest struct {
	Messages []HistoryMessage `json:"messages,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// Normalize reduces the request to a minimal message list.
func (r StreamRequest) Normalize() ([]HistoryMessage, error) {
	msgs := conversation(r.Messages)
	if len(msgs) > 0 {
		return msgs, nil
	}
	if strings.TrimSpace(r.Message) != "" {
		return []HistoryMessage{{Role: llm.RoleUser, Content: r.Message}}, nil
	}
	return nil, apperr.Validationf("messages or message is required")
}

// ToolUse summarizes one tool call for the caller.
type ToolUse struct {
	Name       string         `json:"name"`
	Args       map[string]any `json:"args"`
	Success    bool           `json:"success"`
	DurationMS int64          `json:"durationMs"`
}

// ChatResponse is the buffered chat result.
type ChatResponse struct {
	Answer    string    `json:"answer"`
	ToolsUsed []ToolUse `json:"toolsUsed"`
	Model     string    `json:"model"`
}

// StreamWriter receives model text as it is generated.
type StreamWriter interface {
	WriteDelta(text string) error
}

// turn is the state of one request.
type turn struct {
	correlationID string
	actor         *actor.Actor
	allowed       []tools.Definition
	byName        map[string]tools.Definition
	declarations  []llm.Tool
	messages      []llm.Message

	mu   sync.Mutex
	used []ToolUse
}

func (t *turn) record(uses ...ToolUse) {
	t.mu.Lock()
	t.used = append(t.used, uses...)
	t.mu.Unlock()
}

// Chat runs the buffered loop: tool calls of one step execute sequentially
// and the answer is returned once the loop ends.
func (o *Orchestrator) Chat(ctx context.Context, a *actor.Actor, req ChatRequest) (*ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, apperr.Validationf("message is required")
	}
	msgs := append(conversation(req.History), HistoryMessage{Role: llm.RoleUser, Content: req.Message})

	start := time.Now()
	t, err := o.prepare(ctx, a, msgs)
	if err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "assistant.chat",
		trace.WithAttributes(
			attribute.String("correlation_id", t.correlationID),
			assistantotel.ActorType.String(string(a.Kind)),
			assistantotel.ActorAccessLevel.String(actor.DeriveAccessLevel(a).String()),
		))
	defer span.End()

	model := o.cfg.Model
	answer := ""
	steps := 0
	finished := false
	for steps < ChatStepBudget {
		steps++
		resp, err := o.generate(ctx, t, steps, nil)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if resp.Model != "" {
			model = resp.Model
		}
		if resp.Content != "" {
			answer = resp.Content
		}
		if len(resp.ToolCalls) == 0 {
			finished = true
			break
		}
		t.messages = append(t.messages, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			t.messages = append(t.messages, o.runTool(ctx, t, call))
		}
	}
	if !finished {
		o.logBudgetExhausted(ctx, t, ChatStepBudget)
		if answer == "" {
			answer = budgetExhaustedAnswer
		}
	}

	used := t.used
	if used == nil {
		used = []ToolUse{}
	}
	log.Info().
		Str("correlation_id", t.correlationID).
		Str("user_id", a.UserID).
		Str("model", model).
		Int("steps", steps).
		Int("tools_used", len(used)).
		Bool("budget_exhausted", !finished).
		Dur("duration", time.Since(start)).
		Func(assistantotel.LogTraceFields(ctx)).
		Msg("assistant_chat_completed")
	return &ChatResponse{Answer: answer, ToolsUsed: used, Model: model}, nil
}

// Stream runs the streaming loop, writing model text to w as it arrives.
// Tool calls of one step run concurrently. When ctx is cancelled the loop
// stops; tool calls already dispatched run to completion and their results
// are dropped.
func (o *Orchestrator) Stream(ctx context.Context, a *actor.Actor, req StreamRequest, w StreamWriter) error {
	msgs, err := req.Normalize()
	if err != nil {
		return err
	}
	start := time.Now()
	t, err := o.prepare(ctx, a, msgs)
	if err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "assistant.stream",
		trace.WithAttributes(
			attribute.String("correlation_id", t.correlationID),
			assistantotel.ActorType.String(string(a.Kind)),
			assistantotel.ActorAccessLevel.String(actor.DeriveAccessLevel(a).String()),
		))
	defer span.End()

	wrote := false
	for step := 1; step <= StreamStepBudget; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		separated := !wrote
		onDelta := func(d string) error {
			if d == "" {
				return nil
			}
			if !separated {
				separated = true
				if err := w.WriteDelta("\n\n"); err != nil {
					return fmt.Errorf("%w: %v", ErrStreamClosed, err)
				}
			}
			if err := w.WriteDelta(d); err != nil {
				return fmt.Errorf("%w: %v", ErrStreamClosed, err)
			}
			wrote = true
			return nil
		}
		resp, err := o.generate(ctx, t, step, onDelta)
		if err != nil {
			span.RecordError(err)
			return err
		}
		if len(resp.ToolCalls) == 0 {
			log.Info().
				Str("correlation_id", t.correlationID).
				Str("user_id", a.UserID).
				Int("steps", step).
				Int("tools_used", len(t.used)).
				Dur("duration", time.Since(start)).
				Func(assistantotel.LogTraceFields(ctx)).
				Msg("assistant_stream_completed")
			return nil
		}

		t.messages = append(t.messages, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		replies := o.runToolsConcurrently(context.WithoutCancel(ctx), t, resp.ToolCalls)
		if err := ctx.Err(); err != nil {
			log.Info().Str("correlation_id", t.correlationID).Msg("assistant_stream_cancelled")
			return err
		}
		t.messages = append(t.messages, replies...)
	}
	o.logBudgetExhausted(ctx, t, StreamStepBudget)
	if !wrote {
		if err := w.WriteDelta(budgetExhaustedAnswer); err != nil {
			return fmt.Errorf("%w: %v", ErrStreamClosed, err)
		}
	}
	return nil
}

// prepare validates the actor and builds the scope, toolset and initial
// message list.
func (o *Orchestrator) prepare(ctx context.Context, a *actor.Actor, msgs []HistoryMessage) (*turn, error) {
	if err := actor.Validate(a); err != nil {
		return nil, err
	}
	allowed := o.exec.Engine().AllowedTools(ctx, o.exec.Registry(), a)
	byName := make(map[string]tools.Definition, len(allowed))
	for _, def := range allowed {
		byName[def.Name] = def
	}
	declared := make([]tools.Definition, 0, len(allowed)+1)
	declared = append(declared, allowed...)
	declared = append(declared, BatchDeclaration())

	t := &turn{
		correlationID: "req_" + uuid.New().String()[:12],
		actor:         a,
		allowed:       allowed,
		byName:        byName,
		declarations:  tools.Declarations(declared),
	}
	t.messages = append(t.messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: systemPrompt(a, personalize(ctx, o.dir, a)),
	})
	for _, m := range msgs {
		t.messages = append(t.messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	return t, nil
}

// generate runs one model step. onDelta selects streaming.
func (o *Orchestrator) generate(ctx context.Context, t *turn, step int, onDelta func(string) error) (*llm.Response, error) {
	req := &llm.Request{
		Model:       o.cfg.Model,
		Messages:    t.messages,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
		Tools:       t.declarations,
	}
	attrs := append(assistantotel.LLMRequestAttributes(o.provider.Name(), req.Model, req.Temperature, req.MaxTokens),
		assistantotel.Step.Int(step))
	ctx, span := tracer.Start(ctx, "assistant.step", trace.WithAttributes(attrs...))
	defer span.End()

	var (
		resp *llm.Response
		err  error
	)
	if onDelta != nil {
		resp, err = o.provider.Stream(ctx, req, onDelta)
	} else {
		resp, err = o.provider.Generate(ctx, req)
	}
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrStreamClosed) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Error().Err(err).
			Str("correlation_id", t.correlationID).
			Str("provider", o.provider.Name()).
			Int("step", step).
			Func(assistantotel.LogTraceFields(ctx)).
			Msg("provider_call_failed")
		return nil, &apperr.ProviderError{Provider: o.provider.Name(), Err: err}
	}
	span.SetAttributes(assistantotel.LLMUsageAttributes(resp.InputTokens, resp.OutputTokens)...)
	span.SetAttributes(assistantotel.GenAIResponseFinishReason.String(resp.FinishReason))
	return resp, nil
}

// runTool executes one model tool call and returns the tool message that
// answers it.
func (o *Orchestrator) runTool(ctx context.Context, t *turn, call llm.ToolCall) llm.Message {
	var payload any
	if call.Name == BatchToolName {
		payload = o.runBatch(ctx, t, call)
	} else {
		var res Result
		if def, ok := t.byName[call.Name]; ok {
			res = o.exec.Execute(ctx, def, call.Arguments, t.actor)
		} else {
			res = Result{Error: fmt.Sprintf("Tool %s not found or not allowed for this user", call.Name)}
		}
		t.record(ToolUse{Name: call.Name, Args: cloneArgs(call.Arguments), Success: res.Success, DurationMS: res.DurationMS})
		payload = res
	}
	return llm.Message{Role: llm.RoleTool, ToolCallID: call.ID, Name: call.Name, Content: encode(payload)}
}

func (o *Orchestrator) runBatch(ctx context.Context, t *turn, call llm.ToolCall) any {
	calls, err := ParseBatchCalls(call.Arguments)
	if err != nil {
		t.record(ToolUse{Name: BatchToolName, Args: cloneArgs(call.Arguments)})
		return Result{Error: err.Error()}
	}
	batch, err := o.exec.ExecuteBatch(ctx, calls, t.actor, t.allowed)
	if err != nil {
		t.record(ToolUse{Name: BatchToolName, Args: cloneArgs(call.Arguments)})
		return Result{Error: err.Error()}
	}
	uses := make([]ToolUse, 0, len(batch.Results))
	for i, r := range batch.Results {
		uses = append(uses, ToolUse{Name: r.ToolName, Args: cloneArgs(calls[i].Args), Success: r.Result.Success, DurationMS: r.Result.DurationMS})
	}
	t.record(uses...)
	return batch
}

// runToolsConcurrently executes the calls of one step in parallel, bounded
// by MaxBatchCalls, and returns the tool messages in call order.
func (o *Orchestrator) runToolsConcurrently(ctx context.Context, t *turn, calls []llm.ToolCall) []llm.Message {
	replies := make([]llm.Message, len(calls))
	var g errgroup.Group
	g.SetLimit(MaxBatchCalls)
	for i, call := range calls {
		g.Go(func() error {
			replies[i] = o.runTool(ctx, t, call)
			return nil
		})
	}
	_ = g.Wait()
	return replies
}

func (o *Orchestrator) logBudgetExhausted(ctx context.Context, t *turn, budget int) {
	log.Warn().
		Str("correlation_id", t.correlationID).
		Str("user_id", t.actor.UserID).
		Int("budget", budget).
		Func(assistantotel.LogTraceFields(ctx)).
		Msg("step_budget_exhausted")
}

// conversation keeps the user and assistant turns of client supplied
// history. System and tool messages are never accepted from the client.
func conversation(in []HistoryMessage) []HistoryMessage {
	out := make([]HistoryMessage, 0, len(in))
	for _, m := range in {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != llm.RoleUser && role != llm.RoleAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, HistoryMessage{Role: role, Content: m.Content})
	}
	return out
}

func cloneArgs(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	return maps.Clone(args)
}

func encode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":%q}`, err.Error())
	}
	return string(b)
}
