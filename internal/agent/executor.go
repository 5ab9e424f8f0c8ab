// Package agent runs tools on behalf of an actor and drives the language
// model conversation loop that decides which tools to call.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/apperr"
	assistantotel "github.com/hrm8/assistant/internal/otel"
	"github.com/hrm8/assistant/internal/policy"
	"github.com/hrm8/assistant/internal/tools"
)

var tracer = assistantotel.Tracer("github.com/hrm8/assistant/internal/agent")

// Result is the outcome of one tool execution. A failed result never
// carries Data.
type Result struct {
	Success    bool   `json:"success"`
	DurationMS int64  `json:"durationMs"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Executor wraps every tool run with access checks, argument validation,
// redaction and auditing.
type Executor struct {
	registry *tools.Registry
	engine   *policy.Engine
	failures *ToolFailureTracker
}

// NewExecutor creates an executor. A nil failures tracker disables failure
// alerting.
func NewExecutor(reg *tools.Registry, engine *policy.Engine, failures *ToolFailureTracker) *Executor {
	return &Executor{registry: reg, engine: engine, failures: failures}
}

// Registry returns the tool registry the executor resolves names against.
func (e *Executor) Registry() *tools.Registry { return e.registry }

// Engine returns the policy engine.
func (e *Executor) Engine() *policy.Engine { return e.engine }

// Execute runs def for a. It never returns an error: every failure is
// reported in the Result.
func (e *Executor) Execute(ctx context.Context, def tools.Definition, args map[string]any, a *actor.Actor) Result {
	start := time.Now()
	level := actor.DeriveAccessLevel(a)

	ctx, span := tracer.Start(ctx, "tool.execute",
		trace.WithAttributes(
			assistantotel.GenAIToolName.String(def.Name),
			assistantotel.ActorAccessLevel.String(level.String()),
			assistantotel.ToolSensitivity.String(def.Sensitivity.String()),
		))
	defer span.End()

	if reason, denied := e.deny(ctx, def, a, level); denied {
		span.SetStatus(codes.Error, "access denied")
		assistantotel.RecordToolDenied(ctx, def.Name, level.String(), reason)
		log.Warn().
			Str("tool_name", def.Name).
			Str("user_id", actorID(a)).
			Str("access_level", level.String()).
			Str("reason", reason).
			Func(assistantotel.LogTraceFields(ctx)).
			Msg("tool_denied")
		return Result{
			Success:    false,
			DurationMS: time.Since(start).Milliseconds(),
			Error:      "Access denied: " + reason,
		}
	}

	data, err := e.invoke(ctx, def, args, a)
	result := Result{Success: err == nil}
	if err != nil {
		span.RecordError(err)
		result.Error = errorMessage(err)
		if e.failures != nil {
			e.failures.RecordToolFailure(actorID(a), def.Name, result.Error)
		}
	} else {
		result.Data = policy.RedactSensitiveData(a, data, def.Sensitivity)
	}

	if def.Sensitivity.Audited() {
		e.engine.Auditor().Record(ctx, a, def.Name, args, result.Success, def.Sensitivity)
	}

	result.DurationMS = time.Since(start).Milliseconds()
	span.SetAttributes(assistantotel.ToolSuccess.Bool(result.Success))
	assistantotel.RecordToolExecution(ctx, def.Name, level.String(), result.Success, result.DurationMS)

	ev := log.Info()
	if !result.Success {
		ev = log.Warn().Str("error", result.Error)
	}
	ev.Str("tool_name", def.Name).
		Str("user_id", actorID(a)).
		Str("access_level", level.String()).
		Bool("success", result.Success).
		Int64("duration_ms", result.DurationMS).
		Func(assistantotel.LogTraceFields(ctx)).
		Msg("tool_executed")
	return result
}

// deny reports why a may not run def, if it may not.
func (e *Executor) deny(ctx context.Context, def tools.Definition, a *actor.Actor, level actor.AccessLevel) (string, bool) {
	if !policy.CanUseTool(a, def) {
		return fmt.Sprintf("tool %s is not available at access level %s", def.Name, level), true
	}
	decision, err := e.engine.CheckOverlay(ctx, a, def)
	if err != nil {
		log.Error().Err(err).Str("tool_name", def.Name).Msg("overlay_evaluation_failed")
		return "policy evaluation failed", true
	}
	if !decision.Allowed {
		return strings.Join(decision.Reasons, "; "), true
	}
	return "", false
}

// invoke validates args, runs the tool and normalizes its output to plain
// JSON values.
func (e *Executor) invoke(ctx context.Context, def tools.Definition, args map[string]any, a *actor.Actor) (data any, err error) {
	if err := e.registry.ValidateArgs(def, args); err != nil {
		return nil, err
	}
	if err := policy.CheckScopeRequirements(a, def); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}

	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = &apperr.ToolExecutionError{Tool: def.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	out, runErr := def.Run(ctx, args, a)
	if runErr != nil {
		return nil, &apperr.ToolExecutionError{Tool: def.Name, Err: runErr}
	}
	return normalize(out)
}

// normalize round-trips v through JSON so redaction sees maps and slices
// rather than typed structs.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decoding tool result: %w", err)
	}
	return out, nil
}

func actorID(a *actor.Actor) string {
	if a == nil {
		return ""
	}
	return a.UserID
}

// errorMessage flattens err to the message shown to the model.
func errorMessage(err error) string {
	var te *apperr.ToolExecutionError
	if errors.As(err, &te) {
		return te.Err.Error()
	}
	return err.Error()
}
