package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/apperr"
	assistantotel "github.com/hrm8/assistant/internal/otel"
	"github.com/hrm8/assistant/internal/tools"
)

// MaxBatchCalls bounds both the size of one batch and the number of tool
// calls running concurrently within a request.
const MaxBatchCalls = 8

// BatchToolName is the synthetic meta-tool that fans out to ExecuteBatch.
const BatchToolName = "execute_tool_batch"

// BatchCall is one entry of a batch.
type BatchCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// BatchCallResult is the outcome of one batch entry.
type BatchCallResult struct {
	ToolName string `json:"toolName"`
	Result   Result `json:"result"`
}

// BatchResult is the outcome of a batch. Success is true when at least one
// call succeeded.
type BatchResult struct {
	Success    bool              `json:"success"`
	DurationMS int64             `json:"durationMs"`
	Results    []BatchCallResult `json:"calls"`
}

var batchParameters = json.RawMessage(fmt.Sprintf(`{
  "type": "object",
  "properties": {
    "calls": {
      "type": "array",
      "minItems": 1,
      "maxItems": %d,
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string", "description": "Name of the tool to run"},
          "args": {"type": "object", "description": "Arguments for the tool"}
        },
        "required": ["name"]
      }
    }
  },
  "required": ["calls"]
}`, MaxBatchCalls))

// BatchDeclaration is the model-facing declaration of the batch meta-tool.
func BatchDeclaration() tools.Definition {
	return tools.Definition{
		Name:        BatchToolName,
		Description: fmt.Sprintf("Run up to %d independent tools at once. Use it when several lookups are needed to answer one question.", MaxBatchCalls),
		Parameters:  batchParameters,
	}
}

// ParseBatchCalls decodes the batch meta-tool arguments.
func ParseBatchCalls(args map[string]any) ([]BatchCall, error) {
	raw, ok := args["calls"]
	if !ok {
		return nil, apperr.Validationf("calls is required")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, apperr.Validationf("invalid calls: %v", err)
	}
	var calls []BatchCall
	if err := json.Unmarshal(b, &calls); err != nil {
		return nil, apperr.Validationf("invalid calls: %v", err)
	}
	return calls, nil
}

// ExecuteBatch runs calls concurrently through Execute. allowed is the
// actor's toolset for this request; names outside it fail individually
// without aborting the batch. Results keep the order of calls.
func (e *Executor) ExecuteBatch(ctx context.Context, calls []BatchCall, a *actor.Actor, allowed []tools.Definition) (*BatchResult, error) {
	if len(calls) < 1 || len(calls) > MaxBatchCalls {
		return nil, apperr.Validationf("batch must contain between 1 and %d calls, got %d", MaxBatchCalls, len(calls))
	}
	start := time.Now()

	ctx, span := tracer.Start(ctx, "tool.execute_batch",
		trace.WithAttributes(attribute.Int("batch.size", len(calls))))
	defer span.End()

	byName := make(map[string]tools.Definition, len(allowed))
	for _, def := range allowed {
		byName[def.Name] = def
	}

	results := make([]BatchCallResult, len(calls))
	var g errgroup.Group
	g.SetLimit(MaxBatchCalls)
	for i, call := range calls {
		def, ok := byName[call.Name]
		if !ok {
			results[i] = BatchCallResult{
				ToolName: call.Name,
				Result:   Result{Error: fmt.Sprintf("Tool %s not found or not allowed for this user", call.Name)},
			}
			continue
		}
		g.Go(func() error {
			results[i] = BatchCallResult{ToolName: call.Name, Result: e.Execute(ctx, def, call.Args, a)}
			return nil
		})
	}
	_ = g.Wait()

	out := &BatchResult{Results: results, DurationMS: time.Since(start).Milliseconds()}
	succeeded := 0
	for _, r := range results {
		if r.Result.Success {
			succeeded++
		}
	}
	out.Success = succeeded > 0
	span.SetAttributes(attribute.Int("batch.succeeded", succeeded))

	log.Info().
		Str("user_id", actorID(a)).
		Int("calls", len(calls)).
		Int("succeeded", succeeded).
		Int64("duration_ms", out.DurationMS).
		Func(assistantotel.LogTraceFields(ctx)).
		Msg("tool_batch_executed")
	return out, nil
}
