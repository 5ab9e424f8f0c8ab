package policy

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage/inmem"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hrm8/assistant/internal/actor"
)

//go:embed rego/*.rego
var embeddedPolicies embed.FS

const (
	toolAccessFile  = "rego/tool_access.rego"
	toolAccessQuery = "data.assistant.tool_access.deny"
)

// Decision is the result of an overlay evaluation.
type Decision struct {
	Allowed       bool     `json:"allowed"`
	Action        string   `json:"action"`
	Reasons       []string `json:"reasons,omitempty"`
	PolicyVersion string   `json:"policyVersion,omitempty"`
}

func allow(version string) *Decision {
	return &Decision{Allowed: true, Action: "allow", PolicyVersion: version}
}

// Overlay evaluates the operator policy with embedded OPA. A nil *Overlay
// allows everything.
type Overlay struct {
	cfg      *OverlayConfig
	prepared rego.PreparedEvalQuery
}

// NewOverlay precompiles the tool access Rego against cfg. A nil cfg yields a
// nil overlay.
func NewOverlay(ctx context.Context, cfg *OverlayConfig) (*Overlay, error) {
	if cfg == nil {
		return nil, nil
	}
	ctx, span := tracer.Start(ctx, "policy.overlay.new")
	defer span.End()

	data, err := configToData(cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("converting policy to OPA data: %w", err)
	}

	content, err := embeddedPolicies.ReadFile(toolAccessFile)
	if err != nil {
		return nil, fmt.Errorf("reading embedded policy %s: %w", toolAccessFile, err)
	}
	r := rego.New(
		rego.Query(toolAccessQuery),
		rego.Module(toolAccessFile, string(content)),
		rego.Store(inmem.NewFromObject(map[string]interface{}{"policy": data})),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("preparing Rego policy %s: %w", toolAccessFile, err)
	}
	return &Overlay{cfg: cfg, prepared: prepared}, nil
}

// VersionTag identifies the loaded policy file, or "" for no overlay.
func (o *Overlay) VersionTag() string {
	if o == nil {
		return ""
	}
	return o.cfg.VersionTag
}

// EvaluateToolAccess decides whether an actor at level may call toolName.
func (o *Overlay) EvaluateToolAccess(ctx context.Context, level actor.AccessLevel, toolName string) (*Decision, error) {
	if o == nil {
		return allow(""), nil
	}
	ctx, span := tracer.Start(ctx, "policy.evaluate_tool_access",
		trace.WithAttributes(
			attribute.String("tool.name", toolName),
			attribute.String("actor.access_level", level.String()),
			attribute.String("policy.version", o.cfg.VersionTag),
		))
	defer span.End()

	reasons, err := evaluateDenyReasons(ctx, o.prepared, map[string]interface{}{
		"tool_name":    toolName,
		"access_level": level.String(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	decision := allow(o.cfg.VersionTag)
	if len(reasons) > 0 {
		decision.Allowed = false
		decision.Action = "deny"
		decision.Reasons = reasons
	}
	span.SetAttributes(
		attribute.Bool("policy.allowed", decision.Allowed),
		attribute.Int("policy.deny_reasons", len(decision.Reasons)),
	)
	return decision, nil
}

// evaluateDenyReasons runs a prepared query that yields a set of strings.
func evaluateDenyReasons(ctx context.Context, pq rego.PreparedEvalQuery, input map[string]interface{}) ([]string, error) {
	results, err := pq.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", toolAccessQuery, err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, nil
	}

	// OPA returns a set as []interface{} or, occasionally, map[string]interface{}.
	var reasons []string
	switch v := results[0].Expressions[0].Value.(type) {
	case []interface{}:
		for _, msg := range v {
			if s, ok := msg.(string); ok {
				reasons = append(reasons, s)
			}
		}
	case map[string]interface{}:
		for _, msg := range v {
			if s, ok := msg.(string); ok {
				reasons = append(reasons, s)
			}
		}
	}
	return reasons, nil
}

func configToData(cfg *OverlayConfig) (map[string]interface{}, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshalling policy: %w", err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("unmarshalling policy data: %w", err)
	}
	return data, nil
}
