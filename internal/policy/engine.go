package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/apperr"
	"github.com/hrm8/assistant/internal/audit"
	"github.com/hrm8/assistant/internal/store"
	"github.com/hrm8/assistant/internal/tools"
)

// Engine is the stateful half of access control: identity lookups for
// consultant self-scope, the operator overlay and audit recording. The scope
// and redaction functions in this package are pure and do not need it.
type Engine struct {
	dir     store.Directory
	overlay *Overlay
	auditor *Auditor
}

// NewEngine wires an engine. overlay may be nil; w may be nil to disable audit.
func NewEngine(dir store.Directory, overlay *Overlay, w audit.Writer) *Engine {
	return &Engine{dir: dir, overlay: overlay, auditor: NewAuditor(w)}
}

// Overlay returns the operator overlay, possibly nil.
func (e *Engine) Overlay() *Overlay { return e.overlay }

// Auditor returns the audit recorder.
func (e *Engine) Auditor() *Auditor { return e.auditor }

// EnforceConsultantSelfScope resolves which consultant's data a request may
// read. Company users are rejected, consultants may only ask for themselves
// and admins must name a consultant inside their region scope.
func (e *Engine) EnforceConsultantSelfScope(ctx context.Context, a *actor.Actor, requested string) (string, error) {
	ctx, span := tracer.Start(ctx, "policy.consultant_self_scope",
		trace.WithAttributes(attribute.String("actor.type", string(a.Kind))))
	defer span.End()

	requested = strings.TrimSpace(requested)
	switch a.Kind {
	case actor.KindCompanyUser:
		return "", apperr.Authorizationf("company users cannot access consultant data")
	case actor.KindConsultant:
		if requested == "" || requested == a.UserID {
			return a.UserID, nil
		}
		return "", apperr.Authorizationf("consultants may only access their own data")
	case actor.KindHRM8User:
		if requested == "" {
			return "", apperr.Validationf("consultantId is required")
		}
		scope := RegionScope(a)
		if scope != nil && len(scope) == 0 {
			return "", &apperr.ScopeConfigurationError{Msg: "actor has no assigned regions"}
		}
		c, err := e.dir.FindConsultant(ctx, requested, scope)
		if errors.Is(err, store.ErrNotFound) {
			return "", apperr.Authorizationf("consultant %s not found in your scope", requested)
		}
		if err != nil {
			span.RecordError(err)
			return "", fmt.Errorf("resolving consultant %s: %w", requested, err)
		}
		return c.ID, nil
	}
	return "", apperr.Authorizationf("unknown actor type %q", a.Kind)
}

// CheckOverlay evaluates the operator overlay for one tool.
func (e *Engine) CheckOverlay(ctx context.Context, a *actor.Actor, def tools.Definition) (*Decision, error) {
	return e.overlay.EvaluateToolAccess(ctx, actor.DeriveAccessLevel(a), def.Name)
}

// AllowedTools returns the registry's allowed tools for a minus those the
// overlay denies. Overlay evaluation errors exclude the tool.
func (e *Engine) AllowedTools(ctx context.Context, reg *tools.Registry, a *actor.Actor) []tools.Definition {
	allowed := reg.Allowed(a)
	if e.overlay == nil {
		return allowed
	}
	out := allowed[:0:0]
	for _, def := range allowed {
		d, err := e.CheckOverlay(ctx, a, def)
		if err != nil {
			log.Error().Err(err).Str("tool_name", def.Name).Msg("overlay_evaluation_failed")
			continue
		}
		if d.Allowed {
			out = append(out, def)
		}
	}
	return out
}
