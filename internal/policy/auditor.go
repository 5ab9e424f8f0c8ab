package policy

import (
	"context"
	"maps"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/apperr"
	"github.com/hrm8/assistant/internal/audit"
	assistantotel "github.com/hrm8/assistant/internal/otel"
	"github.com/hrm8/assistant/internal/tools"
)

// Auditor records sensitive tool executions. Recording is best-effort.
type Auditor struct {
	w   audit.Writer
	now func() time.Time
}

// NewAuditor wraps w. A nil w disables recording.
func NewAuditor(w audit.Writer) *Auditor {
	return &Auditor{w: w, now: time.Now}
}

// Record writes one AI_TOOL_EXECUTION entry. CRITICAL arguments are replaced
// with a redaction marker. Write failures are logged, never returned.
func (r *Auditor) Record(ctx context.Context, a *actor.Actor, toolName string, args map[string]any, success bool, sensitivity tools.Sensitivity) {
	if r == nil || r.w == nil || a == nil {
		return
	}

	var recorded any = maps.Clone(args)
	if args == nil {
		recorded = map[string]any{}
	}
	if sensitivity == tools.SensitivityCritical {
		recorded = audit.RedactedArgs
	}
	role := a.Role()
	if role == "" {
		role = actor.DeriveAccessLevel(a).String()
	}

	entry := &audit.Entry{
		EntityType:       audit.EntityTypeToolExecution,
		EntityID:         toolName,
		PerformedBy:      a.UserID,
		PerformedByEmail: a.Email,
		PerformedByRole:  role,
		Changes: audit.Changes{
			ToolName:    toolName,
			Sensitivity: sensitivity.String(),
			Success:     success,
			Args:        recorded,
			Timestamp:   r.now().UTC(),
		},
	}
	if err := r.w.Write(ctx, entry); err != nil {
		werr := &apperr.AuditWriteError{Err: err}
		log.Warn().Err(werr).
			Str("tool_name", toolName).
			Str("user_id", a.UserID).
			Func(assistantotel.LogTraceFields(ctx)).
			Msg("audit_write_failed")
	}
}
