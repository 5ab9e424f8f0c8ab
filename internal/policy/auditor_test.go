package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrm8/assistant/internal/audit"
	"github.com/hrm8/assistant/internal/tools"
)

type captureWriter struct {
	entries []*audit.Entry
	err     error
}

func (c *captureWriter) Write(_ context.Context, e *audit.Entry) error {
	if c.err != nil {
		return c.err
	}
	c.entries = append(c.entries, e)
	return nil
}

func TestAuditor_Record(t *testing.T) {
	w := &captureWriter{}
	a := NewAuditor(w)
	fixed := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }

	args := map[string]any{"jobId": "j1"}
	a.Record(context.Background(), regional, "get_job_details", args, true, tools.SensitivityHigh)
	a.Record(context.Background(), globalAdmin, "get_commission_analytics", args, false, tools.SensitivityCritical)

	require.Len(t, w.entries, 2)
	high := w.entries[0]
	assert.Equal(t, audit.EntityTypeToolExecution, high.EntityType)
	assert.Equal(t, "get_job_details", high.EntityID)
	assert.Equal(t, "u-regional", high.PerformedBy)
	assert.Equal(t, "regional@hrm8.test", high.PerformedByEmail)
	assert.Equal(t, "REGIONAL_LICENSEE", high.PerformedByRole)
	assert.Equal(t, audit.Changes{
		ToolName: "get_job_details", Sensitivity: "HIGH", Success: true,
		Args: map[string]any{"jobId": "j1"}, Timestamp: fixed,
	}, high.Changes)

	critical := w.entries[1]
	assert.Equal(t, audit.RedactedArgs, critical.Changes.Args)
	assert.False(t, critical.Changes.Success)
}

func TestAuditor_BestEffort(t *testing.T) {
	a := NewAuditor(&captureWriter{err: errors.New("disk full")})
	assert.NotPanics(t, func() {
		a.Record(context.Background(), consultant, "get_consultant_performance", nil, true, tools.SensitivityCritical)
	})

	var nilAuditor *Auditor
	assert.NotPanics(t, func() {
		nilAuditor.Record(context.Background(), consultant, "x", nil, true, tools.SensitivityHigh)
	})
	assert.NotPanics(t, func() {
		NewAuditor(nil).Record(context.Background(), consultant, "x", nil, true, tools.SensitivityHigh)
	})
}
