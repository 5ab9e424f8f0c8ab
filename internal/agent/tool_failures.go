package agent

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ToolFailureTracker counts tool run failures per actor. Access denials are
// not failures; only tools that were allowed to run and then returned an
// error are recorded, for operator alerting.
type ToolFailureTracker struct {
	mu        sync.Mutex
	actors    map[string]*toolFailureRecord
	threshold int
	window    time.Duration
}

type toolFailureRecord struct {
	failures []time.Time
	alerted  bool
}

// NewToolFailureTracker creates a tracker. When an actor exceeds threshold
// failures within window, a warning is logged for operator alerting.
// threshold <= 0 defaults to 10; window <= 0 defaults to 5 minutes.
func NewToolFailureTracker(threshold int, window time.Duration) *ToolFailureTracker {
	if threshold <= 0 {
		threshold = 10
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &ToolFailureTracker{
		actors:    make(map[string]*toolFailureRecord),
		threshold: threshold,
		window:    window,
	}
}

// RecordToolFailure records a tool failure for the actor identified by
// userID. It returns true if the alert threshold was just crossed.
func (t *ToolFailureTracker) RecordToolFailure(userID, toolName, errMsg string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.actors[userID]
	if !ok {
		rec = &toolFailureRecord{}
		t.actors[userID] = rec
	}

	now := time.Now()
	rec.failures = append(filterAfter(rec.failures, now.Add(-t.window)), now)

	if len(rec.failures) >= t.threshold && !rec.alerted {
		rec.alerted = true
		log.Warn().
			Str("user_id", userID).
			Str("last_tool", toolName).
			Str("last_error", errMsg).
			Int("failure_count", len(rec.failures)).
			Dur("window", t.window).
			Msg("tool_failure_threshold_exceeded")
		return true
	}

	// the window slides, so a quiet actor can alert again later
	if len(rec.failures) < t.threshold {
		rec.alerted = false
	}
	return false
}

// FailureCount returns the failures recorded for userID within the window.
func (t *ToolFailureTracker) FailureCount(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.actors[userID]
	if !ok {
		return 0
	}
	return len(filterAfter(rec.failures, time.Now().Add(-t.window)))
}

func filterAfter(ts []time.Time, cutoff time.Time) []time.Time {
	out := make([]time.Time, 0, len(ts)+1)
	for _, v := range ts {
		if v.After(cutoff) {
			out = append(out, v)
		}
	}
	return out
}
