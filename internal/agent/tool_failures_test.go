package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToolFailureTracker_AlertsOnThreshold(t *testing.T) {
	tracker := NewToolFailureTracker(3, time.Minute)

	assert.False(t, tracker.RecordToolFailure("u1", "list_jobs", "err1"))
	assert.False(t, tracker.RecordToolFailure("u1", "list_jobs", "err2"))
	assert.True(t, tracker.RecordToolFailure("u1", "list_jobs", "err3"), "third failure should alert")
	assert.Equal(t, 3, tracker.FailureCount("u1"))
}

func TestToolFailureTracker_AlertsOnlyOnce(t *testing.T) {
	tracker := NewToolFailureTracker(2, time.Minute)

	tracker.RecordToolFailure("u1", "list_jobs", "err1")
	assert.True(t, tracker.RecordToolFailure("u1", "list_jobs", "err2"))
	assert.False(t, tracker.RecordToolFailure("u1", "list_jobs", "err3"))
}

func TestToolFailureTracker_WindowExpiry(t *testing.T) {
	tracker := NewToolFailureTracker(2, 50*time.Millisecond)

	tracker.RecordToolFailure("u1", "list_jobs", "err1")
	tracker.RecordToolFailure("u1", "list_jobs", "err2")
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, tracker.FailureCount("u1"))
}

func TestToolFailureTracker_PerActorIsolation(t *testing.T) {
	tracker := NewToolFailureTracker(2, time.Minute)

	tracker.RecordToolFailure("u-bad", "list_jobs", "err1")
	tracker.RecordToolFailure("u-bad", "list_jobs", "err2")

	assert.Equal(t, 2, tracker.FailureCount("u-bad"))
	assert.Equal(t, 0, tracker.FailureCount("u-good"))
}

func TestToolFailureTracker_DefaultThresholds(t *testing.T) {
	tracker := NewToolFailureTracker(0, 0)

	for i := 0; i < 9; i++ {
		assert.False(t, tracker.RecordToolFailure("u1", "list_jobs", "err"))
	}
	assert.True(t, tracker.RecordToolFailure("u1", "list_jobs", "err"), "default threshold is 10")
}
