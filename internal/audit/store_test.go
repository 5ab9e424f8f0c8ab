package audit

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "test-signing-key-1234567890123456"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "audit.db"), testSigningKey)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testEntry(tool, user string, success bool) *Entry {
	return &Entry{
		EntityType:       EntityTypeToolExecution,
		EntityID:         tool,
		PerformedBy:      user,
		PerformedByEmail: user + "@hrm8.test",
		PerformedByRole:  "GLOBAL_ADMIN",
		Changes: Changes{
			ToolName:    tool,
			Sensitivity: "HIGH",
			Success:     success,
			Args:        map[string]any{"regionId": "r1", "limit": float64(10)},
		},
	}
}

func TestStoreWriteAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := testEntry("get_job_details", "u1", true)
	require.NoError(t, store.Write(ctx, e))
	assert.True(t, strings.HasPrefix(e.ID, "aud_"))
	assert.True(t, strings.HasPrefix(e.Signature, signaturePrefix))
	assert.False(t, e.Changes.Timestamp.IsZero())

	got, err := store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "get_job_details", got.EntityID)
	assert.Equal(t, EntityTypeToolExecution, got.EntityType)
	assert.Equal(t, "u1@hrm8.test", got.PerformedByEmail)
	assert.Equal(t, map[string]any{"regionId": "r1", "limit": float64(10)}, got.Changes.Args)

	_, err = store.Get(ctx, "aud_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreVerify(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := testEntry("get_commission_analytics", "u1", false)
	e.Changes.Args = RedactedArgs
	require.NoError(t, store.Write(ctx, e))

	ok, err := store.Verify(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = store.db.ExecContext(ctx,
		`UPDATE audit_logs SET entry_json = replace(entry_json, '"success":false', '"success":true') WHERE id = ?`, e.ID)
	require.NoError(t, err)

	ok, err = store.Verify(ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, ok, "tampered entry must fail verification")
}

func TestStoreListFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, e := range []*Entry{
		testEntry("list_jobs", "u1", true),
		testEntry("get_job_details", "u1", true),
		testEntry("get_job_details", "u2", false),
	} {
		e.Changes.Timestamp = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.Write(ctx, e))
	}

	all, err := store.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "u2", all[0].PerformedBy, "newest first")

	byUser, err := store.List(ctx, ListFilter{PerformedBy: "u1"})
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byTool, err := store.List(ctx, ListFilter{ToolName: "get_job_details"})
	require.NoError(t, err)
	assert.Len(t, byTool, 2)

	window, err := store.List(ctx, ListFilter{From: base.Add(30 * time.Minute), To: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "get_job_details", window[0].EntityID)

	limited, err := store.List(ctx, ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStorePurge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	old := testEntry("list_jobs", "u1", true)
	old.Changes.Timestamp = now.Add(-100 * 24 * time.Hour)
	fresh := testEntry("list_jobs", "u1", true)
	fresh.Changes.Timestamp = now
	require.NoError(t, store.WriteBatch(ctx, []*Entry{old, fresh}))

	n, err := store.Purge(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestNewSigner(t *testing.T) {
	_, err := NewSigner("short")
	assert.Error(t, err)

	s, err := NewSigner(strings.Repeat("ab", 32))
	require.NoError(t, err)
	sig := s.Sign([]byte("payload"))
	assert.True(t, s.Verify([]byte("payload"), sig))
	assert.False(t, s.Verify([]byte("payload2"), sig))

	_, err = NewStore(filepath.Join(t.TempDir(), "a.db"), "short")
	assert.Error(t, err)
}
