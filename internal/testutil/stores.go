package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hrm8/assistant/internal/audit"
	"github.com/hrm8/assistant/internal/store"
)

// NewTestAuditStore creates an audit store in a temp dir and registers
// t.Cleanup to close it. Uses TestSigningKey.
func NewTestAuditStore(t *testing.T) *audit.Store {
	t.Helper()
	s, err := audit.NewStore(filepath.Join(t.TempDir(), "audit.db"), TestSigningKey)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// NewDemoStore opens a temp-dir SQLite business store loaded with the demo
// fixtures.
func NewDemoStore(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "business.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Load(context.Background(), store.DemoFixtures()); err != nil {
		t.Fatal(err)
	}
	return s
}
