package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	assistantotel "github.com/hrm8/assistant/internal/otel"
)

var tracer = assistantotel.Tracer("github.com/hrm8/assistant/internal/audit")

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = errors.New("audit entry not found")

const schema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	timestamp TIMESTAMP NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	performed_by TEXT NOT NULL,
	performed_by_role TEXT NOT NULL,
	success INTEGER NOT NULL,
	entry_json TEXT NOT NULL,
	signature TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_performed_by ON audit_logs(performed_by);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_logs(entity_id);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_logs(timestamp);
`

// Store persists signed audit entries in SQLite.
type Store struct {
	db     *sql.DB
	signer *Signer
}

// NewStore opens (creating if needed) the audit database at dbPath.
func NewStore(dbPath, signingKey string) (*Store, error) {
	signer, err := NewSigner(signingKey)
	if err != nil {
		return nil, fmt.Errorf("creating signer: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}
	return &Store{db: db, signer: signer}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Write signs and stores a single entry. Missing ID and timestamp are filled in.
func (s *Store) Write(ctx context.Context, e *Entry) error {
	return s.WriteBatch(ctx, []*Entry{e})
}

// WriteBatch signs and stores entries in one transaction.
func (s *Store) WriteBatch(ctx context.Context, entries []*Entry) error {
	ctx, span := tracer.Start(ctx, "audit.write",
		trace.WithAttributes(attribute.Int("audit.count", len(entries))))
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("beginning audit transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO audit_logs (id, timestamp, entity_type, entity_id, performed_by, performed_by_role, success, entry_json, signature)
	               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, e := range entries {
		if e.ID == "" {
			e.ID = "aud_" + uuid.New().String()
		}
		if e.Changes.Timestamp.IsZero() {
			e.Changes.Timestamp = time.Now().UTC()
		}
		e.Signature = ""
		unsigned, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshaling audit entry: %w", err)
		}
		e.Signature = s.signer.Sign(unsigned)
		signed, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshaling audit entry: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query,
			e.ID, e.Changes.Timestamp.UTC(), e.EntityType, e.EntityID, e.PerformedBy,
			e.PerformedByRole, e.Changes.Success, string(signed), e.Signature,
		); err != nil {
			span.RecordError(err)
			return fmt.Errorf("storing audit entry %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("committing audit entries: %w", err)
	}
	return nil
}

// Get retrieves an entry by ID.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "audit.get",
		trace.WithAttributes(attribute.String("audit.id", id)))
	defer span.End()

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT entry_json FROM audit_logs WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying audit entry: %w", err)
	}

	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("unmarshaling audit entry: %w", err)
	}
	return &e, nil
}

// ListFilter narrows List. Zero values are ignored.
type ListFilter struct {
	PerformedBy string
	ToolName    string
	From        time.Time
	To          time.Time
	Limit       int
}

// List returns entries newest first.
func (s *Store) List(ctx context.Context, f ListFilter) ([]Entry, error) {
	ctx, span := tracer.Start(ctx, "audit.list",
		trace.WithAttributes(
			attribute.String("audit.performed_by", f.PerformedBy),
			attribute.String("audit.tool", f.ToolName),
		))
	defer span.End()

	query := `SELECT entry_json FROM audit_logs WHERE 1=1`
	var args []any
	if f.PerformedBy != "" {
		query += ` AND performed_by = ?`
		args = append(args, f.PerformedBy)
	}
	if f.ToolName != "" {
		query += ` AND entity_id = ?`
		args = append(args, f.ToolName)
	}
	if !f.From.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		query += ` AND timestamp <= ?`
		args = append(args, f.To.UTC())
	}
	query += ` ORDER BY timestamp DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("unmarshaling audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Verify recomputes the HMAC of the stored entry.
func (s *Store) Verify(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "audit.verify",
		trace.WithAttributes(attribute.String("audit.id", id)))
	defer span.End()

	e, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return s.verifyEntry(e)
}

func (s *Store) verifyEntry(e *Entry) (bool, error) {
	sig := e.Signature
	e.Signature = ""
	defer func() { e.Signature = sig }()

	data, err := json.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("marshaling for verification: %w", err)
	}
	return s.signer.Verify(data, sig), nil
}

// Purge deletes entries older than before and returns how many were removed.
func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "audit.purge")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE timestamp < ?`, before.UTC())
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("purging audit entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rows affected: %w", err)
	}
	span.SetAttributes(attribute.Int64("audit.purged", n))
	return n, nil
}
