// Package postgres persists audit events in PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	audit "ekyc/pkg/platform/audit"
	"ekyc/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

// Store implements audit.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a PostgreSQL audit store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the audit table and indexes when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Append inserts event, joining a transaction carried in ctx when there is
// one. Re-appending an event with the same ID is a no-op.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if t, ok := tx.From(ctx); ok {
		return s.append(ctx, t, event)
	}
	return s.append(ctx, s.pool, event)
}

// AppendBatch inserts events in one transaction. Any failure rolls back the
// whole batch.
func (s *Store) AppendBatch(ctx context.Context, events []audit.Event) error {
	return tx.Run(ctx, s.pool, func(ctx context.Context, t pgx.Tx) error {
		for _, event := range events {
			if err := s.append(ctx, t, event); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) append(ctx context.Context, db execer, event audit.Event) error {
	eventID, err := eventUUID(event.ID)
	if err != nil {
		return err
	}
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}

	query := `
		INSERT INTO audit_events (
			id, category, timestamp, subject, action, document_type,
			decision, reason, confidence, failed_fields, request_id, client_ip
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = db.Exec(ctx, query,
		eventID,
		string(category),
		event.Timestamp,
		event.Subject,
		event.Action,
		event.DocumentType,
		event.Decision,
		event.Reason,
		event.Confidence,
		event.FailedFields,
		event.RequestID,
		event.ClientIP,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func eventUUID(id string) (uuid.UUID, error) {
	if id == "" {
		return uuid.New(), nil
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("audit event id %q: %w", id, err)
	}
	return parsed, nil
}

const selectColumns = `
	SELECT id, category, timestamp, subject, action, document_type,
		   decision, reason, confidence, failed_fields, request_id, client_ip
	FROM audit_events
`

// ListBySubject returns events for one image digest, oldest first.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	rows, err := s.pool.Query(ctx, selectColumns+`WHERE subject = $1 ORDER BY timestamp ASC, seq ASC`, subject)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	return scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.pool.Query(ctx, selectColumns+`ORDER BY timestamp DESC, seq DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]audit.Event, error) {
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (audit.Event, error) {
		var (
			event    audit.Event
			id       uuid.UUID
			category string
		)
		err := row.Scan(
			&id,
			&category,
			&event.Timestamp,
			&event.Subject,
			&event.Action,
			&event.DocumentType,
			&event.Decision,
			&event.Reason,
			&event.Confidence,
			&event.FailedFields,
			&event.RequestID,
			&event.ClientIP,
		)
		event.ID = id.String()
		event.Category = audit.EventCategory(category)
		return event, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan audit events: %w", err)
	}
	return events, nil
}
