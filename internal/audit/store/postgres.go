// Package store provides postgres and in-memory audit trail stores.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scimgate/internal/audit"
	id "scimgate/pkg/domain"
	txcontext "scimgate/pkg/platform/tx"
)

// Postgres persists audit entries in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts one entry. Pending entries run inside the caller's
// transaction; Failed entries are written standalone after rollback.
func (s *Postgres) Append(ctx context.Context, entry *audit.Entry) error {
	query := `
		INSERT INTO audit_log (id, correlation_id, action, entity_type, entity_id, actor_id, change_details, timestamp, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(entry.ID),
		entry.CorrelationID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.ActorID,
		entry.ChangeDetails,
		entry.Timestamp,
		string(entry.Status),
		entry.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// UpdateStatus transitions one entry to the given status.
func (s *Postgres) UpdateStatus(ctx context.Context, entryID id.EntryID, status audit.Status, errorMessage string) error {
	query := `
		UPDATE audit_log
		SET status = $2, error_message = $3
		WHERE id = $1
	`
	if _, err := s.db.ExecContext(ctx, query, uuid.UUID(entryID), string(status), errorMessage); err != nil {
		return fmt.Errorf("update audit entry status: %w", err)
	}
	return nil
}

// PromotePendingBefore flips Pending entries older than cutoff to Success
// and reports how many were promoted.
func (s *Postgres) PromotePendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE audit_log
		SET status = $1
		WHERE status = $2 AND timestamp < $3
	`
	res, err := s.db.ExecContext(ctx, query, string(audit.StatusSuccess), string(audit.StatusPending), cutoff)
	if err != nil {
		return 0, fmt.Errorf("promote pending audit entries: %w", err)
	}
	promoted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count promoted audit entries: %w", err)
	}
	return promoted, nil
}

// ListByEntity returns the trail for one entity, newest first.
func (s *Postgres) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]*audit.Entry, error) {
	query := `
		SELECT id, correlation_id, action, entity_type, entity_id, actor_id, change_details, timestamp, status, error_message
		FROM audit_log
		WHERE entity_id = $1
		ORDER BY timestamp DESC
	`
	rows, err := s.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		var (
			entry   audit.Entry
			entryID uuid.UUID
			status  string
		)
		err := rows.Scan(
			&entryID,
			&entry.CorrelationID,
			&entry.Action,
			&entry.EntityType,
			&entry.EntityID,
			&entry.ActorID,
			&entry.ChangeDetails,
			&entry.Timestamp,
			&status,
			&entry.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.ID = id.EntryID(entryID)
		entry.Status = audit.Status(status)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
