// Package store provides postgres and in-memory outbox stores.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"scimgate/internal/outbox"
	id "scimgate/pkg/domain"
	txcontext "scimgate/pkg/platform/tx"
)

// Postgres persists outbox messages in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed outbox store.
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

// Append inserts one message. Runs inside the caller's transaction when one
// is carried in the context.
func (s *Postgres) Append(ctx context.Context, msg *outbox.Message) error {
	query := `
		INSERT INTO outbox_messages (id, aggregate_id, event_type, payload, correlation_id, created_at, processed)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(msg.ID),
		msg.AggregateID,
		msg.EventType,
		msg.Payload,
		msg.CorrelationID,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// FetchUnprocessed returns up to batchSize unprocessed messages, oldest
// first.
func (s *Postgres) FetchUnprocessed(ctx context.Context, batchSize int) ([]*outbox.Message, error) {
	query := `
		SELECT id, aggregate_id, event_type, payload, correlation_id, created_at, processed, processed_at
		FROM outbox_messages
		WHERE NOT processed
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, batchSize)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed messages: %w", err)
	}
	defer rows.Close()

	var messages []*outbox.Message
	for rows.Next() {
		var (
			msg   outbox.Message
			msgID uuid.UUID
		)
		err := rows.Scan(
			&msgID,
			&msg.AggregateID,
			&msg.EventType,
			&msg.Payload,
			&msg.CorrelationID,
			&msg.CreatedAt,
			&msg.Processed,
			&msg.ProcessedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		msg.ID = id.MessageID(msgID)
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox messages: %w", err)
	}
	return messages, nil
}

// MarkProcessed flips the processed flag. Idempotent: already-processed or
// missing messages are a no-op, which keeps at-least-once delivery safe.
func (s *Postgres) MarkProcessed(ctx context.Context, msgID id.MessageID) error {
	query := `
		UPDATE outbox_messages
		SET processed = TRUE, processed_at = NOW()
		WHERE id = $1 AND NOT processed
	`
	if _, err := s.db.ExecContext(ctx, query, uuid.UUID(msgID)); err != nil {
		return fmt.Errorf("mark message processed: %w", err)
	}
	return nil
}
