// Package tx provides the unit-of-work boundary for the write path.
//
// A Runner owns transaction begin/commit/rollback. Participating stores never
// commit on their own: they pick the *sql.Tx out of the context via From and
// append within the boundary. Rollback is guaranteed on every failure path,
// so either the aggregate row, its outbox messages, and its audit entry all
// become visible together, or none of them do.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}
