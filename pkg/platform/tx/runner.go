package tx

import (
	"context"
	"database/sql"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dErrors "scimgate/pkg/domain-errors"
)

const defaultTxTimeout = 5 * time.Second

var tracer = otel.Tracer("scimgate/pkg/platform/tx")

// Runner executes a function inside a single unit of work. The function
// receives a derived context carrying the transaction; any error (or panic)
// rolls the whole unit back.
type Runner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// PostgresRunner runs units of work against a *sql.DB.
type PostgresRunner struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresRunner constructs a Runner over the given database handle.
func NewPostgresRunner(db *sql.DB) *PostgresRunner {
	return &PostgresRunner{db: db}
}

// RunInTx begins a transaction, stashes it in the context, runs fn, and
// commits only when fn succeeds. Rollback is deferred so it also covers
// panics and failed commits; rolling back an already-finished transaction
// is a no-op.
func (r *PostgresRunner) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := r.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx, span := tracer.Start(ctx, "tx.RunInTx", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		span.SetStatus(codes.Error, "begin failed")
		return dErrors.Wrap(err, dErrors.CodeInternal, "begin transaction")
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		span.SetStatus(codes.Error, "unit of work failed")
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		span.SetStatus(codes.Error, "commit failed")
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit transaction")
	}
	return nil
}

// InMemoryRunner satisfies Runner for tests and memory-backed wiring. There
// is no transaction to carry; fn runs against the caller's context and its
// error is returned unchanged, so rollback-dependent behavior must be
// simulated by the fake stores themselves.
type InMemoryRunner struct{}

func NewInMemoryRunner() *InMemoryRunner { return &InMemoryRunner{} }

func (*InMemoryRunner) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}
