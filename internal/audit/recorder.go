package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "scimgate/pkg/domain"
	"scimgate/pkg/requestcontext"
)

// Store persists audit entries. Append participates in the caller's
// transaction when one is carried in the context.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	UpdateStatus(ctx context.Context, entryID id.EntryID, status Status, errorMessage string) error
	PromotePendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Recorder drives the audit lifecycle around a transaction.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Request describes the operation being audited.
type Request struct {
	Action        string
	EntityType    string
	EntityID      uuid.UUID
	ChangeDetails string
	// CorrelationID ties the entry to the operation's outbox rows. When
	// empty it falls back to the request ID in the context.
	CorrelationID string
}

func (req Request) correlationID(ctx context.Context) string {
	if req.CorrelationID != "" {
		return req.CorrelationID
	}
	return requestcontext.RequestID(ctx)
}

// Begin writes a Pending entry within the caller's transaction and returns
// its ID for finalization after the transaction resolves. Actor and time
// come from the request context.
func (r *Recorder) Begin(ctx context.Context, req Request) (id.EntryID, error) {
	entry := &Entry{
		ID:            id.EntryID(uuid.New()),
		CorrelationID: req.correlationID(ctx),
		Action:        req.Action,
		EntityType:    req.EntityType,
		EntityID:      req.EntityID,
		ActorID:       requestcontext.ActorID(ctx),
		ChangeDetails: req.ChangeDetails,
		Timestamp:     requestcontext.Now(ctx).UTC(),
		Status:        StatusPending,
	}
	if err := r.store.Append(ctx, entry); err != nil {
		return id.EntryID{}, fmt.Errorf("append audit entry: %w", err)
	}
	return entry.ID, nil
}

// MarkSuccess finalizes a committed operation's entry. It runs outside the
// transaction; if the process dies first, the sweeper catches the orphan.
func (r *Recorder) MarkSuccess(ctx context.Context, entryID id.EntryID) error {
	if err := r.store.UpdateStatus(ctx, entryID, StatusSuccess, ""); err != nil {
		return fmt.Errorf("finalize audit entry: %w", err)
	}
	return nil
}

// RecordFailure writes a standalone Failed entry after a rollback. The
// Pending row written by Begin vanished with the transaction, so the failure
// gets a fresh row of its own.
func (r *Recorder) RecordFailure(ctx context.Context, req Request, cause error) error {
	entry := &Entry{
		ID:            id.EntryID(uuid.New()),
		CorrelationID: req.correlationID(ctx),
		Action:        req.Action,
		EntityType:    req.EntityType,
		EntityID:      req.EntityID,
		ActorID:       requestcontext.ActorID(ctx),
		ChangeDetails: req.ChangeDetails,
		Timestamp:     requestcontext.Now(ctx).UTC(),
		Status:        StatusFailed,
		ErrorMessage:  cause.Error(),
	}
	if err := r.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("append failed audit entry: %w", err)
	}
	return nil
}
