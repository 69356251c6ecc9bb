// Package service orchestrates provisioning operations.
//
// Every mutation follows the same pipeline: validate, run the aggregate
// write plus its outbox messages plus a Pending audit entry in one
// transaction, then finalize the audit entry and clear the aggregate's
// queued events. Events are cleared only after commit so a retried
// operation re-derives them from scratch.
package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"scimgate/internal/audit"
	scimmetrics "scimgate/internal/scim/metrics"
	"scimgate/internal/scim/models"
	"scimgate/internal/scim/store/group"
	"scimgate/internal/scim/store/user"
	id "scimgate/pkg/domain"
	"scimgate/pkg/platform/tx"
	"scimgate/pkg/requestcontext"
)

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.User, error)
	FindByUserName(ctx context.Context, userName string) (*models.User, error)
	List(ctx context.Context, filter user.ListFilter) ([]*models.User, int, error)
}

type GroupStore interface {
	Create(ctx context.Context, g *models.Group) error
	Update(ctx context.Context, g *models.Group) error
	Delete(ctx context.Context, groupID id.GroupID) error
	FindByID(ctx context.Context, groupID id.GroupID) (*models.Group, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Group, error)
	FindByDisplayName(ctx context.Context, displayName string) (*models.Group, error)
	List(ctx context.Context, filter group.ListFilter) ([]*models.Group, int, error)
}

// OutboxRecorder converts queued domain events into outbox rows inside the
// current transaction.
type OutboxRecorder interface {
	Record(ctx context.Context, events []models.Event, correlationID string) error
}

// AuditRecorder drives the audit lifecycle around a transaction.
type AuditRecorder interface {
	Begin(ctx context.Context, req audit.Request) (id.EntryID, error)
	MarkSuccess(ctx context.Context, entryID id.EntryID) error
	RecordFailure(ctx context.Context, req audit.Request, cause error) error
}

// Service orchestrates user and group provisioning.
type Service struct {
	users   UserStore
	groups  GroupStore
	outbox  OutboxRecorder
	audits  AuditRecorder
	tx      tx.Runner
	logger  *slog.Logger
	metrics *scimmetrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *scimmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(users UserStore, groups GroupStore, outboxRecorder OutboxRecorder, auditRecorder AuditRecorder, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		users:  users,
		groups: groups,
		outbox: outboxRecorder,
		audits: auditRecorder,
		tx:     runner,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// recorded is the aggregate-agnostic slice of behavior the commit pipeline
// needs.
type recorded interface {
	Events() []models.Event
	ClearEvents()
}

// commit runs persist plus the outbox append plus a Pending audit entry in
// one transaction, then finalizes the entry and clears the aggregate's
// events. On failure a standalone Failed entry records the rejection after
// the rollback. The correlation ID is resolved once here so the outbox rows
// and the audit entry of one operation always share it, request ID or not.
func (s *Service) commit(ctx context.Context, aggregate recorded, auditReq audit.Request, persist func(txCtx context.Context) error) error {
	correlationID := requestcontext.RequestID(ctx)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	auditReq.CorrelationID = correlationID

	var entryID id.EntryID
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := persist(txCtx); err != nil {
			return err
		}
		if err := s.outbox.Record(txCtx, aggregate.Events(), correlationID); err != nil {
			return err
		}
		var beginErr error
		entryID, beginErr = s.audits.Begin(txCtx, auditReq)
		return beginErr
	})
	if err != nil {
		if auditErr := s.audits.RecordFailure(ctx, auditReq, err); auditErr != nil {
			s.logger.ErrorContext(ctx, "failed to record audit failure", "error", auditErr)
		}
		return err
	}

	if err := s.audits.MarkSuccess(ctx, entryID); err != nil {
		// The transaction committed; the sweeper promotes the orphaned
		// Pending entry.
		s.logger.WarnContext(ctx, "failed to finalize audit entry", "entry_id", entryID, "error", err)
	}
	aggregate.ClearEvents()
	return nil
}

func changeDetails(v any) string {
	details, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(details)
}
