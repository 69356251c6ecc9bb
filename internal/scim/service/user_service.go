package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"scimgate/internal/audit"
	"scimgate/internal/scim/models"
	"scimgate/internal/scim/store/user"
	id "scimgate/pkg/domain"
	dErrors "scimgate/pkg/domain-errors"
	"scimgate/pkg/platform/sentinel"
	"scimgate/pkg/requestcontext"
)

// CreateUserInput carries the fields of a provisioning request.
type CreateUserInput struct {
	ExternalID   string `json:"externalId"`
	UserName     string `json:"userName"`
	DisplayName  string `json:"displayName"`
	PrimaryEmail string `json:"primaryEmail"`
}

// CreateUser validates the input, rejects duplicates, and provisions the
// user with its outbox messages and audit entry in one transaction.
// Validation and the duplicate pre-check run before any transaction opens,
// so a rejected request writes no rows.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (*models.User, error) {
	started := time.Now()

	u, err := models.NewUser(input.ExternalID, input.UserName, input.DisplayName, input.PrimaryEmail, requestcontext.Now(ctx).UTC())
	if err != nil {
		s.metrics.IncrementOperation(audit.EntityUser, audit.ActionCreated, "rejected")
		return nil, err
	}

	if err := s.checkUserAvailable(ctx, input.ExternalID, input.UserName); err != nil {
		s.metrics.IncrementOperation(audit.EntityUser, audit.ActionCreated, "rejected")
		return nil, err
	}

	auditReq := audit.Request{
		Action:        audit.ActionCreated,
		EntityType:    audit.EntityUser,
		EntityID:      uuid.UUID(u.ID),
		ChangeDetails: changeDetails(input),
	}
	err = s.commit(ctx, u, auditReq, func(txCtx context.Context) error {
		if err := s.users.Create(txCtx, u); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "User already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
		}
		return nil
	})
	if err != nil {
		s.metrics.IncrementOperation(audit.EntityUser, audit.ActionCreated, "failed")
		return nil, err
	}

	s.logger.InfoContext(ctx, "user provisioned", "user_id", u.ID, "user_name", u.UserName)
	s.metrics.IncrementOperation(audit.EntityUser, audit.ActionCreated, "success")
	s.metrics.ObserveOperationLatency(audit.EntityUser, audit.ActionCreated, time.Since(started))
	return u, nil
}

// checkUserAvailable rejects inputs whose externalId or userName is already
// taken. The database unique constraints remain the authority; this
// pre-check just produces a friendlier rejection without opening a
// transaction.
func (s *Service) checkUserAvailable(ctx context.Context, externalID, userName string) error {
	if _, err := s.users.FindByExternalID(ctx, externalID); err == nil {
		return dErrors.New(dErrors.CodeConflict, "User already exists")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check external ID")
	}
	if _, err := s.users.FindByUserName(ctx, userName); err == nil {
		return dErrors.New(dErrors.CodeConflict, "User already exists")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check user name")
	}
	return nil
}

// GetUser fetches one user by ID.
func (s *Service) GetUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "User not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get user")
	}
	return u, nil
}

// ListUsers returns one page of users plus the total count matching the
// filter.
func (s *Service) ListUsers(ctx context.Context, filter user.ListFilter) ([]*models.User, int, error) {
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	return users, total, nil
}

// UpdateUser applies a partial update. The load and the patch validation
// run before any transaction opens; an unknown user or an invalid field
// writes no rows.
func (s *Service) UpdateUser(ctx context.Context, userID id.UserID, patch models.UserPatch) (*models.User, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		s.metrics.IncrementOperation(audit.EntityUser, audit.ActionUpdated, "rejected")
		return nil, err
	}
	if err := u.Update(patch, requestcontext.Now(ctx).UTC()); err != nil {
		s.metrics.IncrementOperation(audit.EntityUser, audit.ActionUpdated, "rejected")
		return nil, err
	}

	auditReq := audit.Request{
		Action:        audit.ActionUpdated,
		EntityType:    audit.EntityUser,
		EntityID:      uuid.UUID(u.ID),
		ChangeDetails: changeDetails(patch),
	}
	err = s.commit(ctx, u, auditReq, func(txCtx context.Context) error {
		if err := s.users.Update(txCtx, u); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "User not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user")
		}
		return nil
	})
	if err != nil {
		s.metrics.IncrementOperation(audit.EntityUser, audit.ActionUpdated, "failed")
		return nil, err
	}

	s.metrics.IncrementOperation(audit.EntityUser, audit.ActionUpdated, "success")
	return u, nil
}

// DeleteUser deactivates a user. Deletion is soft; the row stays for the
// audit trail and downstream consumers see a deleted event.
func (s *Service) DeleteUser(ctx context.Context, userID id.UserID) error {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		s.metrics.IncrementOperation(audit.EntityUser, audit.ActionDeleted, "rejected")
		return err
	}
	u.Delete(requestcontext.Now(ctx).UTC())

	auditReq := audit.Request{
		Action:     audit.ActionDeleted,
		EntityType: audit.EntityUser,
		EntityID:   uuid.UUID(u.ID),
	}
	err = s.commit(ctx, u, auditReq, func(txCtx context.Context) error {
		if err := s.users.Update(txCtx, u); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete user")
		}
		return nil
	})
	if err != nil {
		s.metrics.IncrementOperation(audit.EntityUser, audit.ActionDeleted, "failed")
		return err
	}

	s.logger.InfoContext(ctx, "user deactivated", "user_id", u.ID)
	s.metrics.IncrementOperation(audit.EntityUser, audit.ActionDeleted, "success")
	return nil
}
