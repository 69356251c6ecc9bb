package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"scimgate/internal/audit"
	"scimgate/internal/scim/models"
	"scimgate/internal/scim/store/group"
	id "scimgate/pkg/domain"
	dErrors "scimgate/pkg/domain-errors"
	"scimgate/pkg/platform/sentinel"
	"scimgate/pkg/requestcontext"
)

// CreateGroupInput carries the fields of a group provisioning request.
type CreateGroupInput struct {
	ExternalID  string `json:"externalId"`
	DisplayName string `json:"displayName"`
}

// CreateGroup validates the input, rejects duplicates, and provisions the
// group with its outbox messages and audit entry in one transaction.
func (s *Service) CreateGroup(ctx context.Context, input CreateGroupInput) (*models.Group, error) {
	g, err := models.NewGroup(input.ExternalID, input.DisplayName, requestcontext.Now(ctx).UTC())
	if err != nil {
		s.metrics.IncrementOperation(audit.EntityGroup, audit.ActionCreated, "rejected")
		return nil, err
	}

	if err := s.checkGroupAvailable(ctx, input.ExternalID, input.DisplayName); err != nil {
		s.metrics.IncrementOperation(audit.EntityGroup, audit.ActionCreated, "rejected")
		return nil, err
	}

	auditReq := audit.Request{
		Action:        audit.ActionCreated,
		EntityType:    audit.EntityGroup,
		EntityID:      uuid.UUID(g.ID),
		ChangeDetails: changeDetails(input),
	}
	err = s.commit(ctx, g, auditReq, func(txCtx context.Context) error {
		if err := s.groups.Create(txCtx, g); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "Group already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create group")
		}
		return nil
	})
	if err != nil {
		s.metrics.IncrementOperation(audit.EntityGroup, audit.ActionCreated, "failed")
		return nil, err
	}

	s.logger.InfoContext(ctx, "group provisioned", "group_id", g.ID, "display_name", g.DisplayName)
	s.metrics.IncrementOperation(audit.EntityGroup, audit.ActionCreated, "success")
	return g, nil
}

func (s *Service) checkGroupAvailable(ctx context.Context, externalID, displayName string) error {
	if _, err := s.groups.FindByExternalID(ctx, externalID); err == nil {
		return dErrors.New(dErrors.CodeConflict, "Group already exists")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check external ID")
	}
	if _, err := s.groups.FindByDisplayName(ctx, displayName); err == nil {
		return dErrors.New(dErrors.CodeConflict, "Group already exists")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check display name")
	}
	return nil
}

// GetGroup fetches one group with its members.
func (s *Service) GetGroup(ctx context.Context, groupID id.GroupID) (*models.Group, error) {
	g, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "Group not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get group")
	}
	return g, nil
}

// ListGroups returns one page of groups plus the total count matching the
// filter.
func (s *Service) ListGroups(ctx context.Context, filter group.ListFilter) ([]*models.Group, int, error) {
	groups, total, err := s.groups.List(ctx, filter)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list groups")
	}
	return groups, total, nil
}

// UpdateGroup applies a partial update to the group row.
func (s *Service) UpdateGroup(ctx context.Context, groupID id.GroupID, displayName *string) (*models.Group, error) {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		s.metrics.IncrementOperation(audit.EntityGroup, audit.ActionUpdated, "rejected")
		return nil, err
	}
	if err := g.Update(displayName, requestcontext.Now(ctx).UTC()); err != nil {
		s.metrics.IncrementOperation(audit.EntityGroup, audit.ActionUpdated, "rejected")
		return nil, err
	}

	if err := s.commitGroupUpdate(ctx, g, audit.ActionUpdated, changeDetails(map[string]*string{"displayName": displayName})); err != nil {
		return nil, err
	}
	return g, nil
}

// DeleteGroup removes the group and its memberships.
func (s *Service) DeleteGroup(ctx context.Context, groupID id.GroupID) error {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		s.metrics.IncrementOperation(audit.EntityGroup, audit.ActionDeleted, "rejected")
		return err
	}
	g.Delete(requestcontext.Now(ctx).UTC())

	auditReq := audit.Request{
		Action:     audit.ActionDeleted,
		EntityType: audit.EntityGroup,
		EntityID:   uuid.UUID(g.ID),
	}
	err = s.commit(ctx, g, auditReq, func(txCtx context.Context) error {
		if err := s.groups.Delete(txCtx, g.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete group")
		}
		return nil
	})
	if err != nil {
		s.metrics.IncrementOperation(audit.EntityGroup, audit.ActionDeleted, "failed")
		return err
	}

	s.logger.InfoContext(ctx, "group deleted", "group_id", g.ID)
	s.metrics.IncrementOperation(audit.EntityGroup, audit.ActionDeleted, "success")
	return nil
}

// AddGroupMember adds a user to a group. The user's display name is
// snapshotted onto the membership row.
func (s *Service) AddGroupMember(ctx context.Context, groupID id.GroupID, userID id.UserID) (*models.Group, error) {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		s.metrics.IncrementOperation(audit.EntityGroup, audit.ActionUpdated, "rejected")
		return nil, err
	}
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		s.metrics.IncrementOperation(audit.EntityGroup, audit.ActionUpdated, "rejected")
		return nil, err
	}

	if err := g.AddMember(u.ID, u.DisplayName, requestcontext.Now(ctx).UTC()); err != nil {
		s.metrics.IncrementOperation(audit.EntityGroup, audit.ActionUpdated, "rejected")
		return nil, err
	}

	details := changeDetails(map[string]string{"op": "addMember", "userId": u.ID.String()})
	if err := s.commitGroupUpdate(ctx, g, audit.ActionUpdated, details); err != nil {
		return nil, err
	}
	return g, nil
}

// RemoveGroupMember removes a user from a group.
func (s *Service) RemoveGroupMember(ctx context.Context, groupID id.GroupID, userID id.UserID) (*models.Group, error) {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		s.metrics.IncrementOperation(audit.EntityGroup, audit.ActionUpdated, "rejected")
		return nil, err
	}

	if err := g.RemoveMember(userID, requestcontext.Now(ctx).UTC()); err != nil {
		s.metrics.IncrementOperation(audit.EntityGroup, audit.ActionUpdated, "rejected")
		return nil, err
	}

	details := changeDetails(map[string]string{"op": "removeMember", "userId": userID.String()})
	if err := s.commitGroupUpdate(ctx, g, audit.ActionUpdated, details); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) commitGroupUpdate(ctx context.Context, g *models.Group, action, details string) error {
	auditReq := audit.Request{
		Action:        action,
		EntityType:    audit.EntityGroup,
		EntityID:      uuid.UUID(g.ID),
		ChangeDetails: details,
	}
	err := s.commit(ctx, g, auditReq, func(txCtx context.Context) error {
		if err := s.groups.Update(txCtx, g); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "Group not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update group")
		}
		return nil
	})
	if err != nil {
		s.metrics.IncrementOperation(audit.EntityGroup, action, "failed")
		return err
	}
	s.metrics.IncrementOperation(audit.EntityGroup, action, "success")
	return nil
}
