package models

import (
	"time"

	"github.com/google/uuid"

	id "scimgate/pkg/domain"
	dErrors "scimgate/pkg/domain-errors"
)

// Group is the aggregate root for a provisioned group and its membership.
//
// Invariants:
//   - ExternalID and DisplayName are non-empty
//   - A user appears at most once in Members
//   - Queued events are cleared only after the enclosing transaction commits
type Group struct {
	Recorder `json:"-"`

	ID          id.GroupID `json:"id"`
	ExternalID  string     `json:"externalId"`
	DisplayName string     `json:"displayName"`
	Members     []Member   `json:"members"`
	CreatedAt   time.Time  `json:"createdAt"`
	ModifiedAt  time.Time  `json:"modifiedAt"`
}

// Member is a user's membership in a group.
type Member struct {
	GroupID     id.GroupID `json:"groupId"`
	UserID      id.UserID  `json:"userId"`
	DisplayName string     `json:"displayName"`
	AddedAt     time.Time  `json:"addedAt"`
}

// NewGroup validates inputs and returns an aggregate with one queued
// GroupProvisioned event.
func NewGroup(externalID, displayName string, now time.Time) (*Group, error) {
	if externalID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "External ID is required")
	}
	if displayName == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "Display name is required")
	}

	g := &Group{
		ID:          id.GroupID(uuid.New()),
		ExternalID:  externalID,
		DisplayName: displayName,
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	g.Raise(g.event(KindGroupProvisioned, now))
	return g, nil
}

// Update overwrites the display name when provided. Always bumps ModifiedAt
// and queues one GroupUpdated event.
func (g *Group) Update(displayName *string, now time.Time) error {
	if displayName != nil && *displayName != "" {
		g.DisplayName = *displayName
	}
	g.ModifiedAt = now
	g.Raise(g.event(KindGroupUpdated, now))
	return nil
}

// Delete queues a GroupDeleted event. State is otherwise left as-is; the
// store removes the row.
func (g *Group) Delete(now time.Time) {
	g.ModifiedAt = now
	g.Raise(g.event(KindGroupDeleted, now))
}

// AddMember appends a membership, rejecting duplicates. Queues a
// GroupUpdated event so membership changes flow through the outbox.
func (g *Group) AddMember(userID id.UserID, displayName string, now time.Time) error {
	for _, m := range g.Members {
		if m.UserID == userID {
			return dErrors.New(dErrors.CodeConflict, "Member already exists in the group")
		}
	}
	g.Members = append(g.Members, Member{
		GroupID:     g.ID,
		UserID:      userID,
		DisplayName: displayName,
		AddedAt:     now,
	})
	g.ModifiedAt = now
	g.Raise(g.event(KindGroupUpdated, now))
	return nil
}

// RemoveMember drops a membership, failing when absent. Queues a
// GroupUpdated event.
func (g *Group) RemoveMember(userID id.UserID, now time.Time) error {
	for i, m := range g.Members {
		if m.UserID == userID {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			g.ModifiedAt = now
			g.Raise(g.event(KindGroupUpdated, now))
			return nil
		}
	}
	return dErrors.New(dErrors.CodeNotFound, "Member not found in the group")
}

func (g *Group) event(kind string, now time.Time) GroupEvent {
	return GroupEvent{
		eventMeta:   newEventMeta(now),
		GroupID:     uuid.UUID(g.ID),
		ExternalID:  g.ExternalID,
		DisplayName: g.DisplayName,
		EventKind:   kind,
	}
}
