package models

import (
	"time"

	"github.com/google/uuid"

	id "scimgate/pkg/domain"
	dErrors "scimgate/pkg/domain-errors"
)

// User is the aggregate root for a provisioned identity.
//
// Invariants:
//   - ExternalID, UserName, DisplayName are non-empty
//   - PrimaryEmail always passes the conservative pattern check; it is
//     re-validated on every email-bearing update, never skipped
//   - Deletion is soft: Active flips to false, the row stays
//   - Queued events are cleared only after the enclosing transaction commits
type User struct {
	Recorder `json:"-"`

	ID           id.UserID `json:"id"`
	ExternalID   string    `json:"externalId"`
	UserName     string    `json:"userName"`
	DisplayName  string    `json:"displayName"`
	PrimaryEmail string    `json:"primaryEmail"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	ModifiedAt   time.Time `json:"modifiedAt"`
}

// UserPatch carries the optional fields of an update. Nil means "leave
// unchanged".
type UserPatch struct {
	DisplayName  *string
	PrimaryEmail *string
	Active       *bool
}

// NewUser validates inputs and returns a fully-initialized aggregate with
// one queued UserProvisioned event, or a coded error naming the first
// invalid field.
func NewUser(externalID, userName, displayName, primaryEmail string, now time.Time) (*User, error) {
	if externalID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "External ID is required")
	}
	if userName == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "Username is required")
	}
	if displayName == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "Display name is required")
	}
	email, err := NormalizeEmail(primaryEmail)
	if err != nil {
		return nil, err
	}

	u := &User{
		ID:           id.UserID(uuid.New()),
		ExternalID:   externalID,
		UserName:     userName,
		DisplayName:  displayName,
		PrimaryEmail: email,
		Active:       true,
		CreatedAt:    now,
		ModifiedAt:   now,
	}
	u.Raise(u.event(KindUserProvisioned, now))
	return u, nil
}

// Update selectively overwrites provided fields. A supplied field that fails
// validation leaves the aggregate unchanged. Even an all-nil patch bumps
// ModifiedAt and queues one UserUpdated event.
func (u *User) Update(patch UserPatch, now time.Time) error {
	email := u.PrimaryEmail
	if patch.PrimaryEmail != nil {
		normalized, err := NormalizeEmail(*patch.PrimaryEmail)
		if err != nil {
			return err
		}
		email = normalized
	}

	if patch.DisplayName != nil && *patch.DisplayName != "" {
		u.DisplayName = *patch.DisplayName
	}
	u.PrimaryEmail = email
	if patch.Active != nil {
		u.Active = *patch.Active
	}
	u.ModifiedAt = now
	u.Raise(u.event(KindUserUpdated, now))
	return nil
}

// Delete deactivates the user and queues a UserDeleted event. It never fails.
func (u *User) Delete(now time.Time) {
	u.Active = false
	u.ModifiedAt = now
	u.Raise(u.event(KindUserDeleted, now))
}

func (u *User) event(kind string, now time.Time) UserEvent {
	return UserEvent{
		eventMeta:  newEventMeta(now),
		UserID:     uuid.UUID(u.ID),
		ExternalID: u.ExternalID,
		UserName:   u.UserName,
		EventKind:  kind,
	}
}
