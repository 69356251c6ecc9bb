// Package domain defines typed identifiers shared across modules.
//
// Each aggregate gets its own UUID-backed type so the compiler rejects
// cross-type assignment (a GroupID can never be passed where a UserID is
// expected). Parse helpers enforce the trust-boundary invariant that IDs are
// valid, non-empty, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "scimgate/pkg/domain-errors"
)

// UserID identifies a provisioned user aggregate.
type UserID uuid.UUID

// GroupID identifies a provisioned group aggregate.
type GroupID uuid.UUID

// MessageID identifies an outbox message.
type MessageID uuid.UUID

// EntryID identifies an audit log entry.
type EntryID uuid.UUID

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id GroupID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id MessageID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id GroupID) String() string   { return uuid.UUID(id).String() }
func (id MessageID) String() string { return uuid.UUID(id).String() }
func (id EntryID) String() string   { return uuid.UUID(id).String() }

// ParseUserID parses and validates a user ID from its string form.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// ParseGroupID parses and validates a group ID from its string form.
func ParseGroupID(s string) (GroupID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return GroupID{}, err
	}
	return GroupID(u), nil
}

// ParseMessageID parses and validates an outbox message ID from its string form.
func ParseMessageID(s string) (MessageID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return MessageID{}, err
	}
	return MessageID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}
