// Package audit maintains the provisioning audit trail. Every mutating
// operation writes a Pending entry inside the same transaction as the
// aggregate change, then finalizes it to Success after commit or records a
// Failed entry after rollback.
package audit

import (
	"time"

	"github.com/google/uuid"

	id "scimgate/pkg/domain"
)

// Status is the lifecycle state of an audit entry.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Actions recorded against an entity.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Entity types recorded in the trail.
const (
	EntityUser  = "User"
	EntityGroup = "Group"
)

// Entry is one audit trail row.
//
// A Pending row is only visible to readers once its transaction commits, so
// a Pending row that survives past the finalize window means the process
// crashed between commit and MarkSuccess. The sweeper promotes those to
// Success rather than losing the record.
type Entry struct {
	ID            id.EntryID
	CorrelationID string
	Action        string
	EntityType    string
	EntityID      uuid.UUID
	ActorID       string
	ChangeDetails string
	Timestamp     time.Time
	Status        Status
	ErrorMessage  string
}
