package models

import (
	"time"

	"github.com/google/uuid"
)

// Event kinds, persisted as the outbox event_type column.
const (
	KindUserProvisioned  = "UserProvisioned"
	KindUserUpdated      = "UserUpdated"
	KindUserDeleted      = "UserDeleted"
	KindGroupProvisioned = "GroupProvisioned"
	KindGroupUpdated     = "GroupUpdated"
	KindGroupDeleted     = "GroupDeleted"
)

// Event is an immutable fact raised by an aggregate operation. Every variant
// exposes its aggregate ID through a required accessor, so outbox recording
// can never fail to locate it.
type Event interface {
	EventID() uuid.UUID
	Kind() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
}

// eventMeta carries the fields shared by all event variants.
type eventMeta struct {
	ID   uuid.UUID `json:"eventId"`
	Time time.Time `json:"occurredAt"`
}

func newEventMeta(now time.Time) eventMeta {
	return eventMeta{ID: uuid.New(), Time: now}
}

func (m eventMeta) EventID() uuid.UUID    { return m.ID }
func (m eventMeta) OccurredAt() time.Time { return m.Time }

// UserEvent is the payload common to all user lifecycle events.
type UserEvent struct {
	eventMeta
	UserID     uuid.UUID `json:"userId"`
	ExternalID string    `json:"externalId"`
	UserName   string    `json:"userName"`
	EventKind  string    `json:"kind"`
}

func (e UserEvent) Kind() string           { return e.EventKind }
func (e UserEvent) AggregateID() uuid.UUID { return e.UserID }

// GroupEvent is the payload common to all group lifecycle events.
type GroupEvent struct {
	eventMeta
	GroupID     uuid.UUID `json:"groupId"`
	ExternalID  string    `json:"externalId"`
	DisplayName string    `json:"displayName"`
	EventKind   string    `json:"kind"`
}

func (e GroupEvent) Kind() string           { return e.EventKind }
func (e GroupEvent) AggregateID() uuid.UUID { return e.GroupID }

// Recorder queues domain events between an aggregate mutation and the commit
// of the transaction that persists them.
//
// Invariants:
//   - Events accumulate in raise order.
//   - Clear is called only after the surrounding transaction commits; a
//     failed use case leaves the queue intact so a retry re-derives the
//     same events from the aggregate's committed operations.
type Recorder struct {
	events []Event
}

// Raise appends an event to the queue.
func (r *Recorder) Raise(e Event) {
	r.events = append(r.events, e)
}

// Events returns the queued events in raise order.
func (r *Recorder) Events() []Event {
	return r.events
}

// ClearEvents empties the queue. Call only after a successful commit.
func (r *Recorder) ClearEvents() {
	r.events = nil
}
