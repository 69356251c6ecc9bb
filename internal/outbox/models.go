// Package outbox implements the transactional outbox: domain events are
// written as durable rows in the same transaction as the aggregate change
// they describe, then drained to Kafka by the relay.
package outbox

import (
	"time"

	"github.com/google/uuid"

	id "scimgate/pkg/domain"
)

// Message is one durable outbox row.
//
// Invariants:
//   - Processed stays false until the relay marks it after a confirmed
//     publish; the relay is the only writer of that transition
//   - EventType and Payload are immutable once written
//   - The write path never deletes rows; they are retained for replay
type Message struct {
	ID            id.MessageID
	AggregateID   uuid.UUID
	EventType     string
	Payload       string
	CorrelationID string
	CreatedAt     time.Time
	Processed     bool
	ProcessedAt   *time.Time
}
