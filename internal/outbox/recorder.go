package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"scimgate/internal/scim/models"
	id "scimgate/pkg/domain"
)

// Store persists outbox rows. Append participates in the caller's
// transaction via the context carrier and never commits on its own.
type Store interface {
	Append(ctx context.Context, msg *Message) error
	FetchUnprocessed(ctx context.Context, batchSize int) ([]*Message, error)
	MarkProcessed(ctx context.Context, msgID id.MessageID) error
}

// Recorder converts queued domain events into outbox rows.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record appends one row per event. All rows from one call share the
// correlation ID (a fresh UUID when none is supplied) so every event of a
// logical operation can be traced together.
func (r *Recorder) Record(ctx context.Context, events []models.Event, correlationID string) error {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal %s event: %w", event.Kind(), err)
		}

		msg := &Message{
			ID:            id.MessageID(uuid.New()),
			AggregateID:   event.AggregateID(),
			EventType:     event.Kind(),
			Payload:       string(payload),
			CorrelationID: correlationID,
			CreatedAt:     event.OccurredAt(),
		}
		if err := r.store.Append(ctx, msg); err != nil {
			return fmt.Errorf("append outbox message: %w", err)
		}
	}
	return nil
}
