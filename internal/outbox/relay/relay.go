// Package relay drains the outbox into Kafka.
//
// The relay is the only component allowed to transition a message to
// processed, and it does so only after a confirmed publish. Delivery is
// at-least-once: a crash between publish and MarkProcessed re-publishes the
// message on the next cycle, which downstream consumers must tolerate.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"scimgate/internal/outbox"
	"scimgate/pkg/platform/circuit"
)

// Publisher sends one outbox message to the transport. A nil return means
// the broker confirmed the write.
type Publisher interface {
	Publish(ctx context.Context, msg *outbox.Message) error
}

// Lease gates concurrent relay instances. AcquireResult false means another
// instance holds the drain lease this cycle.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
}

// Relay polls the outbox and republishes unprocessed messages.
type Relay struct {
	store     outbox.Store
	publisher Publisher
	lease     Lease // optional
	logger    *slog.Logger
	metrics   *Metrics
	breaker   *circuit.Breaker

	interval  time.Duration
	batchSize int
}

// Config wires a Relay.
type Config struct {
	Store     outbox.Store
	Publisher Publisher
	Lease     Lease
	Logger    *slog.Logger
	Metrics   *Metrics
	Interval  time.Duration
	BatchSize int
}

func New(cfg Config) *Relay {
	return &Relay{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		lease:     cfg.Lease,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		breaker:   circuit.New("kafka", circuit.WithFailureThreshold(5)),
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
	}
}

// Run polls until ctx is cancelled. Cycle errors are logged and retried on
// the next tick rather than terminating the loop; only cancellation stops
// the relay.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Cycle(ctx); err != nil {
				r.logger.ErrorContext(ctx, "relay cycle failed", "error", err)
			}
		}
	}
}

// Cycle drains one batch. Exported so tests and one-shot invocations can
// drive the relay without the ticker.
func (r *Relay) Cycle(ctx context.Context) error {
	if r.lease != nil {
		held, err := r.lease.Acquire(ctx)
		if err != nil {
			return err
		}
		if !held {
			return nil
		}
	}

	// An open breaker probes with a single message instead of hammering
	// the broker with the whole backlog.
	batchSize := r.batchSize
	if r.breaker.IsOpen() {
		batchSize = 1
	}

	messages, err := r.store.FetchUnprocessed(ctx, batchSize)
	if err != nil {
		return err
	}
	r.metrics.observeBatch(len(messages))

	for _, msg := range messages {
		if err := r.publisher.Publish(ctx, msg); err != nil {
			// Leave the message unprocessed; the next cycle retries it.
			// Stop the batch to preserve oldest-first ordering.
			if _, change := r.breaker.RecordFailure(); change.Opened {
				r.logger.WarnContext(ctx, "publish circuit opened")
			}
			r.metrics.observePublishFailed()
			r.logger.ErrorContext(ctx, "publish failed",
				"message_id", msg.ID,
				"event_type", msg.EventType,
				"error", err,
			)
			return err
		}
		if _, change := r.breaker.RecordSuccess(); change.Closed {
			r.logger.InfoContext(ctx, "publish circuit closed")
		}
		if err := r.store.MarkProcessed(ctx, msg.ID); err != nil {
			return err
		}
		r.metrics.observePublished()
	}
	return nil
}

// KafkaPublisher adapts the kafka producer to the relay's Publisher
// interface, mapping outbox columns onto record key and headers.
type KafkaPublisher struct {
	producer kafkaProducer
}

type kafkaProducer interface {
	Produce(ctx context.Context, key []byte, value []byte, headers map[string]string) error
}

func NewKafkaPublisher(producer kafkaProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, msg *outbox.Message) error {
	headers := map[string]string{
		"aggregate_id":   msg.AggregateID.String(),
		"event_type":     msg.EventType,
		"created_at":     msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		"correlation_id": msg.CorrelationID,
	}
	return p.producer.Produce(ctx, []byte(uuid.UUID(msg.ID).String()), []byte(msg.Payload), headers)
}
