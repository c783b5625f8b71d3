// Package event relays outbox rows written by checkout to Kafka.
package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/gamehub/shop/pkg/kafka"
	"github.com/gamehub/shop/services/shop/internal/domain"
	"github.com/gamehub/shop/services/shop/internal/repository"
)

// OrderCreatedTopic carries one message per finalized order.
var OrderCreatedTopic = kafka.Topic("order", "created")

// Publisher is the part of kafka.Producer the relay needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, events ...*kafka.Event) error
}

// OutboxRelay polls unpublished outbox rows and publishes them. Delivery is
// at least once: a crash between publish and mark republishes the batch,
// and consumers dedupe on event_id.
type OutboxRelay struct {
	repo      repository.OutboxRepository
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

// NewOutboxRelay creates a relay that drains up to batchSize rows per tick.
func NewOutboxRelay(repo repository.OutboxRepository, publisher Publisher, interval time.Duration, batchSize int, logger *slog.Logger) *OutboxRelay {
	return &OutboxRelay{
		repo:      repo,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run relays on every tick until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("outbox relay started",
		slog.Duration("interval", r.interval),
		slog.Int("batch_size", r.batchSize),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("outbox relay error", slog.String("error", err.Error()))
			}
		}
	}
}

type topicBatch struct {
	events []*kafka.Event
	ids    []int64
}

// RelayOnce publishes one batch and returns how many rows it marked. Rows of
// a topic whose publish failed stay unpublished for the next tick.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	rows, err := r.repo.FetchUnpublished(ctx, r.batchSize)
	if err != nil {
		outboxFailures.WithLabelValues("fetch").Inc()
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var (
		topics  []string
		batches = make(map[string]*topicBatch)
		done    []int64
	)
	for _, row := range rows {
		ev, err := kafka.UnmarshalEvent(row.Payload)
		if err != nil {
			// A row that cannot be decoded will never publish; mark it so
			// it does not occupy the head of every batch.
			outboxFailures.WithLabelValues("decode").Inc()
			r.logger.Error("dropping malformed outbox event",
				slog.Int64("outbox_id", row.ID),
				slog.String("event_id", row.EventID),
				slog.String("error", err.Error()),
			)
			done = append(done, row.ID)
			continue
		}
		b, ok := batches[row.Topic]
		if !ok {
			b = &topicBatch{}
			batches[row.Topic] = b
			topics = append(topics, row.Topic)
		}
		b.events = append(b.events, ev)
		b.ids = append(b.ids, row.ID)
	}

	var publishErr error
	for _, topic := range topics {
		b := batches[topic]
		if err := r.publisher.Publish(ctx, topic, b.events...); err != nil {
			outboxFailures.WithLabelValues("publish").Inc()
			r.logger.Warn("outbox publish failed, will retry",
				slog.String("topic", topic),
				slog.Int("events", len(b.events)),
				slog.String("error", err.Error()),
			)
			publishErr = err
			continue
		}
		outboxPublished.WithLabelValues(topic).Add(float64(len(b.ids)))
		done = append(done, b.ids...)
	}

	if err := r.repo.MarkPublished(ctx, done); err != nil {
		outboxFailures.WithLabelValues("mark").Inc()
		return 0, err
	}
	if len(done) > 0 {
		r.logger.Debug("outbox events relayed", slog.Int("count", len(done)))
	}
	return len(done), publishErr
}

// NewOrderCreatedEvent wraps order into the envelope stored in the outbox.
// The request's trace context travels in the envelope metadata.
func NewOrderCreatedEvent(ctx context.Context, order *domain.Order, correlationID string) (domain.OutboxEvent, error) {
	ev, err := kafka.NewEvent("shop", kafka.Aggregate{Type: "order", ID: order.ID}, "created", order.CreatedEventData())
	if err != nil {
		return domain.OutboxEvent{}, err
	}
	ev.WithCorrelationID(correlationID).WithTraceContext(ctx)

	payload, err := ev.Marshal()
	if err != nil {
		return domain.OutboxEvent{}, err
	}
	return domain.OutboxEvent{
		EventID:     ev.EventID,
		Topic:       OrderCreatedTopic,
		AggregateID: order.ID,
		Payload:     payload,
		CreatedAt:   ev.Timestamp,
	}, nil
}
