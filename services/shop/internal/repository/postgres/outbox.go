package postgres

import (
	"context"
	"fmt"

	"github.com/gamehub/shop/pkg/database"
	"github.com/gamehub/shop/services/shop/internal/domain"
)

const (
	insertOutboxSQL = `
		INSERT INTO outbox_events (event_id, topic, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	fetchOutboxSQL = `
		SELECT id, event_id, topic, aggregate_id, payload, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1`

	markOutboxSQL = `UPDATE outbox_events SET published_at = NOW() WHERE id = ANY($1) AND published_at IS NULL`
)

// OutboxRepository implements repository.OutboxRepository using PostgreSQL.
type OutboxRepository struct {
	db database.DBTX
}

// NewOutboxRepository creates a new PostgreSQL-backed outbox repository.
func NewOutboxRepository(db database.DBTX) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// insertOutboxEvent is called inside the transaction of the change the
// event announces.
func insertOutboxEvent(ctx context.Context, db database.DBTX, ev domain.OutboxEvent) error {
	if _, err := db.Exec(ctx, insertOutboxSQL, ev.EventID, ev.Topic, ev.AggregateID, ev.Payload, ev.CreatedAt); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// FetchUnpublished returns up to limit unpublished events in insertion order.
func (r *OutboxRepository) FetchUnpublished(ctx context.Context, limit int) (events []domain.OutboxEvent, err error) {
	ctx, end := database.TraceQuery(ctx, "FetchOutbox", fetchOutboxSQL)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, fetchOutboxSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev domain.OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.EventID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox events: %w", err)
	}
	return events, nil
}

// MarkPublished stamps published_at on the given rows.
func (r *OutboxRepository) MarkPublished(ctx context.Context, ids []int64) (err error) {
	if len(ids) == 0 {
		return nil
	}
	ctx, end := database.TraceQuery(ctx, "MarkOutboxPublished", markOutboxSQL)
	defer func() { end(err) }()

	if _, err := r.db.Exec(ctx, markOutboxSQL, ids); err != nil {
		return fmt.Errorf("mark outbox events published: %w", err)
	}
	return nil
}
