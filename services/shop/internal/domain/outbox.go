package domain

import "time"

// OutboxEvent is an event written in the same transaction as the state
// change it announces and published to Kafka afterward. Payload is the
// complete kafka.Event envelope.
type OutboxEvent struct {
	ID          int64      `json:"id"`
	EventID     string     `json:"event_id"`
	Topic       string     `json:"topic"`
	AggregateID string     `json:"aggregate_id"`
	Payload     []byte     `json:"payload"`
	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}
