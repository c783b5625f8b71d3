package kafka

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TopicPrefix namespaces every topic published by gamehub services.
const TopicPrefix = "gamehub"

// Topic builds a topic name such as "gamehub.order.created".
func Topic(domain, action string) string {
	return TopicPrefix + "." + domain + "." + action
}

// Aggregate names the entity an event is about. Its ID is the message key.
type Aggregate struct {
	Type string
	ID   string
}

// Event is the envelope every message on a gamehub topic is wrapped in.
// Metadata carries the W3C trace context of the code that raised the event.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       int               `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEvent raises "<aggregate type>.<action>" from source. The envelope is
// version 1, has a fresh id and is stamped now in UTC.
func NewEvent(source string, agg Aggregate, action string, data any) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		EventID:       uuid.NewString(),
		EventType:     agg.Type + "." + action,
		AggregateID:   agg.ID,
		AggregateType: agg.Type,
		Version:       1,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Data:          raw,
		Metadata:      make(map[string]string),
	}, nil
}

// WithCorrelationID sets the correlation ID on the event.
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

var errIncompleteEvent = errors.New("event needs an id, a type and an aggregate id")

func (e *Event) validate() error {
	if e.EventID == "" || e.EventType == "" || e.AggregateID == "" {
		return errIncompleteEvent
	}
	return nil
}

func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent decodes an envelope, e.g. one read back from the outbox.
func UnmarshalEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// UnmarshalData decodes the event payload into target.
func (e *Event) UnmarshalData(target any) error {
	return json.Unmarshal(e.Data, target)
}
