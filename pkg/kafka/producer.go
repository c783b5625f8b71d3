package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/gamehub/shop/pkg/kafka"

// ProducerConfig holds Kafka producer configuration.
type ProducerConfig struct {
	Brokers      []string
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

// DefaultProducerConfig returns the producer settings used by the outbox
// relay: synchronous writes acknowledged by all in-sync replicas.
func DefaultProducerConfig(brokers []string) ProducerConfig {
	return ProducerConfig{
		Brokers:      brokers,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}
}

// messageWriter is the subset of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes event envelopes to Kafka.
type Producer struct {
	writer  messageWriter
	brokers []string
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewProducer creates a new Kafka producer.
func NewProducer(cfg ProducerConfig, logger *slog.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	return newProducer(w, cfg.Brokers, logger)
}

func newProducer(w messageWriter, brokers []string, logger *slog.Logger) *Producer {
	return &Producer{
		writer:  w,
		brokers: brokers,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
	}
}

// Publish writes events to topic in a single batch. Messages are keyed by
// aggregate id so every event of one order lands on the same partition.
// Each message carries a producer span parented on the trace context stored
// in its event, or on ctx when the event has none.
func (p *Producer) Publish(ctx context.Context, topic string, events ...*Event) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	spans := make([]trace.Span, 0, len(events))
	defer func() {
		for _, s := range spans {
			s.End()
		}
	}()

	for _, event := range events {
		if err := event.validate(); err != nil {
			return fmt.Errorf("event %q: %w", event.EventID, err)
		}
		data, err := event.Marshal()
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", event.EventID, err)
		}

		msg := kafka.Message{
			Topic: topic,
			Key:   []byte(event.AggregateID),
			Value: data,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(event.EventID)},
				{Key: "event_type", Value: []byte(event.EventType)},
				{Key: "source", Value: []byte(event.Source)},
			},
		}
		if event.CorrelationID != "" {
			msg.Headers = append(msg.Headers, kafka.Header{
				Key: "correlation_id", Value: []byte(event.CorrelationID),
			})
		}

		msgCtx, span := p.tracer.Start(event.TraceContext(ctx), "kafka.publish "+topic,
			trace.WithSpanKind(trace.SpanKindProducer),
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination.name", topic),
				attribute.String("messaging.message.id", event.EventID),
			),
		)
		spans = append(spans, span)
		otel.GetTextMapPropagator().Inject(msgCtx, NewHeaderCarrier(&msg))
		msgs = append(msgs, msg)
	}

	start := time.Now()
	err := p.writer.WriteMessages(ctx, msgs...)
	ProducerPublishDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())

	if err != nil {
		ProducerPublishErrors.WithLabelValues(topic).Add(float64(len(msgs)))
		for _, s := range spans {
			s.RecordError(err)
			s.SetStatus(codes.Error, err.Error())
		}
		p.logger.ErrorContext(ctx, "failed to publish events",
			slog.String("topic", topic),
			slog.Int("count", len(msgs)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("publish %d events to %s: %w", len(msgs), topic, err)
	}

	ProducerMessagesPublished.WithLabelValues(topic).Add(float64(len(msgs)))
	p.logger.DebugContext(ctx, "events published",
		slog.String("topic", topic),
		slog.Int("count", len(msgs)),
	)
	return nil
}

// Ping checks Kafka broker connectivity by dialing the first reachable broker.
func (p *Producer) Ping(ctx context.Context) error {
	return PingBrokers(ctx, p.brokers)
}

// PingBrokers dials the given brokers and returns nil if at least one
// answers a metadata request.
func PingBrokers(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("kafka: no brokers configured")
	}

	var lastErr error
	for _, addr := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		_, err = conn.Brokers()
		_ = conn.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("kafka ping: all brokers unreachable: %w", lastErr)
}

// Close flushes pending messages and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
