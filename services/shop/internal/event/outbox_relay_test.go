package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/gamehub/shop/pkg/kafka"
	"github.com/gamehub/shop/services/shop/internal/domain"
)

type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	rows, _ := args.Get(0).([]domain.OutboxEvent)
	return rows, args.Error(1)
}

func (m *mockOutboxRepo) MarkPublished(ctx context.Context, ids []int64) error {
	return m.Called(ctx, ids).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, events ...*kafka.Event) error {
	return m.Called(ctx, topic, events).Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func outboxRow(t *testing.T, id int64, topic string) domain.OutboxEvent {
	t.Helper()
	ev, err := kafka.NewEvent("shop", kafka.Aggregate{Type: "order", ID: "o-1"}, "created", map[string]int{"n": int(id)})
	require.NoError(t, err)
	payload, err := ev.Marshal()
	require.NoError(t, err)
	return domain.OutboxEvent{ID: id, EventID: ev.EventID, Topic: topic, AggregateID: "o-1", Payload: payload}
}

func eventsLen(n int) any {
	return mock.MatchedBy(func(evs []*kafka.Event) bool { return len(evs) == n })
}

func TestRelayOnce_PublishesAndMarks(t *testing.T) {
	repo := new(mockOutboxRepo)
	pub := new(mockPublisher)
	relay := NewOutboxRelay(repo, pub, time.Second, 50, newTestLogger())

	rows := []domain.OutboxEvent{outboxRow(t, 1, OrderCreatedTopic), outboxRow(t, 2, OrderCreatedTopic)}
	before := testutil.ToFloat64(outboxPublished.WithLabelValues(OrderCreatedTopic))

	repo.On("FetchUnpublished", mock.Anything, 50).Return(rows, nil)
	pub.On("Publish", mock.Anything, OrderCreatedTopic, eventsLen(2)).Return(nil)
	repo.On("MarkPublished", mock.Anything, []int64{1, 2}).Return(nil)

	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, before+2, testutil.ToFloat64(outboxPublished.WithLabelValues(OrderCreatedTopic)))
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestRelayOnce_Empty(t *testing.T) {
	repo := new(mockOutboxRepo)
	pub := new(mockPublisher)
	relay := NewOutboxRelay(repo, pub, time.Second, 10, newTestLogger())

	repo.On("FetchUnpublished", mock.Anything, 10).Return([]domain.OutboxEvent{}, nil)

	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "MarkPublished", mock.Anything, mock.Anything)
}

func TestRelayOnce_PublishFailureLeavesRowsUnmarked(t *testing.T) {
	repo := new(mockOutboxRepo)
	pub := new(mockPublisher)
	relay := NewOutboxRelay(repo, pub, time.Second, 50, newTestLogger())

	rows := []domain.OutboxEvent{
		outboxRow(t, 1, OrderCreatedTopic),
		outboxRow(t, 2, "gamehub.other.topic"),
	}
	repo.On("FetchUnpublished", mock.Anything, 50).Return(rows, nil)
	pub.On("Publish", mock.Anything, OrderCreatedTopic, eventsLen(1)).Return(errors.New("broker down"))
	pub.On("Publish", mock.Anything, "gamehub.other.topic", eventsLen(1)).Return(nil)
	repo.On("MarkPublished", mock.Anything, []int64{2}).Return(nil)

	n, err := relay.RelayOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)
	repo.AssertExpectations(t)
}

func TestRelayOnce_MalformedPayloadIsMarked(t *testing.T) {
	repo := new(mockOutboxRepo)
	pub := new(mockPublisher)
	relay := NewOutboxRelay(repo, pub, time.Second, 50, newTestLogger())

	rows := []domain.OutboxEvent{{ID: 7, EventID: "ev-7", Topic: OrderCreatedTopic, Payload: []byte("{broken")}}
	repo.On("FetchUnpublished", mock.Anything, 50).Return(rows, nil)
	repo.On("MarkPublished", mock.Anything, []int64{7}).Return(nil)

	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestRelayOnce_FetchError(t *testing.T) {
	repo := new(mockOutboxRepo)
	relay := NewOutboxRelay(repo, new(mockPublisher), time.Second, 50, newTestLogger())

	repo.On("FetchUnpublished", mock.Anything, 50).Return(nil, errors.New("db down"))

	_, err := relay.RelayOnce(context.Background())
	require.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	repo := new(mockOutboxRepo)
	relay := NewOutboxRelay(repo, new(mockPublisher), 5*time.Millisecond, 50, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	var ticks atomic.Int32
	repo.On("FetchUnpublished", mock.Anything, 50).
		Run(func(mock.Arguments) { ticks.Add(1) }).
		Return([]domain.OutboxEvent{}, nil)

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool {
		return ticks.Load() > 0
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestNewOrderCreatedEvent_CarriesTraceContext(t *testing.T) {
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx, span := tp.Tracer("test").Start(context.Background(), "finalize")
	order := &domain.Order{
		ID: "o-1", UserID: "u-1", Total: 2500, Currency: "CAD",
		Details: []domain.OrderDetail{{ProductID: "p-a", Quantity: 2, UnitPrice: 1000}, {ProductID: "p-b", Quantity: 1, UnitPrice: 500}},
	}
	row, err := NewOrderCreatedEvent(ctx, order, "corr-1")
	span.End()
	require.NoError(t, err)

	assert.Equal(t, "gamehub.order.created", row.Topic)
	assert.Equal(t, "o-1", row.AggregateID)

	ev, err := kafka.UnmarshalEvent(row.Payload)
	require.NoError(t, err)
	assert.Equal(t, row.EventID, ev.EventID)
	assert.Equal(t, "corr-1", ev.CorrelationID)
	assert.Contains(t, ev.Metadata["traceparent"], span.SpanContext().TraceID().String())

	var data domain.OrderCreatedData
	require.NoError(t, ev.UnmarshalData(&data))
	assert.Equal(t, int64(2500), data.Total)
	assert.Len(t, data.Items, 2)
}
