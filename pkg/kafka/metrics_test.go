package kafka

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducerMetrics_CountPublishedMessages(t *testing.T) {
	topic := "metrics-test-published"
	before := testutil.ToFloat64(ProducerMessagesPublished.WithLabelValues(topic))

	p := newProducer(&fakeWriter{}, nil, quietLogger())
	a, err := NewEvent("shop", Aggregate{Type: "order", ID: "o-1"}, "created", nil)
	require.NoError(t, err)
	b, err := NewEvent("shop", Aggregate{Type: "order", ID: "o-2"}, "created", nil)
	require.NoError(t, err)
	require.NoError(t, p.Publish(t.Context(), topic, a, b))

	assert.InDelta(t, before+2, testutil.ToFloat64(ProducerMessagesPublished.WithLabelValues(topic)), 0.001)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(ProducerPublishDuration, "kafka_producer_publish_duration_seconds"), 1)
}

func TestProducerMetrics_CountFailedMessages(t *testing.T) {
	topic := "metrics-test-failed"
	before := testutil.ToFloat64(ProducerPublishErrors.WithLabelValues(topic))

	p := newProducer(&fakeWriter{err: errors.New("broker down")}, nil, quietLogger())
	event, err := NewEvent("shop", Aggregate{Type: "order", ID: "o-1"}, "created", nil)
	require.NoError(t, err)
	require.Error(t, p.Publish(t.Context(), topic, event))

	assert.InDelta(t, before+1, testutil.ToFloat64(ProducerPublishErrors.WithLabelValues(topic)), 0.001)
	assert.InDelta(t, 0, testutil.ToFloat64(ProducerMessagesPublished.WithLabelValues(topic)), 0.001)
}
