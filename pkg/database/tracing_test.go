package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	return exporter
}

func TestTraceQuery_RecordsSpanAttributes(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), "ListCartLines", "SELECT id FROM cart_lines WHERE customer_id = $1")
	end(nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "db.ListCartLines", span.Name)
	assert.Equal(t, codes.Unset, span.Status.Code)

	attrs := make(map[string]string)
	for _, a := range span.Attributes {
		attrs[string(a.Key)] = a.Value.Emit()
	}
	assert.Equal(t, "postgresql", attrs["db.system"])
	assert.Equal(t, "ListCartLines", attrs["db.operation"])
	assert.Contains(t, attrs["db.statement"], "FROM cart_lines")
}

func TestTraceQuery_ErrorMarksSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), "InsertOrder", "INSERT INTO orders")
	end(errors.New("deadlock detected"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.NotEmpty(t, spans[0].Events)
}

func TestTraceQuery_ChildOfCallerSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx, parent := otel.Tracer("test").Start(context.Background(), "finalize")
	_, end := TraceQuery(ctx, "LockCartLines", "SELECT ... FOR UPDATE")
	end(nil)
	parent.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
}

func TestSlowQueryLogging(t *testing.T) {
	setupTestTracer(t)
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	t.Run("slow statement is logged with its error", func(t *testing.T) {
		buf.Reset()
		SetSlowQueryLogging(time.Nanosecond, logger)

		_, end := TraceQuery(context.Background(), "DeleteCartLines", "DELETE FROM cart_lines")
		end(errors.New("lock timeout"))

		assert.Contains(t, buf.String(), "slow query")
		assert.Contains(t, buf.String(), "DeleteCartLines")
		assert.Contains(t, buf.String(), "lock timeout")
	})

	t.Run("fast statement is not logged", func(t *testing.T) {
		buf.Reset()
		SetSlowQueryLogging(time.Hour, logger)

		_, end := TraceQuery(context.Background(), "GetProduct", "SELECT 1")
		end(nil)

		assert.Empty(t, buf.String())
	})

	t.Run("disabled", func(t *testing.T) {
		buf.Reset()
		SetSlowQueryLogging(0, logger)

		_, end := TraceQuery(context.Background(), "GetProduct", "SELECT 1")
		end(nil)

		assert.Empty(t, buf.String())
	})
}
