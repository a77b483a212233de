package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/vine/pkg/tracing"
)

func TestLogFields(t *testing.T) {
	t.Run("should be empty for a bare context", func(t *testing.T) {
		assert.Empty(t, LogFields(context.Background()))
	})

	t.Run("should carry every id that was set", func(t *testing.T) {
		ctx := SetRequestID(context.Background(), "req-1")
		ctx = SetUserID(ctx, "reviewer-1")
		ctx = SetImportID(ctx, "import-7")
		ctx = SetSupplierID(ctx, "sup-1")

		assert.Equal(t, "req-1", GetRequestID(ctx))
		assert.Equal(t, "import-7", GetImportID(ctx))
		assert.Equal(t, "sup-1", GetSupplierID(ctx))
		assert.Equal(t, map[string]any{
			"request_id":  "req-1",
			"user_id":     "reviewer-1",
			"import_id":   "import-7",
			"supplier_id": "sup-1",
		}, LogFields(ctx))
	})

	t.Run("should skip empty ids", func(t *testing.T) {
		ctx := SetImportID(context.Background(), "")
		assert.NotContains(t, LogFields(ctx), "import_id")
	})

	t.Run("should add the trace id of the active span", func(t *testing.T) {
		provider := sdktrace.NewTracerProvider()
		tracing.SetTracer(provider.Tracer("vine-test"))
		t.Cleanup(func() {
			tracing.SetTracer(nil)
			_ = provider.Shutdown(context.Background())
		})

		ctx, span := tracing.StartSpan(SetSupplierID(context.Background(), "sup-1"), "match")
		defer span.End()

		fields := LogFields(ctx)
		require.Contains(t, fields, "trace_id")
		assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
		assert.Equal(t, "sup-1", fields["supplier_id"])
	})
}
