package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), DefaultTracingConfig(), testLogger())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid(), "disabled tracing produced a recording span")
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracingStdout(t *testing.T) {
	cfg := DefaultTracingConfig()
	cfg.Enabled = true

	shutdown, err := InitTracing(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { ShutdownWithTimeout(context.Background(), shutdown, testLogger()) })

	_, span := otel.Tracer("test").Start(context.Background(), "recorded")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}

func TestInitTracingUnknownExporter(t *testing.T) {
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.Exporter = "zipkin"

	_, err := InitTracing(context.Background(), cfg, testLogger())
	assert.ErrorContains(t, err, "unsupported tracing exporter")
}

func TestShutdownWithTimeout(t *testing.T) {
	ShutdownWithTimeout(context.Background(), nil, testLogger())

	called := false
	ShutdownWithTimeout(context.Background(), func(ctx context.Context) error {
		called = true
		if _, ok := ctx.Deadline(); !ok {
			t.Error("shutdown context has no deadline")
		}
		return errors.New("flush failed")
	}, testLogger())
	assert.True(t, called)
}
