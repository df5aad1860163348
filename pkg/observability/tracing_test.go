package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

func TestNewTracerDisabledStillProducesWorkingSpans(t *testing.T) {
	tracer, err := NewTracer(TracingConfig{Disabled: true}, nil)
	require.NoError(t, err)
	defer tracer.Shutdown(context.Background())

	ctx, end := tracer.StartAttempt(context.Background(), "attempt-1")
	assert.NotNil(t, ctx)
	end("connected", 0)
}

func TestNewTracerDefaultsServiceName(t *testing.T) {
	tracer, err := NewTracer(TracingConfig{Disabled: true}, nil)
	require.NoError(t, err)
	defer tracer.Shutdown(context.Background())
	assert.NotNil(t, tracer)

	_, span := tracer.tracer.Start(context.Background(), "probe")
	defer span.End()
	ro, ok := span.(sdktrace.ReadOnlySpan)
	require.True(t, ok)
	name, ok := ro.Resource().Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "wsclient", name.AsString())
}

func TestStartAttemptEndFuncTagsFailedOutcome(t *testing.T) {
	tracer, err := NewTracer(TracingConfig{Disabled: true}, nil)
	require.NoError(t, err)
	defer tracer.Shutdown(context.Background())

	_, end := tracer.StartAttempt(context.Background(), "attempt-2")
	assert.NotPanics(t, func() { end("failed", 4) })
}
