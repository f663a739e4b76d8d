package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "blobsweep", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	tracer = nil
	enabled = false

	require.NotNil(t, Tracer())
}

func TestNoopHelpersDoNotPanic(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, SpanFromContext(newCtx))

	require.NotPanics(t, func() {
		AddEvent(newCtx, "test.event")
		RecordError(newCtx, nil)
		RecordError(newCtx, errors.New("boom"))
		SetStatus(newCtx, codes.Ok, "success")
		SetAttributes(newCtx, Scope("u1"))
		span.End()
	})

	assert.Equal(t, "", TraceID(ctx))
	assert.Equal(t, "", SpanID(ctx))
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want string
	}{
		{"always", 1.0, "ParentBased{root:AlwaysOnSampler"},
		{"above one", 3, "ParentBased{root:AlwaysOnSampler"},
		{"never", 0, "ParentBased{root:AlwaysOffSampler"},
		{"ratio", 0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, samplerFor(tt.rate).Description(), tt.want)
		})
	}
}

func TestPassAndScopeSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		tracer = nil
	})
	tracer = tp.Tracer("test")

	ctx, pass := StartPassSpan(context.Background(), "pass-1", "manual", true)
	assert.NotEmpty(t, TraceID(ctx))
	assert.NotEmpty(t, SpanID(ctx))

	scopeCtx, scope := StartScopeSpan(ctx, "u1", "u1/")
	_, del := StartDeleteSpan(scopeCtx, "u1/a.bin", Scope("u1"))
	del.End()
	scope.End()
	pass.End()

	spans := rec.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, SpanDelete, spans[0].Name())
	assert.Equal(t, SpanScope, spans[1].Name())
	assert.Equal(t, SpanPass, spans[2].Name())

	assert.Equal(t, spans[2].SpanContext().SpanID(), spans[1].Parent().SpanID())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())

	attrs := map[string]string{}
	for _, kv := range spans[2].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "pass-1", attrs[AttrPassID])
	assert.Equal(t, "manual", attrs[AttrTrigger])
	assert.Equal(t, "true", attrs[AttrDryRun])
}

func TestAttributeHelpers(t *testing.T) {
	assert.Equal(t, AttrScope, string(Scope("u1").Key))
	assert.Equal(t, "u1/", Prefix("u1/").Value.AsString())
	assert.Equal(t, int64(7), Orphans(7).Value.AsInt64())
	assert.Equal(t, int64(3), LiveKeys(3).Value.AsInt64())
	assert.Equal(t, AttrBytes, string(BytesReclaimed(1).Key))
	assert.Equal(t, "s3", StoreType("s3").Value.AsString())
	assert.Equal(t, AttrObjectKey, string(ObjectKey("k").Key))
}

func TestWithScopeLabelsRunsCallback(t *testing.T) {
	called := false
	WithScopeLabels(context.Background(), "p", "u1", func(ctx context.Context) {
		called = ctx != nil
	})
	assert.True(t, called)
}
