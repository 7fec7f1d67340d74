package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/HarshModi2005/realityspiral/pkg/config"
)

func TestInit_DisabledIsNoop(t *testing.T) {
	require.NoError(t, Init(context.Background(), config.TracingConfig{}))
	assert.NoError(t, Shutdown(context.Background()))
}

func TestStartEnd_RecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	Install(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { _ = Shutdown(context.Background()) })

	ctx, parent := Start(context.Background(), "orchestrate.run")
	_, step := Start(ctx, "orchestrate.step", StringAttr("action", "CREATE_ISSUE"), IntAttr("index", 0))
	End(step, errors.New("boom"))
	End(parent, nil)

	spans := rec.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "orchestrate.step", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, parent.SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Contains(t, spans[0].Attributes(), StringAttr("action", "CREATE_ISSUE"))

	assert.Equal(t, "orchestrate.run", spans[1].Name())
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
}
