package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/deckguard/deckguard/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetup_Disabled(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(config.TracingConfig{}, &buf, "test")
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "ignored")
	span.End()
	require.NoError(t, shutdown(context.Background()))
	assert.Empty(t, buf.String())
}

func TestSetup_ExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := Setup(config.TracingConfig{Enabled: true}, &buf, "1.2.3")
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "urlguard.chain")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, `"Name":"urlguard.chain"`)
	assert.Contains(t, out, "deckguard")
	assert.Contains(t, out, "1.2.3")
}
