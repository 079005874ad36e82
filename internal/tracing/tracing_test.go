package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInit_EmptyEndpoint_InstallsNoopProvider(t *testing.T) {
	// GIVEN no collector endpoint
	// WHEN tracing is initialised
	shutdown, err := Init(context.Background(), "power-saver-test", "", true)

	// THEN a no-op provider is installed and shutdown succeeds
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	_, span := otel.Tracer("test").Start(context.Background(), "span")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}
