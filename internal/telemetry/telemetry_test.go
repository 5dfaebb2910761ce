package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetup_Off(t *testing.T) {
	for _, exporter := range []string{"", "off"} {
		t.Run("exporter "+exporter, func(t *testing.T) {
			shutdown, err := Setup(context.Background(), Config{Exporter: exporter})
			require.NoError(t, err)
			require.NotNil(t, shutdown)
			assert.NoError(t, shutdown(context.Background()))
		})
	}
}

func TestSetup_UnknownExporter(t *testing.T) {
	_, err := Setup(context.Background(), Config{Exporter: "jaeger"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown telemetry exporter")
}

// TestSetup_StdoutRecordsSpans drives a span through the stdout
// exporter and checks it lands in the writer after shutdown flushes.
func TestSetup_StdoutRecordsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), Config{
		Exporter: "stdout",
		Writer:   &buf,
	})
	require.NoError(t, err)

	tracer := otel.Tracer("telemetry-test")
	_, span := tracer.Start(context.Background(), "test-span")
	span.End()

	require.NoError(t, shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "test-span")
	assert.Contains(t, out, "codemate")
}
