package telemetry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// failingExporter fails ExportSpans while failing is set.
type failingExporter struct {
	recordingExporter
	failing atomic.Bool
}

func (e *failingExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error {
	if e.failing.Load() {
		return errors.New("collector unavailable")
	}
	return nil
}

func newWithExporter(t *testing.T, exp sdktrace.SpanExporter) *Telemetry {
	t.Helper()
	tel, err := New(context.Background(), endpointConfig(),
		WithTraceExporter(exp),
		WithMetricReader(sdkmetric.NewManualReader()),
	)
	require.NoError(t, err)
	return tel
}

func TestTelemetry_ShutdownReportsExporterShutdownFailure(t *testing.T) {
	tel := newWithExporter(t, &recordingExporter{shutdownErr: errors.New("flush failed")})

	err := tel.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush failed")
}

func TestTelemetry_ShutdownReportsFinalExportFailure(t *testing.T) {
	exp := &failingExporter{}
	exp.failing.Store(true)
	tel := newWithExporter(t, exp)

	_, span := tel.Tracer("test").Start(context.Background(), "pending")
	span.End()

	err := tel.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collector unavailable")
}

func TestTelemetry_ShutdownIgnoresEarlierExportFailures(t *testing.T) {
	exp := &failingExporter{}
	exp.failing.Store(true)
	tel := newWithExporter(t, exp)

	_, span := tel.Tracer("test").Start(context.Background(), "early")
	span.End()
	_ = tel.ForceFlush(context.Background())

	exp.failing.Store(false)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestAppendMissing(t *testing.T) {
	shared := errors.New("shared")
	other := errors.New("other")

	errs := appendMissing([]error{errors.Join(errors.New("wrapped"), shared)}, []error{shared, other})
	assert.Len(t, errs, 2)
	assert.ErrorIs(t, errs[1], other)
}
