package telemetry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// failureRecorder keeps exporter errors raised while the pipeline shuts down.
// The SDK batch processors hand those errors to otel.Handle and return nil,
// so without it a failed final flush would look like a clean teardown.
// Errors before arm are left to the error handler.
type failureRecorder struct {
	armed atomic.Bool
	mu    sync.Mutex
	errs  []error
}

func (r *failureRecorder) arm() {
	r.armed.Store(true)
}

func (r *failureRecorder) record(err error) {
	if err == nil || !r.armed.Load() {
		return
	}
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

// take returns the recorded errors and clears them.
func (r *failureRecorder) take() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	errs := r.errs
	r.errs = nil
	return errs
}

// spanExporter reports ExportSpans and Shutdown failures to a recorder.
type spanExporter struct {
	sdktrace.SpanExporter
	failures *failureRecorder
}

func (e *spanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	err := e.SpanExporter.ExportSpans(ctx, spans)
	e.failures.record(err)
	return err
}

func (e *spanExporter) Shutdown(ctx context.Context) error {
	err := e.SpanExporter.Shutdown(ctx)
	e.failures.record(err)
	return err
}

// logExporter reports Export and Shutdown failures to a recorder.
type logExporter struct {
	sdklog.Exporter
	failures *failureRecorder
}

func (e *logExporter) Export(ctx context.Context, records []sdklog.Record) error {
	err := e.Exporter.Export(ctx, records)
	e.failures.record(err)
	return err
}

func (e *logExporter) Shutdown(ctx context.Context) error {
	err := e.Exporter.Shutdown(ctx)
	e.failures.record(err)
	return err
}

// appendMissing adds each of extra to errs unless errs already wraps it.
func appendMissing(errs []error, extra []error) []error {
	for _, err := range extra {
		if !errors.Is(errors.Join(errs...), err) {
			errs = append(errs, err)
		}
	}
	return errs
}
