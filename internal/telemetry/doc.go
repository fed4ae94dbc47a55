// Package telemetry owns the front-end's OpenTelemetry pipeline.
//
// # Overview
//
// A Lifecycle holds at most one Telemetry handle for the life of the
// process. Initialize is idempotent; teardown is single-shot and, when
// driven by a termination signal, ends with process exit. Telemetry is
// best-effort: an unset endpoint is a silent no-op and construction
// failures are returned to the caller, never raised.
//
// # Usage
//
//	lc := telemetry.NewLifecycle(telemetry.WithLogger(logger))
//	lc.ListenForTermination()
//	tel, err := lc.Initialize(ctx, cfg)
//	if err != nil {
//	    logger.Warn(ctx, "telemetry disabled", zap.Error(err))
//	}
//
//	ctx, span := lc.Tracer("front-end").Start(ctx, "checkout")
//	defer span.End()
//
// # Configuration
//
//	telemetry:
//	  endpoint: "http://otel-collector:4318"  # OTEL_EXPORTER_OTLP_ENDPOINT
//	  service_name: "front-end"               # OTEL_SERVICE_NAME
//	  protocol: "http/protobuf"               # or grpc
//	  metrics_exporter: "otlp"                # otlp, prometheus, console, none
//	  sample_rate: 1.0
//	  shutdown_timeout: "5s"
//	  retry_on_failure: true
//
// # Request Filtering
//
// ShouldIgnore reports the request paths excluded from tracing: anything
// under /metrics, /health and /favicon.ico.
//
// # Testing
//
// Use TestTelemetry for tests:
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "test-span")
//	span.End()
//	tt.AssertSpanExists(t, "test-span")
package telemetry
