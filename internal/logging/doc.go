// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Dual output (stdout + OpenTelemetry logs bridge)
//   - Automatic trace correlation (trace_id, span_id) from the span in context
//
// # Usage
//
// Create a stdout logger at startup, then rebuild it once telemetry is up so
// that records also flow to the collector:
//
//	logger, err := logging.NewLogger(cfg, nil)
//	...
//	if lp := tel.LoggerProvider(); lp != nil {
//	    logger, err = logging.NewLogger(cfg, lp)
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	logger.Info(ctx, "request served", zap.Duration("duration", d))
//
// # Testing
//
// Use TestLogger for test assertions:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//
// Logger is safe for concurrent use.
package logging
