package telemetry

import "errors"

var (
	// ErrConstruction wraps every failure to build the telemetry pipeline.
	ErrConstruction = errors.New("telemetry construction failed")

	// ErrShuttingDown is returned by Initialize once teardown has begun.
	ErrShuttingDown = errors.New("telemetry is shutting down")

	// ErrInvalidEndpoint reports a collector endpoint that is not an http(s) URL.
	ErrInvalidEndpoint = errors.New("invalid collector endpoint")

	// ErrInvalidConfig reports a configuration value out of range.
	ErrInvalidConfig = errors.New("invalid telemetry config")
)
