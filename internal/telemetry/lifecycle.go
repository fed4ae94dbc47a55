package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/frontend/internal/logging"
)

// BuildFunc constructs a telemetry pipeline. New is the default.
type BuildFunc func(ctx context.Context, cfg *Config) (*Telemetry, error)

// Hook runs during teardown, before the telemetry pipeline is shut down.
type Hook func(ctx context.Context) error

type teardownHook struct {
	run     Hook
	timeout time.Duration
}

// Lifecycle owns at most one Telemetry handle for the life of the process.
//
// Initialize is idempotent and teardown is single-shot: once shutdown has
// begun no new handle is ever created. Create one Lifecycle in main and pass
// it to whatever needs the handle.
type Lifecycle struct {
	mu           sync.Mutex
	handle       *Telemetry
	initialized  bool
	shuttingDown bool
	timeout      time.Duration
	hooks        []teardownHook

	logger *logging.Logger
	build  BuildFunc
	exit   func(code int)

	signalOnce sync.Once
	stopOnce   sync.Once
	stop       chan struct{}
	signals    chan os.Signal
}

// LifecycleOption configures a Lifecycle.
type LifecycleOption func(*Lifecycle)

// WithLogger sets the logger for lifecycle status lines.
func WithLogger(logger *logging.Logger) LifecycleOption {
	return func(l *Lifecycle) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithBuilder replaces the pipeline constructor.
func WithBuilder(build BuildFunc) LifecycleOption {
	return func(l *Lifecycle) {
		if build != nil {
			l.build = build
		}
	}
}

// WithExitFunc replaces os.Exit as the final step of OnTerminationSignal.
func WithExitFunc(exit func(code int)) LifecycleOption {
	return func(l *Lifecycle) {
		if exit != nil {
			l.exit = exit
		}
	}
}

// NewLifecycle creates an uninitialized Lifecycle.
func NewLifecycle(opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{
		logger:  logging.NewNop(),
		build:   func(ctx context.Context, cfg *Config) (*Telemetry, error) { return New(ctx, cfg) },
		exit:    os.Exit,
		timeout: NewDefaultConfig().ShutdownTimeout.Duration(),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.Named("telemetry")
	return l
}

// Initialize builds and registers the telemetry pipeline on first use.
//
// Later calls return the first result without side effects. An empty
// endpoint is not an error: telemetry stays off and the handle is nil.
// Construction failures are logged and returned wrapped in ErrConstruction;
// they never need to stop the caller. Once teardown has begun, an
// uninitialized Lifecycle returns ErrShuttingDown.
//
// Concurrent callers block until the first one finishes and then observe
// the same handle.
func (l *Lifecycle) Initialize(ctx context.Context, cfg *Config) (*Telemetry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		l.logger.Debug(ctx, "telemetry already initialized, skipping")
		return l.handle, nil
	}
	if l.shuttingDown {
		return nil, ErrShuttingDown
	}

	cfg = cfg.withDefaults()
	l.timeout = cfg.ShutdownTimeout.Duration()

	if !cfg.Enabled() {
		l.logger.Info(ctx, "telemetry endpoint not configured, skipping initialization")
		l.initialized = true
		return nil, nil
	}

	l.logger.Info(ctx, "initializing telemetry",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("service", cfg.ServiceName),
	)

	tel, err := l.build(ctx, cfg)
	if err == nil && tel == nil {
		err = errors.New("builder returned no handle")
	}
	if err != nil {
		if !errors.Is(err, ErrConstruction) {
			err = fmt.Errorf("%w: %w", ErrConstruction, err)
		}
		l.logger.Error(ctx, "failed to initialize telemetry",
			zap.Error(err),
			zap.Bool("retry", cfg.RetryOnFailure),
		)
		if !cfg.RetryOnFailure {
			l.initialized = true
		}
		return nil, err
	}

	tel.register()
	otel.SetErrorHandler(newErrorHandler(l.logger))

	for _, reason := range tel.Health().Reasons {
		l.logger.Warn(ctx, "telemetry degraded", zap.String("reason", reason))
	}

	l.handle = tel
	l.initialized = true
	l.logger.Info(ctx, "telemetry initialized",
		zap.String("service", tel.ServiceName()),
	)
	return tel, nil
}

// Handle returns the current handle, or nil when telemetry is off, not yet
// initialized or failed to initialize.
func (l *Lifecycle) Handle() *Telemetry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle
}

// Tracer returns a tracer from the handle, or from the global provider when
// there is none.
func (l *Lifecycle) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	return l.Handle().Tracer(name, opts...)
}

// BeforeTeardown registers a hook that runs ahead of the pipeline shutdown.
// Hooks run in registration order, each bounded by its own timeout, or by the
// telemetry shutdown timeout when timeout is zero. The pipeline shutdown
// always gets a full budget of its own afterwards.
func (l *Lifecycle) BeforeTeardown(hook Hook, timeout time.Duration) {
	if hook == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, teardownHook{run: hook, timeout: timeout})
}

// OnTerminationSignal tears telemetry down and exits the process: 0 when
// teardown succeeds or there is nothing to tear down, 1 otherwise. Exit
// happens exactly once, after teardown resolves. Calls after the first are
// no-ops.
func (l *Lifecycle) OnTerminationSignal() {
	if !l.beginShutdown() {
		return
	}

	code := 1
	defer func() {
		l.exit(code)
	}()

	if err := l.teardown(context.Background()); err == nil {
		code = 0
	}
}

// Shutdown runs the same single-shot teardown as OnTerminationSignal without
// exiting, then stops listening for signals. Returns nil if teardown has
// already begun.
func (l *Lifecycle) Shutdown(ctx context.Context) error {
	if !l.beginShutdown() {
		return nil
	}
	defer l.stopListening()
	return l.teardown(ctx)
}

// ShuttingDown reports whether teardown has begun.
func (l *Lifecycle) ShuttingDown() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shuttingDown
}

// beginShutdown flips shuttingDown and reports whether this call did so.
func (l *Lifecycle) beginShutdown() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.shuttingDown {
		return false
	}
	l.shuttingDown = true
	return true
}

// teardown runs the hooks, then shuts the handle down. Each step gets its own
// deadline so a slow drain cannot eat into the final flush; a deadline
// already on ctx still caps every step.
func (l *Lifecycle) teardown(ctx context.Context) error {
	l.mu.Lock()
	handle := l.handle
	hooks := append([]teardownHook(nil), l.hooks...)
	timeout := l.timeout
	l.mu.Unlock()

	var errs []error

	for _, hook := range hooks {
		budget := hook.timeout
		if budget <= 0 {
			budget = timeout
		}
		hookCtx, cancel := context.WithTimeout(ctx, budget)
		err := hook.run(hookCtx)
		cancel()
		if err != nil {
			l.logger.Error(ctx, "teardown hook failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("teardown hook: %w", err))
		}
	}

	if handle != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := handle.Shutdown(shutdownCtx); err != nil {
			l.logger.Error(ctx, "error shutting down telemetry", zap.Error(err))
			errs = append(errs, err)
		} else {
			l.logger.Info(ctx, "telemetry shut down successfully")
		}
	}

	return errors.Join(errs...)
}
