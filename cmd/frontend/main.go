// Package main runs the front-end service with its telemetry lifecycle.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	httpserver "github.com/fyrsmithlabs/frontend/internal/http"
	"github.com/fyrsmithlabs/frontend/internal/logging"
	"github.com/fyrsmithlabs/frontend/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// errTerminating means a termination signal stopped the server and the
// signal handler now owns teardown and process exit.
var errTerminating = errors.New("terminating on signal")

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	runServe := func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context(), configPath)
	}

	root := &cobra.Command{
		Use:   "frontend",
		Short: "Front-end service with OpenTelemetry instrumentation",
		Long: `frontend serves the front-end over HTTP and exports traces, metrics and logs
to an OpenTelemetry collector when OTEL_EXPORTER_OTLP_ENDPOINT is set.`,
		Version:      version,
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		RunE:  runServe,
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), cfg)
		},
	})

	return root
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "frontend by Fyrsmith Labs\n")
	fmt.Fprintf(w, "Version:    %s\n", version)
	fmt.Fprintf(w, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(w, "Build Date: %s\n", buildDate)
}

func printConfig(w io.Writer, cfg *appConfig) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}

// serve loads configuration, installs the termination handler and runs the
// server.
func serve(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(&cfg.Logging, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	lc := telemetry.NewLifecycle(telemetry.WithLogger(logger))
	lc.ListenForTermination()

	err = run(ctx, cfg, lc, logger)
	if errors.Is(err, errTerminating) {
		// OnTerminationSignal exits the process once teardown resolves.
		select {}
	}
	return err
}

// run starts the server and blocks until it stops.
//
//  1. Initializes telemetry (failures are logged, never fatal)
//  2. Bridges logs into the OTel logger provider when there is one
//  3. Starts the HTTP server, drained ahead of telemetry teardown
//
// Cancelling ctx shuts the server and telemetry down and returns nil.
func run(ctx context.Context, cfg *appConfig, lc *telemetry.Lifecycle, logger *logging.Logger) error {
	tel, _ := lc.Initialize(ctx, &cfg.Telemetry)

	if lp := tel.LoggerProvider(); lp != nil && cfg.Logging.Output.OTEL {
		bridged, err := logging.NewLogger(&cfg.Logging, lp)
		if err != nil {
			logger.Warn(ctx, "failed to bridge logs to telemetry", zap.Error(err))
		} else {
			logger = bridged
		}
	}

	srv, err := httpserver.NewServer(&cfg.Server, logger,
		httpserver.WithTelemetry(tel),
		httpserver.WithServiceName(cfg.Telemetry.ServiceName),
		httpserver.WithIgnore(cfg.Telemetry.ShouldIgnore),
	)
	if err != nil {
		return errors.Join(fmt.Errorf("failed to create server: %w", err), lc.Shutdown(context.Background()))
	}
	lc.BeforeTeardown(srv.Shutdown, cfg.Server.ShutdownTimeout.Duration())

	logger.Info(ctx, "starting frontend",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.Bool("telemetry", tel.IsEnabled()),
	)

	err = srv.Start(ctx)
	switch {
	case errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil && lc.ShuttingDown():
		return errTerminating
	case errors.Is(err, http.ErrServerClosed):
		logger.Info(ctx, "server stopped")
		return lc.Shutdown(context.Background())
	default:
		logger.Error(ctx, "server failed", zap.Error(err))
		return errors.Join(err, lc.Shutdown(context.Background()))
	}
}
