package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	fmerrors "github.com/flowmech-labs/flowmech/pkg/flowmech/v1/errors"
	"github.com/flowmech-labs/flowmech/pkg/flowmech/v1/plan"

	"github.com/flowmech-labs/flowmech/internal/adviser"
	"github.com/flowmech-labs/flowmech/internal/alert"
	"github.com/flowmech-labs/flowmech/internal/boundary"
	"github.com/flowmech-labs/flowmech/internal/config"
	"github.com/flowmech-labs/flowmech/internal/delegate"
	"github.com/flowmech-labs/flowmech/internal/engine"
	"github.com/flowmech-labs/flowmech/internal/events"
	"github.com/flowmech-labs/flowmech/internal/execution"
	"github.com/flowmech-labs/flowmech/internal/facilitator"
	"github.com/flowmech-labs/flowmech/internal/lock"
	"github.com/flowmech-labs/flowmech/internal/logger"
	"github.com/flowmech-labs/flowmech/internal/metrics"
	"github.com/flowmech-labs/flowmech/internal/perpetual"
	"github.com/flowmech-labs/flowmech/internal/step"
	"github.com/flowmech-labs/flowmech/internal/task"
	"github.com/flowmech-labs/flowmech/internal/tracing"
)

const (
	ExitSuccess    = 0
	ExitFailure    = 1
	ExitUsageError = 2
	ExitSigIntBase = 128
	ExitSigInt     = ExitSigIntBase + int(syscall.SIGINT)
	ExitSigTerm    = ExitSigIntBase + int(syscall.SIGTERM)
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "validate" {
		runValidateCommand(os.Args[2:])
		return
	}
	if len(os.Args) == 2 && (os.Args[1] == "--version" || os.Args[1] == "-version") {
		printVersion()
		os.Exit(ExitSuccess)
	}
	os.Exit(runServeCommand(os.Args[1:]))
}

func printVersion() {
	fmt.Printf("flowmech version %s\n", version)
	fmt.Printf("commit: %s\n", commit)
	fmt.Printf("built: %s\n", buildDate)
	fmt.Printf("go version: %s\n", runtime.Version())
	fmt.Printf("os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func runValidateCommand(args []string) {
	validateFlags := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := validateFlags.String("config", "", "Path to the service config YAML file to validate (required)")
	logLevel := validateFlags.String("log-level", "info", "Log level for validation output (debug, info, warn, error)")

	validateFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s validate -config <path> [flags...]\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Validates the structure and schema compatibility of a flowmech service config.")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		validateFlags.PrintDefaults()
	}

	if err := validateFlags.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing validate flags: %v\n", err)
		os.Exit(ExitUsageError)
	}

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -config flag is required for validation")
		validateFlags.Usage()
		os.Exit(ExitUsageError)
	}

	log := logger.NewLogger(*logLevel, "text", os.Stderr)
	log.Infof("Validating config: %s", *configPath)

	if _, err := config.LoadFromFile(*configPath); err != nil {
		var validationErr *fmerrors.ValidationError
		var configErr *fmerrors.ConfigError
		if errors.As(err, &validationErr) {
			log.Errorf("Config validation failed:\n%s", validationErr.Error())
		} else if errors.As(err, &configErr) {
			log.Errorf("Config error:\n%s", configErr.Error())
		} else {
			log.Errorf("Failed to load or validate config: %v", err)
		}
		os.Exit(ExitFailure)
	}

	log.Infof("Config validation successful: %s", *configPath)
	os.Exit(ExitSuccess)
}

func runServeCommand(args []string) int {
	serveFlags := flag.NewFlagSet("flowmech", flag.ExitOnError)
	configPath := serveFlags.String("config", "", "Path to the service config YAML file (optional, defaults apply)")
	logLevel := serveFlags.String("log-level", "", "Log level override (debug, info, warn, error)")
	logFormat := serveFlags.String("log-format", "", "Log format override (text, json)")
	versionFlag := serveFlags.Bool("version", false, "Print version information and exit")

	serveFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags...]\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Runs the flowmech node execution service.")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		serveFlags.PrintDefaults()
	}

	if err := serveFlags.Parse(args); err != nil {
		return ExitUsageError
	}
	if *versionFlag {
		printVersion()
		return ExitSuccess
	}

	cfg := &config.Config{}
	if *configPath != "" {
		loaded, err := config.LoadFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config '%s': %v\n", *configPath, err)
			return ExitFailure
		}
		cfg = loaded
	}
	cfg.ApplyDefaults()
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		fmt.Fprintln(os.Stderr, "Error: log format must be 'text' or 'json'")
		return ExitUsageError
	}

	var logWriter io.Writer = os.Stderr
	log := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format, logWriter)
	log = log.With("flowmech_version", version)

	log.Infof("Flowmech execution scheduling service v%s starting...", version)
	log.Debugf("Worker pool size: %d", cfg.Engine.WorkerPoolSize)
	log.Debugf("Dispatch queue size: %d", cfg.Engine.DispatchQueueSize)
	log.Debugf("Service address: %s", cfg.Server.GRPCAddress)

	bus := events.NewChannelEventBus(cfg.Events.BufferSize, log)
	defer bus.Close()

	metricsProvider := metrics.NewPrometheusRegistryProvider()
	tracerProvider, err := tracing.NewProviderFromEnv(context.Background())
	if err != nil {
		log.Warnf("Failed to initialize tracing from environment: %v. Using NoOp tracer.", err)
		tracerProvider, _ = tracing.NewNoOpProvider()
	}

	store := execution.NewMemoryStore()
	steps := step.NewRegistry()
	advisers := adviser.NewRegistry()
	facilitators := facilitator.NewRegistry()
	executors := task.NewRegistry()

	delegates := delegate.NewRegistry(cfg.Delegates.HeartbeatWindow.Duration, log)
	if err := executors.Register(plan.TaskCategoryDelegate, delegate.NewTaskExecutor(delegates, log)); err != nil {
		log.Errorf("Failed to register delegate task executor: %v", err)
		return ExitFailure
	}

	eng := engine.New(store, steps, advisers, facilitators, executors,
		engine.WithEventBus(bus),
		engine.WithLogger(log),
		engine.WithMetricsRegistryProvider(metricsProvider),
		engine.WithTracerProvider(tracerProvider),
		engine.WithWorkerPool(cfg.Engine.WorkerPoolSize, cfg.Engine.DispatchQueueSize),
	)

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	eng.Start(runCtx)
	defer eng.Stop()

	busCollectors := metrics.NewBusCollectors(metricsProvider.Registry())
	listener := events.NewMetricsEventListener(bus, busCollectors.NodesEnded, busCollectors.Anomalies, busCollectors.AlertsRaised, log)
	go listener.Start(runCtx)

	alerts := alert.NewLogPublisher(log, bus)
	locker := lock.NewMemoryLocker()
	perpStore := perpetual.NewMemoryStore()
	clients := perpetual.NewClientRegistry()
	perpMetrics := perpetual.NewMetrics(metricsProvider.Registry())

	scheduler := perpetual.NewScheduler(perpetual.SchedulerConfig{
		AssignmentInterval: cfg.Scheduler.AssignmentInterval.Duration,
		RebalanceInterval:  cfg.Scheduler.RebalanceInterval.Duration,
		AssignmentPoolSize: cfg.Scheduler.AssignmentPoolSize,
		RebalancePoolSize:  cfg.Scheduler.RebalancePoolSize,
		ValidationTimeout:  cfg.Scheduler.ValidationTimeout.Duration,
		LockTTL:            cfg.Scheduler.LockTTL.Duration,
	}, perpStore, clients, delegates, alerts, locker, bus, perpMetrics, log)

	scheduler.Start(runCtx)
	defer scheduler.Stop()

	server := boundary.NewServer(eng, log)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe(cfg.Server.GRPCAddress)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	exitCode := ExitSuccess
	select {
	case sig := <-sigChan:
		log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
		switch sig {
		case syscall.SIGINT:
			exitCode = ExitSigInt
		case syscall.SIGTERM:
			exitCode = ExitSigTerm
		default:
			exitCode = ExitFailure
		}
	case err := <-serveErr:
		if err != nil {
			log.Errorf("Service stopped: %v", err)
			exitCode = ExitFailure
		}
	}

	cancelRun()
	server.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if shutdownErr := tracerProvider.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warnf("Error shutting down tracer provider: %v", shutdownErr)
	}

	log.Infof("Shutdown complete.")
	return exitCode
}
