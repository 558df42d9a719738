// Command sukunadb_server runs the replicated-database simulation over a
// command script. It reads commands from a file (or stdin), prints the
// protocol output on stdout, and keeps diagnostics and telemetry out of the
// protocol stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"go.uber.org/zap"

	"github.com/sushant-115/sukunadb/core/coordinator"
	"github.com/sushant-115/sukunadb/internal/command"
	"github.com/sushant-115/sukunadb/pkg/logger"
	"github.com/sushant-115/sukunadb/pkg/telemetry"
)

var (
	inputPath       = flag.String("input", "", "Path to the command script; empty reads stdin")
	logLevel        = flag.String("log_level", "info", "Minimum log level (debug, info, warn, error)")
	logFormat       = flag.String("log_format", "console", "Log output format (json or console)")
	logOutput       = flag.String("log_output", "stderr", "Log destination (stderr, stdout, or a file path)")
	telemetryOn     = flag.Bool("telemetry", false, "Enable metrics and tracing")
	prometheusPort  = flag.Int("metrics_port", 9095, "Port for the Prometheus /metrics endpoint")
	paceOpsPerSec   = flag.Float64("pace", 0, "Replay pacing in commands per second; 0 replays at full speed")
	shutdownTimeout = flag.Duration("shutdown_timeout", 5*time.Second, "Grace period for telemetry shutdown")
)

func main() {
	flag.Parse()

	log, err := logger.New(logger.Config{Level: *logLevel, Format: *logFormat, OutputFile: *logOutput})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID))
	log.Info("sukunadb starting", zap.String("input", *inputPath))

	tel, shutdown, err := telemetry.New(telemetry.Config{
		Enabled:        *telemetryOn,
		ServiceName:    "sukunadb",
		PrometheusPort: *prometheusPort,
	})
	if err != nil {
		log.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			log.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	var in io.Reader = os.Stdin
	if *inputPath != "" {
		f, err := os.Open(*inputPath)
		if err != nil {
			log.Fatal("failed to open command script", zap.Error(err))
		}
		defer f.Close()
		in = f
	}

	coord, err := coordinator.New(coordinator.Config{
		Out:    os.Stdout,
		Logger: log.Named("coordinator"),
		Meter:  tel.Meter,
	})
	if err != nil {
		log.Fatal("failed to create coordinator", zap.Error(err))
	}

	var limiter *rate.Limiter
	if *paceOpsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(*paceOpsPerSec), 1)
	}

	dispatcher := command.NewDispatcher(command.Config{
		Coordinator: coord,
		Out:         os.Stdout,
		Logger:      log.Named("dispatcher"),
		Limiter:     limiter,
	})

	ctx, span := tel.Tracer.Start(context.Background(), "sukunadb.run")
	err = dispatcher.Run(ctx, in)
	span.End()
	if err != nil {
		log.Error("run failed", zap.Error(err))
		os.Exit(1)
	}
	log.Info("sukunadb run complete")
}
