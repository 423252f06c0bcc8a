// Package command provides CLI command definitions for wspool-probe.
package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/wspool-go/internal/cli/output"
	"github.com/yndnr/wspool-go/internal/infra/buildinfo"
	"github.com/yndnr/wspool-go/internal/infra/shutdown"
	"github.com/yndnr/wspool-go/internal/probe"
	"github.com/yndnr/wspool-go/internal/telemetry/logger"
	"github.com/yndnr/wspool-go/internal/telemetry/metric"
)

// ErrAllConnectionsFailed is returned when every connection of a run
// ended in the failed state. main maps it to exit status 2.
var ErrAllConnectionsFailed = errors.New("all connections failed")

// hookTimeout bounds the shutdown hooks at the end of a run.
const hookTimeout = 5 * time.Second

// RunCommand returns the run command. It is also the application's
// default action, so a bare invocation behaves the same way.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run the connection exercise and print a report",
		ArgsUsage: "[MESSAGE...]",
		Description: "Creates the configured number of connections to the server, " +
			"sends every MESSAGE from each connection's open callback plus one " +
			"numbered synchronous message per connection, waits for replies, " +
			"then closes everything and prints a per-connection report.",
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}

	ctx, stop := shutdown.WithSignals(context.Background())
	defer stop()

	runID := probe.NewRunID()
	ctx = logger.WithRunID(ctx, runID)

	hooks := shutdown.NewHandler(hookTimeout)
	defer func() {
		if err := hooks.Shutdown(); err != nil {
			log.Warn("shutdown hooks", "error", err)
		}
	}()

	opts := []probe.Option{
		probe.WithLogger(log),
		probe.WithOutput(c.App.Writer),
	}
	var registry *metric.Registry
	if cfg.Metrics.Addr != "" {
		registry = metric.Global()
		opts = append(opts, probe.WithMetrics(registry))
	}

	runner := probe.NewRunner(cfg, c.Args().Slice(), opts...)
	if registry != nil {
		registry.MustRegister(metric.NewPoolCollector(runner.Manager()))
		startMetricsServer(cfg.Metrics.Addr, registry, log, hooks)
	}

	log.Info("starting probe",
		"run_id", runID,
		"version", buildinfo.Get().Version,
		"server", cfg.Probe.Server,
		"connections", cfg.Probe.Connections,
	)

	rep, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	if err := rep.Render(c.App.Writer, output.Format(cfg.Output.Format)); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if rep.AllFailed() {
		return ErrAllConnectionsFailed
	}
	return nil
}

// startMetricsServer serves /metrics for the duration of the run and
// registers its teardown with the shutdown hooks.
func startMetricsServer(addr string, reg *metric.Registry, log logger.Logger, hooks *shutdown.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	hooks.OnShutdown(func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	})

	go func() {
		log.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics endpoint", "error", err)
		}
	}()
}
