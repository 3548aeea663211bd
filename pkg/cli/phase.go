package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nimburion/recordbench/pkg/config"
	"github.com/nimburion/recordbench/pkg/health"
	"github.com/nimburion/recordbench/pkg/observability/logger"
	"github.com/nimburion/recordbench/pkg/observability/metrics"
	"github.com/nimburion/recordbench/pkg/observability/tracing"
	"github.com/nimburion/recordbench/pkg/server"
	"github.com/nimburion/recordbench/pkg/version"
	"github.com/nimburion/recordbench/pkg/workload"
	"github.com/spf13/cobra"
)

func (a *app) newPhaseCommand(phase workload.Phase, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(phase),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPhase(cmd, phase)
		},
	}
	defaults := config.DefaultConfig().Workload
	cmd.Flags().String("table", defaults.Table, "table (collection) to use")
	cmd.Flags().Int("threads", defaults.Threads, "number of concurrent workers")
	cmd.Flags().Float64("target", defaults.Target, "target operations per second across all workers (0 = unthrottled)")
	cmd.Flags().Int("record-count", defaults.RecordCount, "number of records to load, or the key space to run against")
	cmd.Flags().Int("operation-count", defaults.OperationCount, "number of operations in the run phase")
	if phase == workload.PhaseLoad {
		cmd.Flags().Bool("drop", false, "drop the table before loading")
	}
	return cmd
}

// runPhase wires tracing, metrics, the shared store and the workload runner,
// runs one phase and prints its report. Everything is closed in reverse order.
func (a *app) runPhase(cmd *cobra.Command, phase workload.Phase) error {
	cfg, log, err := a.loadConfigAndLogger(cmd.Flags())
	if err != nil {
		return err
	}
	if zl, ok := log.(interface{ Sync() error }); ok {
		defer func() { _ = zl.Sync() }()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: version.Current(cfg.Service.Name).Version,
		Endpoint:       cfg.Observability.TracingEndpoint,
		SampleRate:     cfg.Observability.TracingSampleRate,
		Enabled:        cfg.Observability.TracingEnabled,
	})
	if err != nil {
		return fmt.Errorf("create tracer provider: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	registry := metrics.NewRegistry()
	backend, err := a.opts.Backend(cfg, log, registry.Store())
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(context.Background()); err != nil {
			log.Warn("closing record store failed", "error", err)
		}
	}()

	if err := backend.Open(ctx); err != nil {
		return fmt.Errorf("open %s: %w", backend.Name(), err)
	}

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		mgmt, err := startManagementServer(addr, log, healthRegistry(backend, cfg), registry)
		if err != nil {
			return err
		}
		defer func() {
			if err := mgmt.Shutdown(context.Background()); err != nil {
				log.Warn("management server shutdown failed", "error", err)
			}
		}()
	}

	if drop, _ := cmd.Flags().GetBool("drop"); drop && phase == workload.PhaseLoad {
		if err := backend.Drop(ctx, cfg.Workload.Table); err != nil {
			return err
		}
	}

	runner, err := workload.NewRunner(cfg.Workload.Runner(), backend.DB, log)
	if err != nil {
		return err
	}
	var report *workload.Report
	if phase == workload.PhaseLoad {
		report, err = runner.Load(ctx)
	} else {
		report, err = runner.Run(ctx)
	}
	if report != nil {
		if writeErr := report.WriteText(cmd.OutOrStdout()); writeErr != nil && err == nil {
			err = fmt.Errorf("write report: %w", writeErr)
		}
	}
	return err
}

func startManagementServer(addr string, log logger.Logger, checks *health.Registry, registry *metrics.Registry) (*server.ManagementServer, error) {
	mgmt := server.NewManagementServer(addr, log, checks, registry)
	if err := mgmt.Listen(); err != nil {
		return nil, err
	}
	go func() {
		if err := mgmt.Serve(); err != nil {
			log.Error("management server stopped", "error", err)
		}
	}()
	log.Info("serving metrics", "addr", mgmt.Addr())
	return mgmt, nil
}
