package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"custodia-hq/amber/pkg/bus"
	"custodia-hq/amber/pkg/cli"
	"custodia-hq/amber/pkg/config"
	"custodia-hq/amber/pkg/datastore/sqlstore"
	"custodia-hq/amber/pkg/retention/service"
	"custodia-hq/amber/pkg/telemetry/health"
	"custodia-hq/amber/pkg/telemetry/logging"
	"custodia-hq/amber/pkg/telemetry/metrics"
)

var runFlags struct {
	schedule string
	logLevel string
	dryRun   bool
	once     bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the retention service",
	Long: `Start the retention service with the specified configuration.

The service reconciles archives interrupted by a previous crash, then runs
due retention policies on the configured schedule: archiving expiring
records, deleting expired ones, and sweeping archives past their own
scheduled deletion.

Examples:
  # Start with default config
  amber run

  # Start with custom config
  amber run --config /etc/amber/config.yaml

  # Override the run schedule
  amber run --schedule "0 3 * * *"

  # Execute due policies once and exit
  amber run --once

  # Validate config without starting the service
  amber run --dry-run`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.schedule, "schedule", "", "override run schedule (cron expression)")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the service")
	runCmd.Flags().BoolVar(&runFlags.once, "once", false, "execute due policies once and exit")
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Apply flag overrides
	if runFlags.schedule != "" {
		cfg.Retention.Schedule = runFlags.schedule
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if _, err := logging.Setup(logging.Config{
		Level:  cfg.Telemetry.Logging.Level,
		Format: cfg.Telemetry.Logging.Format,
	}); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Amber v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	a, err := buildApp(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer a.Close()

	fmt.Printf("✓ Storage initialized (%s, %d data types)\n", cfg.Storage.Driver, len(cfg.DataTypes))
	fmt.Printf("✓ Audit chain ready (%d categories)\n", len(cfg.Audit.Categories))
	if a.bus != nil {
		fmt.Printf("✓ Event bus started (%s)\n", cfg.Bus.Type)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Archives stuck in creating from a previous crash are failed before
	// any new runs start.
	reconciled, err := a.svc.Reconcile(ctx)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("startup reconcile failed: %w", err))
	}
	if reconciled > 0 {
		fmt.Printf("✓ Reconciled %d interrupted archives\n", reconciled)
	}

	if runFlags.once {
		summaries, err := a.svc.RunDue(ctx)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		printRunSummaries(summaries)
		return nil
	}

	if cfg.Telemetry.Metrics.Enabled {
		opsServer := startOpsServer(cfg, a.db, a.bus)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := opsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("ops endpoint shutdown failed", "error", err)
			}
		}()
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Telemetry.Metrics.ListenAddress)
		fmt.Printf("✓ Health endpoint: http://%s/health/ready\n", cfg.Telemetry.Metrics.ListenAddress)
	}

	scheduler := service.NewScheduler(a.svc)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer scheduler.Stop()

	if next := scheduler.NextRun(); next != nil {
		fmt.Printf("✓ Retention scheduler started (next run: %s)\n", next.UTC().Format(time.RFC3339))
	}
	fmt.Println("\nPress Ctrl+C to stop")

	sig := <-cli.WaitForShutdown()
	fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
	cancel()

	fmt.Println("✓ Retention service stopped")
	return nil
}

// startOpsServer serves Prometheus metrics and health endpoints in the
// background.
func startOpsServer(cfg *config.Config, db *sqlstore.DB, eventBus bus.Bus) *http.Server {
	checker := health.New(0)
	checker.RegisterCheck("storage", db.Ping)
	if eventBus != nil {
		checker.RegisterCheck("bus", eventBus.Ping)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health/live", checker.LivenessHandler())
	mux.Handle("/health/ready", checker.ReadinessHandler())

	srv := &http.Server{
		Addr:    cfg.Telemetry.Metrics.ListenAddress,
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("ops endpoint failed", "error", err)
		}
	}()
	return srv
}

func printRunSummaries(summaries []*service.RunSummary) {
	if len(summaries) == 0 {
		fmt.Println("No policies due.")
		return
	}

	var processed, archived, deleted, purged int64
	for _, s := range summaries {
		processed += s.Processed
		archived += s.Archived
		deleted += s.Deleted
		purged += s.Purged
	}
	fmt.Printf("✓ Executed %d policies (processed %d, archived %d, deleted %d, purged %d)\n",
		len(summaries), processed, archived, deleted, purged)
}
