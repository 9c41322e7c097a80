package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Nukesor/encarne/internal/database"
	"github.com/Nukesor/encarne/internal/encoder"
	"github.com/Nukesor/encarne/internal/filesystem"
	"github.com/Nukesor/encarne/internal/logging"
	"github.com/Nukesor/encarne/internal/metrics"
	"github.com/Nukesor/encarne/internal/probe"
	"github.com/Nukesor/encarne/internal/queue"
	"github.com/Nukesor/encarne/internal/reconciler"
	"github.com/Nukesor/encarne/internal/registry"
	"github.com/Nukesor/encarne/internal/scanner"
	"github.com/Nukesor/encarne/internal/startup"

	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleShutdown(cancel)

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())
	cancel()
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "encarne [directory]",
		Short: "Re-encode a movie library to x265 through a job queue",
		Long: `encarne scans a directory for large video files, submits an x265 encode
for each one to pueue (or an HTTP job runner), validates the result and
replaces the original. Every movie is tracked by content hash, so renamed or
moved files are never encoded twice.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			err := runEncode(cmd, configPath, dir)
			if err != nil {
				logging.Error("%v", err)
			}
			return err
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", startup.DefaultConfigPath(), "path to the TOML config file")
	startup.RegisterFlags(root.Flags())

	root.AddCommand(
		newStatsCmd(&configPath),
		newCleanCmd(&configPath),
		newRetryCmd(&configPath),
	)
	return root
}

// app holds what every subcommand needs.
type app struct {
	config   *startup.Config
	db       *database.Database
	registry *registry.Registry
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		logging.Warn("failed to close database: %v", err)
	}
	if err := logging.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
	}
}

func setup(cmd *cobra.Command, configPath string, library string) (*app, error) {
	v := startup.NewViper()
	if err := startup.BindFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}
	cfg, err := startup.LoadConfig(v, configPath)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	if path, err := logging.SetOutputFile(cfg.LogDir); err != nil {
		logging.Warn("Logging to stderr only: %v", err)
	} else {
		logging.Debug("Log file: %s", path)
	}

	metrics.InitializeMetrics()
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	volumes := map[string]string{
		"scratch":  cfg.ScratchDir,
		"database": filepath.Dir(cfg.DatabasePath),
	}
	if library != "" {
		volumes["library"] = library
	}
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(volumes))

	dbStart := time.Now()
	db, err := database.New(cmd.Context(), cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	return &app{config: cfg, db: db, registry: registry.New(db)}, nil
}

func newQueue(cfg *startup.Config) queue.Queue {
	if cfg.QueueBackend == startup.BackendHTTP {
		return queue.NewHTTP(cfg.QueueURL)
	}
	return queue.NewPueue(cfg.PueueBinary)
}

func runEncode(cmd *cobra.Command, configPath, dir string) error {
	ctx := cmd.Context()

	library, err := startup.ValidateDirectory(dir)
	if err != nil {
		return err
	}

	a, err := setup(cmd, configPath, library)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.config

	if err := startup.ValidateScratchDir(cfg.ScratchDir, library); err != nil {
		return err
	}

	prober := probe.NewFFProbe(cfg.FFProbeBinary)
	q := newQueue(cfg)

	err = startup.Preflight(ctx,
		startup.Check{Name: "ffprobe is available", Run: prober.Check},
		startup.Check{Name: cfg.QueueBackend + " queue is reachable", Run: func(ctx context.Context) error {
			_, err := q.Jobs(ctx)
			return err
		}},
	)
	if err != nil {
		return err
	}
	if _, err := startup.CheckScratchSpace(cfg.ScratchDir, cfg.MinSize); err != nil {
		logging.Warn("  %v", err)
	}

	collector := metrics.NewCollector(a.registry, time.Minute)
	if cfg.MetricsEnabled {
		srv := metrics.NewServer(":" + cfg.MetricsPort)
		srv.Start()
		startup.LogMetricsServer(cfg.MetricsPort)
		collector.Start()
		defer func() {
			collector.Stop()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logging.Warn("Metrics server shutdown error: %v", err)
			}
		}()
	}

	filter := scanner.NewFilter(a.registry, prober, scanner.Config{
		MinSize:    cfg.MinSize,
		ScratchDir: cfg.ScratchDir,
		Encoding:   cfg.Encoding,
	})
	rec := reconciler.New(q, prober, a.registry, reconciler.Config{
		PollInterval:      cfg.PollInterval,
		DurationThreshold: cfg.DurationThreshold,
	})

	startup.LogRunStarted(library)
	_, runErr := encoder.New(filter, rec).Run(ctx, library)

	if cfg.MetricsTextfile != "" {
		collector.Collect()
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logging.Warn("Failed to write metrics textfile: %v", err)
		}
	}

	if errors.Is(runErr, context.Canceled) {
		logging.Info("Interrupted, run encarne again to pick up where this run stopped")
	}
	return runErr
}
