// Package main provides the competa CLI: the HTTP service, a one-shot
// bilan report and a demo data seeder.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/competa/internal/adapters/http/api"
	"github.com/okian/competa/internal/adapters/repository"
	app "github.com/okian/competa/internal/app"
	"github.com/okian/competa/internal/config"
	"github.com/okian/competa/internal/domain/rubric"
	"github.com/okian/competa/internal/seed"
	"github.com/okian/competa/pkg/logger"
	"github.com/okian/competa/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

var (
	bilanStudent string
	bilanClass   string

	seedClass    string
	seedStudents int
	seedCaptures int
	seedWorkers  int
	seedValue    uint64
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "competa",
		Short:        "Competency tracking service",
		SilenceUsage: true,
		RunE:         runServeCmd,
	}
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newBilanCmd())
	rootCmd.AddCommand(newSeedCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE:  runServeCmd,
	}
}

func newBilanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bilan",
		Short: "Print a student's report card as JSON",
		RunE:  runBilanCmd,
	}
	cmd.Flags().StringVar(&bilanStudent, "student", "", "student id")
	cmd.Flags().StringVar(&bilanClass, "class", "", "class used for progression (optional)")
	_ = cmd.MarkFlagRequired("student")
	return cmd
}

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill a class with deterministic demo evaluations",
		RunE:  runSeedCmd,
	}
	cmd.Flags().StringVar(&seedClass, "class", "demo", "class id")
	cmd.Flags().IntVar(&seedStudents, "students", seed.DefaultStudents, "number of students")
	cmd.Flags().IntVar(&seedCaptures, "captures", seed.DefaultCaptures, "captures per student")
	cmd.Flags().IntVar(&seedWorkers, "workers", seed.DefaultWorkers, "concurrent authors")
	cmd.Flags().Uint64Var(&seedValue, "seed", 1, "random seed")
	return cmd
}

// setup loads configuration and initializes logging on w.
func setup(ctx context.Context, w io.Writer) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.InitWith(w, cfg.LogFormat); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

// newService opens the configured store and starts the service on it.
func newService(ctx context.Context, cfg *config.Config) (*app.Service, *rubric.Rubric, error) {
	r, err := loadRubric(cfg.RubricPath)
	if err != nil {
		return nil, nil, err
	}
	store, err := repository.Open(ctx, repository.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	svc := app.New(
		app.WithLogger(logger.Get().Named("service")),
		app.WithStore(store),
		app.WithRubric(r),
		app.WithSessionCapacity(cfg.SessionCapacity),
		app.WithReconcileWorkers(cfg.ReconcileWorkers),
	)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to start service: %w", err)
	}
	return svc, r, nil
}

func loadRubric(path string) (*rubric.Rubric, error) {
	if path == "" {
		return rubric.Default()
	}
	return rubric.Load(path)
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := setup(ctx, os.Stdout)
	if err != nil {
		return err
	}
	log := logger.Get()

	svc, _, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(svc, log.Named("api")).Routes(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- api.WrapKind("main.serve", api.ErrServe, err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

func runBilanCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := setup(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	svc, _, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Stop()

	report, err := svc.Bilan(ctx, bilanStudent, bilanClass)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runSeedCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := setup(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	svc, r, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Stop()

	stats, err := seed.Run(ctx, svc, r, seed.Config{
		ClassID:  seedClass,
		Students: seedStudents,
		Captures: seedCaptures,
		Workers:  seedWorkers,
		Seed:     seedValue,
	})
	if err != nil {
		return err
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes store and session gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats updates the gauges as a side effect.
			if _, err := svc.GetStats(ctx); err != nil {
				logger.Get().Warn(ctx, "stats refresh failed", logger.Error(err))
			}
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
