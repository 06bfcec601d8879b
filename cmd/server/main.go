package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garnizeh/simplymeet/api"
	migrations "github.com/garnizeh/simplymeet/db"
	"github.com/garnizeh/simplymeet/internal/agenda"
	"github.com/garnizeh/simplymeet/internal/config"
	"github.com/garnizeh/simplymeet/internal/db"
	"github.com/garnizeh/simplymeet/internal/jobs"
	"github.com/garnizeh/simplymeet/internal/metrics"
	"github.com/garnizeh/simplymeet/internal/refresh"
	"github.com/garnizeh/simplymeet/internal/reminders"
	"github.com/garnizeh/simplymeet/internal/repository/sqlite"
	"github.com/garnizeh/simplymeet/pkg/odoo"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const (
	// reminders picked up later than this after their trigger are dropped
	reminderMaxLate = 5 * time.Minute
	finishedJobTTL  = 7 * 24 * time.Hour
	shutdownTimeout = 30 * time.Second
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	api.SetLogger(logger)
	odoo.SetLogger(logger)

	logger.Info("starting simplymeet", slog.String("version", version), slog.String("build_time", buildTime))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", slog.Any("err", err))
		os.Exit(1)
	}
	logger.Info("server exited")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	database, err := db.New(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Warn("close database", slog.Any("err", err))
		}
	}()
	if err := db.Migrate(ctx, database, migrations.Migrations); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	m, err := metrics.New("", nil)
	if err != nil {
		return err
	}
	prefs := sqlite.New(database, logger)
	loc := cfg.Location()

	client, err := odoo.NewDefaultClient(cfg.Odoo, odoo.WithLocation(loc), odoo.WithObserver(m))
	if err != nil {
		return fmt.Errorf("odoo client: %w", err)
	}
	defer client.Close()

	// reminder delivery
	jobRepo := jobs.NewRepository(database)
	if n, err := jobRepo.PurgeFinished(ctx, time.Now().Add(-finishedJobTTL)); err != nil {
		logger.Warn("purge finished jobs", slog.Any("err", err))
	} else if n > 0 {
		logger.Info("purged finished jobs", slog.Int64("count", n))
	}
	pool := jobs.NewWorkerPool(jobRepo, map[string]jobs.Handler{
		reminders.JobType: reminders.DeliveryHandler(reminders.LogSink{Logger: logger}, reminderMaxLate, logger),
	}, logger, cfg.Reminders.Workers)
	pool.Start(ctx)
	defer pool.Stop()

	scheduler := reminders.NewScheduler(
		reminders.NewJobNotifier(jobRepo, cfg.Reminders.Enabled, logger),
		reminders.WithLeadMinutes(cfg.Reminders.LeadMinutes),
		reminders.WithLogger(logger),
		reminders.WithObserver(m),
	)

	svc := agenda.NewService(client, prefs,
		agenda.WithReminders(scheduler),
		agenda.WithCache(agenda.NewDayCache(m)),
		agenda.WithLocation(loc),
		agenda.WithLogger(logger),
	)
	defer svc.Close()

	runner, err := refresh.New(cfg.Refresh.Cron, svc, refresh.WithLogger(logger))
	if err != nil {
		return err
	}

	if svc.Configured() {
		checkCtx, cancel := context.WithTimeout(ctx, cfg.Odoo.Timeout)
		connected := svc.CheckConnection(checkCtx)
		cancel()
		logger.Info("odoo connection check", slog.Bool("connected", connected))
		if connected {
			if err := runner.RunOnce(ctx); err != nil {
				logger.Warn("initial agenda load failed", slog.String("message", agenda.UserMessage(err)))
			}
		}
	} else {
		logger.Warn("odoo is not configured, agenda will be empty")
	}

	runner.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := runner.Stop(stopCtx); err != nil {
			logger.Warn("stop refresh", slog.Any("err", err))
		}
	}()

	handler := api.SetupRoutes(cfg, version, buildTime, api.Dependencies{
		Agenda:  svc,
		Themes:  prefs,
		Metrics: m.Handler(),
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
