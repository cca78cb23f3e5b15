// Package main is the entry point for the HelpOrbit API server binary.
// It dispatches three subcommands (serve, migrate and version) via a switch
// on os.Args so the full CLI surface is readable in one place. serve runs
// migrations on startup so a fresh deployment needs no separate step.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/helporbit/helporbit/internal/api"
	"github.com/helporbit/helporbit/internal/audit"
	"github.com/helporbit/helporbit/internal/auth"
	"github.com/helporbit/helporbit/internal/cache"
	"github.com/helporbit/helporbit/internal/config"
	"github.com/helporbit/helporbit/internal/db"
	"github.com/helporbit/helporbit/internal/db/repositories"
	"github.com/helporbit/helporbit/internal/db/stores"
	"github.com/helporbit/helporbit/internal/jobs"
	"github.com/helporbit/helporbit/internal/mail"
	"github.com/helporbit/helporbit/internal/services"
	"github.com/helporbit/helporbit/internal/storage"
	"github.com/helporbit/helporbit/internal/telemetry"

	// Import storage backends to register them
	_ "github.com/helporbit/helporbit/internal/storage/azure"
	_ "github.com/helporbit/helporbit/internal/storage/gcs"
	_ "github.com/helporbit/helporbit/internal/storage/local"
	_ "github.com/helporbit/helporbit/internal/storage/s3"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if command == "version" {
		fmt.Printf("HelpOrbit v%s\n", version)
		return nil
	}

	configPath := os.Getenv("HO_CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch command {
	case "serve":
		return serve(cfg, configPath)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, version", command)
	}
}

func serve(cfg *config.Config, configPath string) error {
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)
	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Only the log level is safe to change without a restart.
	if err := config.Watch(configPath, func(next *config.Config) {
		telemetry.SetLogLevel(next.Logging.Level)
	}); err != nil {
		slog.Warn("config file watch disabled", "error", err)
	}

	if err := auth.ValidateJWTSecret(); err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	slog.Info("connected to database", "host", cfg.Database.Host, "name", cfg.Database.Name)

	telemetry.StartDBStatsCollector(ctx, database)

	if err := db.RunMigrations(database, db.Up); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if v, dirty, err := db.MigrationVersion(database); err != nil {
		slog.Warn("failed to read migration version", "error", err)
	} else {
		slog.Info("database schema ready", "version", v, "dirty", dirty)
	}

	storageBackend, err := storage.NewStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	slog.Info("initialized storage backend", "backend", cfg.Storage.DefaultBackend)

	local := cache.NewLocalRevalidator()
	var revalidator cache.Revalidator = local
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		rr := cache.NewRedisRevalidator(redisClient, cfg.Redis.Channel, local)
		rr.Start(ctx)
		revalidator = rr
		slog.Info("connected to redis", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	}

	var sender mail.Sender
	if cfg.Notifications.Enabled {
		sender = mail.NewSMTPSender(cfg.Notifications.SMTP)
	} else {
		sender = mail.NewLogSender(slog.Default())
		slog.Info("email delivery disabled, outgoing mail is logged")
	}

	st := stores.New(database)
	svc, err := services.New(services.Dependencies{
		Stores:      st,
		Storage:     storageBackend,
		Mailer:      mail.NewMailer(sender, cfg.App.URL, cfg.App.Name),
		Local:       local,
		Revalidator: revalidator,
		Logger:      slog.Default(),
	}, services.OptionsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	shipper, err := audit.NewMultiShipper(cfg.Audit)
	if err != nil {
		return fmt.Errorf("failed to initialize audit shipping: %w", err)
	}
	defer shipper.Close()
	if shipper.Len() > 0 {
		slog.Info("audit shipping enabled", "destinations", shipper.Len())
	}
	auditLog := audit.NewRecorder(st.AuditLogs, shipper)

	if cfg.Maintenance.Enabled {
		cleanup := jobs.NewCleanupJob(
			repositories.NewVerificationRepository(db.Wrap(database)),
			repositories.NewAuditRepository(database),
			cfg.Audit.RetentionDays,
			cfg.Maintenance.Interval,
			nil,
		)
		go cleanup.Start(ctx)
		defer cleanup.Stop()
	}

	if cfg.Telemetry.Metrics.Enabled {
		startMetricsServer(cfg.Telemetry.Metrics.PrometheusPort)
	}

	router, bgServices := api.NewRouter(cfg, api.Dependencies{
		Services: svc,
		Users:    st.Users,
		AuditLog: auditLog,
		DB:       database,
		Storage:  storageBackend,
		Redis:    redisClient,
	})

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.Server.GetAddress(), "base_url", cfg.Server.BaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	bgServices.Shutdown()
	slog.Info("server stopped gracefully")
	return nil
}

// startMetricsServer serves Prometheus metrics on a dedicated port so the
// scrape path stays off the public listener and its middleware.
func startMetricsServer(port int) {
	addr := fmt.Sprintf(":%d", port)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		slog.Info("starting Prometheus metrics server", "addr", addr)
		srv := &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
}

func runMigrations(cfg *config.Config, direction string) error {
	database, err := db.Connect(context.Background(), cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	log.Printf("Running migrations: %s", direction)
	if err := db.RunMigrations(database, db.Direction(direction)); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	v, dirty, err := db.MigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	log.Printf("Migration completed successfully. Current version: %d (dirty: %v)", v, dirty)
	return nil
}
