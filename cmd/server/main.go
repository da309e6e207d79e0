package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/labtrack/internal/application"
	"github.com/JonMunkholm/labtrack/internal/config"
	"github.com/JonMunkholm/labtrack/internal/core"
	"github.com/JonMunkholm/labtrack/internal/logging"
	"github.com/JonMunkholm/labtrack/internal/tracing"
	"github.com/JonMunkholm/labtrack/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"sheets_backend", cfg.Sheets.Backend,
		"attachments_backend", cfg.Attachments.Backend,
		"audit_enabled", cfg.Audit.Enabled(),
		"upload_max_concurrent", cfg.Attachments.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx := context.Background()

	tp, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		slog.Error("failed to start tracing", "error", err)
		os.Exit(1)
	}

	app, err := application.Build(ctx, cfg, logger, application.Options{})
	if err != nil {
		slog.Error("failed to build service", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	for _, sh := range app.Service.Sheets() {
		slog.Info("sheet registered", "key", sh.Key, "kind", sh.Kind, "public", sh.Public)
	}

	server, err := web.NewServer(web.Deps{
		Service:  app.Service,
		Sessions: app.Sessions,
		Users:    app.Users,
		Metrics:  app.Metrics,
		Files:    app.Files,
		RateLimit: web.RateLimit{
			Enabled:           cfg.Rate.Enabled,
			RequestsPerMinute: cfg.Rate.RequestsPerMinute,
			Burst:             cfg.Rate.Burst,
			UploadsPerMinute:  cfg.Rate.UploadLimit,
		},
		TrustedProxies: cfg.Security.TrustedProxies,
		EnableCSP:      cfg.Security.EnableCSP,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxUploadSize:  cfg.Attachments.MaxFileSize * 8,
		Location:       app.Location,
		ServiceName:    cfg.Tracing.ServiceName,
		Logger:         logger,
	})
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	go app.Service.StartPurgeScheduler(jobCtx, core.PurgeConfig{
		RetentionDays: cfg.Audit.RetentionDays,
		Interval:      cfg.Audit.PurgeInterval,
	})

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Wait for active uploads to complete (with timeout)
		if err := app.Service.WaitForUploads(shutdownCtx); err != nil {
			slog.Warn("uploads did not complete in time", "error", err)
		}

		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown", "error", err)
		}
	}()

	err = server.Start(cfg.Server.Addr(), cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		cancelJobs()
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
