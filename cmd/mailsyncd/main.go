package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/adharshSciPy/justyta-mail/internal/api"
	"github.com/adharshSciPy/justyta-mail/internal/config"
	"github.com/adharshSciPy/justyta-mail/internal/database"
	"github.com/adharshSciPy/justyta-mail/internal/email"
	"github.com/adharshSciPy/justyta-mail/internal/parser"
	"github.com/adharshSciPy/justyta-mail/internal/queue"
	"github.com/adharshSciPy/justyta-mail/internal/scheduler"
	"github.com/adharshSciPy/justyta-mail/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting mail pipeline")

	// Connect to database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations completed")

	// Create the job queue and requeue anything a crash left behind
	q := queue.New(db, logger, queue.Options{
		PollInterval: cfg.QueuePollInterval,
		RetryDelay:   cfg.QueueRetryDelay,
		MaxAttempts:  cfg.QueueMaxAttempts,
	})
	if _, err := q.RecoverActive(ctx); err != nil {
		logger.Error("failed to recover interrupted jobs", "error", err)
		os.Exit(1)
	}

	// Create workers
	htmlParser := parser.NewHTMLParser()
	syncWorker := worker.NewSyncWorker(db, dialMailbox(logger), htmlParser, cfg.SessionTimeout, logger)
	sendWorker := worker.NewSendWorker(db, dialSender(logger), htmlParser, cfg.SessionTimeout, logger)

	syncPool := queue.NewPool(q, queue.SyncMail, cfg.SyncWorkers, syncWorker.Handle, logger)
	sendPool := queue.NewPool(q, queue.SendMail, cfg.SendWorkers, sendWorker.Handle, logger)

	// Create the scheduler and the HTTP API
	sched := scheduler.New(db, q, cfg.SyncInterval, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(db, q, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		logger.Info("received shutdown signal", "signal", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		syncPool.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		sendPool.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	logger.Info("http api listening", "addr", cfg.HTTPAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		cancel()
	}

	wg.Wait()
	logger.Info("mail pipeline stopped")
}

// dialMailbox adapts the IMAP client to the worker's dialer seam.
func dialMailbox(logger *slog.Logger) email.MailboxDialer {
	return func(ctx context.Context, ep email.Endpoint) (email.Mailbox, error) {
		return email.DialIMAP(ctx, ep, logger)
	}
}

// dialSender adapts the SMTP client to the worker's dialer seam.
func dialSender(logger *slog.Logger) email.SenderDialer {
	return func(ctx context.Context, ep email.Endpoint) (email.Sender, error) {
		return email.DialSMTP(ctx, ep, logger)
	}
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
			NoColor:    false,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
