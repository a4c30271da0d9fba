package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"attendconsole/internal/attendance"
	"attendconsole/internal/config"
	"attendconsole/internal/dashboard"
	"attendconsole/internal/observability"
	"attendconsole/internal/queue"
	"attendconsole/internal/recognition"
	"attendconsole/internal/store"
)

const (
	notificationsName = "console.notifications"
	controlName       = "console.control"
)

// Worker runs the dashboard pollers and publishes notifications for the API
// to fan out. It only makes sense with a shared queue backend.
func main() {
	cfg := config.Load()
	slog.SetDefault(observability.SetupLogger(cfg.LogLevel, cfg.LogFormat))

	if err := run(cfg); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.App) error {
	if cfg.QueueBackend == "" || cfg.QueueBackend == "memory" {
		return fmt.Errorf("worker needs QUEUE_BACKEND=redis or nats; with memory the api runs the pollers itself")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		if db == nil {
			return err
		}
		slog.Warn("db not reachable, stats will retry on each tick", "error", err)
	}
	defer db.Close()

	rdb := store.NewRedis(cfg.RedisAddr)
	defer rdb.Close()

	notifications, closeNotifications, err := queue.Open(cfg.QueueBackend, rdb.Client, cfg.NATSURL, notificationsName)
	if err != nil {
		return err
	}
	defer closeNotifications()

	control, closeControl, err := queue.Open(cfg.QueueBackend, rdb.Client, cfg.NATSURL, controlName)
	if err != nil {
		return err
	}
	defer closeControl()

	att := attendance.NewService(attendance.NewRepository(db.Client), cfg.Location())
	rec := recognition.New(cfg.RecognitionURL)

	if err := rec.Health(ctx); err != nil {
		slog.Warn("recognition service not available, polling anyway", "error", err)
	} else {
		slog.Info("recognition service connected", "url", cfg.RecognitionURL)
	}

	dash := dashboard.New(att, rec, notifications, dashboard.Options{
		StatsEvery:       cfg.StatsInterval,
		RecognitionEvery: cfg.RecognitionPoll,
	})

	commands, err := control.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume control messages: %w", err)
	}
	go dash.Listen(ctx, commands)

	slog.Info("worker started", "queue", cfg.QueueBackend)
	dash.Run(ctx)
	slog.Info("worker stopped")
	return nil
}
