package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"attendconsole/internal/api"
	"attendconsole/internal/api/handlers"
	"attendconsole/internal/api/ws"
	"attendconsole/internal/attendance"
	"attendconsole/internal/auth"
	"attendconsole/internal/cloudinary"
	"attendconsole/internal/config"
	"attendconsole/internal/dashboard"
	"attendconsole/internal/export"
	"attendconsole/internal/httpmiddleware"
	"attendconsole/internal/inflight"
	"attendconsole/internal/observability"
	"attendconsole/internal/queue"
	"attendconsole/internal/recognition"
	"attendconsole/internal/registration"
	"attendconsole/internal/store"
)

const (
	notificationsName = "console.notifications"
	controlName       = "console.control"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(observability.SetupLogger(cfg.LogLevel, cfg.LogFormat))

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		slog.Error("api failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		if db == nil {
			return err
		}
		slog.Warn("db not reachable", "error", err)
	} else if err := db.Migrate(ctx); err != nil {
		slog.Warn("schema migration failed", "error", err)
	}
	defer db.Close()

	rdb := store.NewRedis(cfg.RedisAddr)
	defer rdb.Close()

	notifications, closeNotifications, err := queue.Open(cfg.QueueBackend, rdb.Client, cfg.NATSURL, notificationsName)
	if err != nil {
		return err
	}
	defer closeNotifications()

	// with a shared backend the worker owns the pollers and listens for control messages
	inProcess := cfg.QueueBackend == "" || cfg.QueueBackend == "memory"
	var control dashboard.Publisher
	if !inProcess {
		q, closeControl, err := queue.Open(cfg.QueueBackend, rdb.Client, cfg.NATSURL, controlName)
		if err != nil {
			return err
		}
		defer closeControl()
		control = q
	}

	loc := cfg.Location()
	repo := attendance.NewRepository(db.Client)
	att := attendance.NewService(repo, loc)
	rec := recognition.New(cfg.RecognitionURL)

	var sheets export.Sheets
	if cfg.SheetsExportURL != "" {
		sheets = export.NewSheetsClient(cfg.SheetsExportURL)
	}
	exporter := export.NewService(att, sheets, loc)

	host, hostCheck, err := imageHost(ctx, cfg)
	if err != nil {
		return err
	}
	registrar := registration.NewService(repo, host)

	var guard inflight.Guard = inflight.NewMemory()
	if cfg.GuardBackend == "redis" {
		guard = inflight.NewRedis(rdb.Client, cfg.GuardTTL)
	}

	dash := dashboard.New(att, rec, notifications, dashboard.Options{
		StatsEvery:       cfg.StatsInterval,
		RecognitionEvery: cfg.RecognitionPoll,
		Control:          control,
	})
	if inProcess {
		go dash.Run(ctx)
	}

	hub := ws.NewHub(cfg.CORSOrigins)
	go hub.Run(ctx)
	messages, err := notifications.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume notifications: %w", err)
	}
	if !inProcess {
		// the worker's notifications keep this controller's state current
		messages = dash.Follow(ctx, messages)
		if err := dash.SetDate(ctx, ""); err != nil {
			return err
		}
	}
	go hub.Pump(ctx, messages)

	admin, err := adminAccount(cfg)
	if err != nil {
		return err
	}

	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	go pruneLimiter(ctx, limiter)

	checks := []handlers.Check{
		{Name: "postgres", Ping: db.Ping},
		{Name: "recognition", Ping: rec.Health},
	}
	if cfg.QueueBackend == "redis" || cfg.GuardBackend == "redis" {
		checks = append(checks, handlers.Check{Name: "redis", Ping: rdb.Ping})
	}
	if nq, ok := notifications.(*queue.NATSQueue); ok {
		checks = append(checks, handlers.Check{Name: "nats", Ping: nq.Ping})
	}
	if hostCheck != nil {
		checks = append(checks, *hostCheck)
	}

	r := api.NewRouter(api.RouterConfig{
		Tokens:       auth.NewTokens(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL),
		Admin:        admin,
		Attendance:   att,
		Exporter:     exporter,
		Registrar:    registrar,
		Recognition:  rec,
		Dashboard:    dash,
		Guard:        guard,
		Hub:          hub,
		Limiter:      limiter,
		Checks:       checks,
		AllowOrigins: cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second, // spreadsheet exports wait on the import endpoint
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "port", cfg.HTTPPort, "queue", cfg.QueueBackend, "image_host", cfg.ImageHost)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server forced shutdown", "error", err)
	}
	slog.Info("server exited")
	return nil
}

func imageHost(ctx context.Context, cfg config.App) (registration.ImageHost, *handlers.Check, error) {
	switch cfg.ImageHost {
	case "minio":
		mc, err := store.NewMinIOStore(store.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
			PublicURL: cfg.MinIOPublicURL,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := mc.EnsureBucket(ctx); err != nil {
			slog.Warn("minio bucket not ready", "bucket", cfg.MinIOBucket, "error", err)
		}
		return registration.MinIOHost{Store: mc}, &handlers.Check{Name: "minio", Ping: mc.Ping}, nil
	case "cloudinary":
		if cfg.CloudinaryCloudName == "" {
			slog.Warn("cloudinary not configured (CLOUDINARY_CLOUD_NAME not set); registrations will fail")
		}
		client := cloudinary.New(cloudinary.Config{
			CloudName:    cfg.CloudinaryCloudName,
			UploadPreset: cfg.CloudinaryUploadPreset,
			APIKey:       cfg.CloudinaryAPIKey,
			APISecret:    cfg.CloudinaryAPISecret,
			Folder:       cfg.CloudinaryFolder,
			BaseURL:      cfg.CloudinaryBaseURL,
		})
		if !client.CanDelete() {
			slog.Warn("cloudinary api key/secret not set; photos of failed registrations cannot be removed")
		}
		return registration.CloudinaryHost{Client: client}, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown image host %q", cfg.ImageHost)
}

// adminAccount uses ADMIN_PASSWORD_HASH. In dev without a hash a one-off
// password is generated and logged.
func adminAccount(cfg config.App) (auth.Admin, error) {
	admin := auth.Admin{Username: cfg.AdminUsername, PasswordHash: []byte(cfg.AdminPasswordHash)}
	if cfg.AdminPasswordHash != "" || cfg.Env != "dev" {
		if cfg.AdminPasswordHash == "" {
			slog.Warn("ADMIN_PASSWORD_HASH not set; admin login disabled")
		}
		return admin, nil
	}

	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return admin, err
	}
	password := hex.EncodeToString(buf)
	hash, err := auth.HashPassword(password)
	if err != nil {
		return admin, err
	}
	admin.PasswordHash = []byte(hash)
	slog.Warn("generated dev admin password", "username", admin.Username, "password", password)
	return admin, nil
}

func pruneLimiter(ctx context.Context, l *httpmiddleware.TokenBucket) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Prune(30 * time.Minute); n > 0 {
				slog.Debug("pruned rate limit buckets", "count", n)
			}
		}
	}
}
