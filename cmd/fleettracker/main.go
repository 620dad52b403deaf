package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/toyfleet/fleet-tracker/internal/api"
	"github.com/toyfleet/fleet-tracker/internal/cache"
	"github.com/toyfleet/fleet-tracker/internal/config"
	"github.com/toyfleet/fleet-tracker/internal/gateway"
	"github.com/toyfleet/fleet-tracker/internal/inbound"
	"github.com/toyfleet/fleet-tracker/internal/repo"
	"github.com/toyfleet/fleet-tracker/internal/scheduler"
	"github.com/toyfleet/fleet-tracker/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := sql.Open("pgx", cfg.Database.PostgresURL)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	deviceRepo := repo.NewPostgresDeviceRepo(db)

	backends := buildBackends(cfg)
	dispatcher := service.NewDispatcher(backends, cfg.SMS.Command)
	stats := service.NewStats()
	poller := service.NewPoller(deviceRepo, dispatcher, stats)

	sched, err := scheduler.New(cfg.Scheduler.Interval, poller.RunOnce)
	if err != nil {
		slog.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}
	dispatcher.OnFleetHalt(sched.Halt)

	processor := inbound.NewProcessor(deviceRepo)
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		processor.WithCache(cache.NewRedisCache(rdb, cfg.Redis.TTL))
	}

	handler := api.NewHandler(deviceRepo, sched, dispatcher, stats, processor)

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: loggingMiddleware(api.Router(handler)),
	}

	slog.Info("fleet-tracker starting",
		"addr", cfg.Server.Address,
		"interval", cfg.Scheduler.Interval.String(),
		"gateways", dispatcher.Availability(),
		"redis", cfg.Redis.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
}

func buildBackends(cfg *config.Config) []gateway.Backend {
	g := cfg.Gateways
	return []gateway.Backend{
		gateway.NewCloudAPI(g.CloudAPI.APIKey, g.CloudAPI.BaseURL),
		gateway.NewMessagingService(g.MessagingService.AccessKey, g.MessagingService.Originator, g.MessagingService.BaseURL),
		gateway.NewBatch(g.Batch.ServicePlanID, g.Batch.APIToken, g.Batch.FromNumber, g.Batch.BaseURL),
		gateway.NewLocalBridge(g.LocalBridge.BaseURL, g.LocalBridge.Token),
		gateway.NewSerialModem(g.SerialModem.Port, g.SerialModem.BaudRate),
		gateway.NewDeviceBridge(g.DeviceBridge.ADBPath),
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
