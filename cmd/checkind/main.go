package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"

	"checkin-desk-backend/config"
	"checkin-desk-backend/internal/api"
	"checkin-desk-backend/internal/checkin"
	"checkin-desk-backend/internal/db"
	"checkin-desk-backend/internal/desk"
	"checkin-desk-backend/internal/gateway"
	"checkin-desk-backend/internal/notification"
	"checkin-desk-backend/internal/observability"
	"checkin-desk-backend/internal/remote"
	"checkin-desk-backend/internal/store"
)

func main() {
	// A missing .env is fine; deployments set the environment directly.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		boot := observability.NewLogger("info")
		boot.Fatal().Err(err).Str("path", configPath).Msg("failed to load configuration")
	}

	logger := observability.NewLogger(cfg.Log.Level)
	logger.Info().Str("path", configPath).Msg("configuration loaded")

	metrics := observability.NewMetrics()

	// The database always holds push subscriptions; in local mode it is
	// also the registration store.
	gormDB, err := db.Init(&cfg.Database, observability.Component(logger, "db"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}

	var gw gateway.Gateway
	switch cfg.Gateway.Mode {
	case config.GatewayModeRemote:
		if cfg.Gateway.Remote.URL == "" {
			logger.Fatal().Msg("gateway.remote.url is required in remote mode")
		}
		gw = remote.NewClient(cfg.Gateway.Remote, observability.Component(logger, "remote"))
		logger.Info().Str("url", cfg.Gateway.Remote.URL).Msg("using remote registration service")
	case config.GatewayModeLocal:
		st := store.NewGormStore(gormDB, cfg.Widget.SearchLimit)
		if path := os.Getenv("SEED_PATH"); path != "" {
			seed, err := store.LoadSeed(path)
			if err != nil {
				logger.Fatal().Err(err).Msg("failed to read seed file")
			}
			n, err := seed.Apply(context.Background(), st)
			if err != nil {
				logger.Fatal().Err(err).Msg("failed to apply seed")
			}
			logger.Info().Str("path", path).Int("registrations", n).Msg("seed applied")
		}
		gw = st
	default:
		logger.Fatal().Str("mode", cfg.Gateway.Mode).Msg("unknown gateway mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var webpushOptions *webpush.Options
	var pool *notification.WorkerPool
	if cfg.Push.Enabled {
		if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
			logger.Fatal().Msg("VAPID keys must be configured when push is enabled")
		}
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool = notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions, observability.Component(logger, "notification"))
		pool.Start(ctx)
	}

	deskLog := observability.Component(logger, "desk")
	registry := desk.NewRegistry(desk.Options{
		Gateway:       gw,
		CheckinStatus: cfg.Widget.CheckinStatus,
		PageSize:      cfg.Widget.PageSize,
		PollInterval:  cfg.Widget.CameraPollInterval,
		NativeTimeout: cfg.Widget.NativeCaptureTimeout,
		TTL:           cfg.Widget.DeskTTL,
		Logger:        deskLog,
		Recorder:      metrics,
		OnSummary: func(deskID string, s checkin.Summary) {
			deskLog.Info().Str("desk_id", deskID).Str("instance_id", s.InstanceID).
				Int("scan_count", s.ScanCount).Str("duration", s.Duration).Msg(s.Message())
			if pool == nil {
				return
			}
			pool.Dispatch(notification.SessionSummary{
				DeskID:     deskID,
				InstanceID: s.InstanceID,
				ScanCount:  s.ScanCount,
				Duration:   s.Duration,
				Message:    s.Message(),
				EndedAt:    s.EndedAt,
			})
		},
	})

	handler := api.NewHandler(api.Deps{
		Desks:   registry,
		Gateway: gw,
		DB:      gormDB,
		WebPush: webpushOptions,
		Widget:  cfg.Widget,
		Server:  cfg.Server,
		Logger:  observability.Component(logger, "api"),
	})
	router := api.NewRouter(handler, cfg.Server, metrics.Registry())
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server ListenAndServe")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info().Msg("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server Shutdown")
	}

	// Running sessions still report their summary before the workers stop.
	registry.Close()
	if pool != nil {
		pool.Drain(shutdownCtx)
	}
	cancel()

	logger.Info().Msg("server gracefully stopped")
}
