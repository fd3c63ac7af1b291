package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/aquaflowhq/aquaflow-backend/api/routes"
	"github.com/aquaflowhq/aquaflow-backend/internal/cart"
	"github.com/aquaflowhq/aquaflow-backend/internal/engagement"
	"github.com/aquaflowhq/aquaflow-backend/internal/localstore"
	"github.com/aquaflowhq/aquaflow-backend/internal/notifications"
	"github.com/aquaflowhq/aquaflow-backend/internal/orders"
	"github.com/aquaflowhq/aquaflow-backend/internal/persistence"
	"github.com/aquaflowhq/aquaflow-backend/pkg/config"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
	"github.com/aquaflowhq/aquaflow-backend/pkg/metrics"
	"github.com/aquaflowhq/aquaflow-backend/pkg/migrate"
	"github.com/aquaflowhq/aquaflow-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	// The remote store is optional at boot. When it is unreachable the
	// persistence adapter serves the local tier and tags writes
	// pending_sync, so a down database must not stop the process.
	var remoteDB *gorm.DB
	dbClient, err := db.New(cfg.DB)
	if err != nil {
		logg.Warn(context.Background(), "remote store unreachable, starting in local-only mode")
	} else {
		remoteDB = dbClient.DB
		defer func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing database", err)
			}
		}()

		sqlDB, sqlErr := dbClient.DB.DB()
		if sqlErr != nil {
			logg.Error(context.Background(), "unwrapping sql handle", sqlErr)
			os.Exit(1)
		}
		if err := migrate.MaybeAutoRun(context.Background(), cfg, sqlDB, logg); err != nil {
			logg.Error(context.Background(), "failed to run migrations", err)
			os.Exit(1)
		}
	}

	localStore, err := localstore.Open(cfg.LocalStore.Path)
	if err != nil {
		logg.Error(context.Background(), "failed to open local store", err)
		os.Exit(1)
	}
	defer func() {
		if err := localStore.Close(); err != nil {
			logg.Error(context.Background(), "error closing local store", err)
		}
	}()

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	m := metrics.New(prometheus.DefaultRegisterer)

	adapter := persistence.NewAdapter(remoteDB, localStore, logg, m)
	notificationsService := notifications.NewService(adapter, logg)
	cartService := cart.NewService(cfg.Cart, localStore, logg, notificationsService)
	engagementManager := engagement.NewManager(cfg.Engagement, logg, m, cartService)
	ordersService := orders.NewService(cfg.Orders, orders.NewRepository(adapter), logg, m, notificationsService)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			adapter,
			redisClient,
			cartService,
			engagementManager,
			ordersService,
			notificationsService,
		),
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrs := make(chan error, 1)
	go func() {
		serverErrs <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-shutdown:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			_ = server.Close()
		}

		ordersService.Close()
		engagementManager.Close()
	}
}
