package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vuminh/adsboard-backend/api/routes"
	"github.com/vuminh/adsboard-backend/internal/meta"
	"github.com/vuminh/adsboard-backend/internal/warehouse/performance"
	"github.com/vuminh/adsboard-backend/internal/warehouse/refresh"
	"github.com/vuminh/adsboard-backend/pkg/config"
	"github.com/vuminh/adsboard-backend/pkg/db"
	"github.com/vuminh/adsboard-backend/pkg/logger"
	"github.com/vuminh/adsboard-backend/pkg/metrics"
	"github.com/vuminh/adsboard-backend/pkg/migrate"
	"github.com/vuminh/adsboard-backend/pkg/redis"
	"github.com/vuminh/adsboard-backend/pkg/storage/r2"
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

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	var redisP redis.Pinger
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		redisP = redisClient
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured, listing cache disabled")
	}

	metaClient, err := meta.NewClient(cfg.Meta, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create graph client", err)
		os.Exit(1)
	}

	var offloader *r2.Client
	if cfg.R2.Enabled() {
		offloader, err = r2.New(context.Background(), cfg.R2, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create storage client", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "image storage not configured, keeping source urls")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	refreshMetrics := metrics.NewRefreshMetrics(registry)

	api := meta.NewRefreshAPI(metaClient, redisClient, cfg.Warehouse.CacheTTL, logg)
	orch := refresh.NewOrchestrator(dbClient.DB(), api, offloader, cfg.Warehouse, logg, refreshMetrics)
	refreshService := refresh.NewService(refresh.NewGuard(dbClient.DB()), orch, logg, refreshMetrics)
	performanceService := performance.NewService(dbClient.DB())

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
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisP, refreshService, performanceService, registry),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
