package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vuminh/adsboard-backend/internal/meta"
	"github.com/vuminh/adsboard-backend/internal/warehouse/refresh"
	"github.com/vuminh/adsboard-backend/pkg/config"
	"github.com/vuminh/adsboard-backend/pkg/db"
	"github.com/vuminh/adsboard-backend/pkg/logger"
	"github.com/vuminh/adsboard-backend/pkg/metrics"
	"github.com/vuminh/adsboard-backend/pkg/migrate"
	"github.com/vuminh/adsboard-backend/pkg/redis"
	"github.com/vuminh/adsboard-backend/pkg/storage/r2"
)

// The loader runs one refresh synchronously and exits, the shape cron and
// backfill jobs want. Warehouses run in the order given; a failed warehouse
// fails the process after the remaining ones are attempted.
func main() {
	logg := logger.New(logger.Options{ServiceName: "loader"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	warehouses := flag.String("warehouses", refresh.WarehouseAds+","+refresh.WarehouseFanpage, "comma-separated warehouses to refresh: ads,fanpage")
	preset := flag.String("date-preset", meta.PresetYesterday, "relative date window")
	since := flag.String("since", "", "window start YYYY-MM-DD (with -until, overrides -date-preset)")
	until := flag.String("until", "", "window end YYYY-MM-DD")
	flag.Parse()

	ts, err := timeSpecFromFlags(*preset, *since, *until)
	if err != nil {
		logg.Error(context.Background(), "invalid date flags", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "loader"

	logg = logger.New(logger.Options{
		ServiceName: "loader",
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
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	metaClient, err := meta.NewClient(cfg.Meta, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create graph client", err)
		os.Exit(1)
	}

	refreshMetrics := metrics.NewRefreshMetrics(prometheus.DefaultRegisterer)
	api := meta.NewRefreshAPI(metaClient, redisClient, cfg.Warehouse.CacheTTL, logg)

	orch := refresh.NewOrchestrator(dbClient.DB(), api, offloaderOrNil(cfg, logg), cfg.Warehouse, logg, refreshMetrics)
	service := refresh.NewService(refresh.NewGuard(dbClient.DB()), orch, logg, refreshMetrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	failed := false
	for _, warehouse := range splitWarehouses(*warehouses) {
		runCtx := logg.WithWarehouse(ctx, warehouse)
		logg.Info(runCtx, "starting refresh")
		if err := service.RunBlocking(runCtx, warehouse, ts); err != nil {
			if errors.Is(err, context.Canceled) {
				logg.Warn(runCtx, "refresh interrupted")
				os.Exit(1)
			}
			logg.Error(runCtx, "refresh failed", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func timeSpecFromFlags(preset, since, until string) (meta.TimeSpec, error) {
	if since == "" && until == "" {
		if _, _, err := meta.ResolvePreset(preset, time.Now()); err != nil {
			return meta.TimeSpec{}, err
		}
		return meta.TimeSpec{Preset: preset}, nil
	}
	if since == "" || until == "" {
		return meta.TimeSpec{}, errors.New("-since and -until must be provided together")
	}
	start, err := time.Parse("2006-01-02", since)
	if err != nil {
		return meta.TimeSpec{}, err
	}
	end, err := time.Parse("2006-01-02", until)
	if err != nil {
		return meta.TimeSpec{}, err
	}
	if end.Before(start) {
		return meta.TimeSpec{}, errors.New("-until must not precede -since")
	}
	return meta.TimeSpec{Since: start, Until: end}, nil
}

func splitWarehouses(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func offloaderOrNil(cfg *config.Config, logg *logger.Logger) *r2.Client {
	if !cfg.R2.Enabled() {
		return nil
	}
	client, err := r2.New(context.Background(), cfg.R2, logg)
	if err != nil {
		logg.Warn(context.Background(), "failed to create storage client, keeping source urls")
		return nil
	}
	return client
}
