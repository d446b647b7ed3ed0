package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/vuminh/adsboard-backend/pkg/config"
	"github.com/vuminh/adsboard-backend/pkg/db"
	"github.com/vuminh/adsboard-backend/pkg/db/models"
	"github.com/vuminh/adsboard-backend/pkg/logger"
)

// schemaModels lists every table of the star schema plus the refresh-status
// guard row. Order matters only for readability; AutoMigrate is checked-first
// and never drops or narrows existing columns.
func schemaModels() []any {
	return []any{
		&models.DimAdAccount{},
		&models.DimCampaign{},
		&models.DimAdSet{},
		&models.DimAd{},
		&models.DimPlatform{},
		&models.DimPlacement{},
		&models.DimDate{},
		&models.DimFanpage{},
		&models.DimRegion{},
		&models.FactAdPerformance{},
		&models.FactAdPerformanceDemographic{},
		&models.FactAdPerformanceRegion{},
		&models.FactPageDaily{},
		&models.FactPost{},
		&models.WarehouseRefreshStatus{},
	}
}

// Run creates any missing warehouse tables and indexes on the provided
// connection. It is safe to call on every boot.
func Run(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db connection is required")
	}
	if err := conn.WithContext(ctx).AutoMigrate(schemaModels()...); err != nil {
		return fmt.Errorf("creating warehouse schema: %w", err)
	}
	return nil
}

// MaybeRunDev creates the schema automatically when the feature flag is on.
// Production deploys run cmd/migrate explicitly instead.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.DB.AutoMigrate {
		return nil
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "running schema auto-migration")

	if err := Run(ctx, client.DB()); err != nil {
		return err
	}

	logg.Info(ctx, "schema auto-migration completed")
	return nil
}
