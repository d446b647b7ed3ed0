package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vuminh/adsboard-backend/pkg/db/models"
)

// Guard serializes refreshes per warehouse through a durable status row.
// Acquisition is a compare-and-set UPDATE, so two processes sharing the
// database cannot both hold the same warehouse.
type Guard struct {
	conn *gorm.DB
	now  func() time.Time
}

func NewGuard(conn *gorm.DB) *Guard {
	return &Guard{conn: conn, now: time.Now}
}

// Status is the externally visible guard state.
type Status struct {
	Warehouse      string     `json:"warehouse"`
	Running        bool       `json:"running"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	ElapsedSeconds float64    `json:"elapsed_seconds,omitempty"`
}

// TryBegin attempts to move the warehouse into the running state. It
// returns false without error when another refresh already holds it.
func (g *Guard) TryBegin(ctx context.Context, warehouse string) (bool, error) {
	row := models.WarehouseRefreshStatus{Warehouse: warehouse}
	err := g.conn.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "warehouse"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return false, fmt.Errorf("ensuring guard row for %s: %w", warehouse, err)
	}

	started := g.now().UTC()
	res := g.conn.WithContext(ctx).
		Model(&models.WarehouseRefreshStatus{}).
		Where("warehouse = ? AND running = ?", warehouse, false).
		Updates(map[string]any{"running": true, "started_at": started})
	if res.Error != nil {
		return false, fmt.Errorf("acquiring guard for %s: %w", warehouse, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// End releases the warehouse unconditionally. Safe to call from a defer
// even when TryBegin lost the race, because releasing an already idle row
// is a no-op.
func (g *Guard) End(ctx context.Context, warehouse string) error {
	err := g.conn.WithContext(ctx).
		Model(&models.WarehouseRefreshStatus{}).
		Where("warehouse = ?", warehouse).
		Update("running", false).Error
	if err != nil {
		return fmt.Errorf("releasing guard for %s: %w", warehouse, err)
	}
	return nil
}

// Current reports the guard state; a warehouse never refreshed reads as
// idle.
func (g *Guard) Current(ctx context.Context, warehouse string) (Status, error) {
	var row models.WarehouseRefreshStatus
	err := g.conn.WithContext(ctx).
		Where("warehouse = ?", warehouse).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Status{Warehouse: warehouse}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("reading guard for %s: %w", warehouse, err)
	}

	status := Status{Warehouse: warehouse, Running: row.Running, StartedAt: row.StartedAt}
	if row.Running && row.StartedAt != nil {
		status.ElapsedSeconds = g.now().UTC().Sub(*row.StartedAt).Seconds()
	}
	return status, nil
}
