package dimensions

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vuminh/adsboard-backend/pkg/db/models"
)

// Resolver maps natural dimension names to surrogate keys. Lookups fill an
// in-process map first; a miss inserts the row with ON CONFLICT DO NOTHING
// and re-reads, so concurrent writers converge on the same key.
type Resolver struct {
	conn *gorm.DB

	platforms  map[string]int
	placements map[string]int
	regions    map[string]int
}

func NewResolver(conn *gorm.DB) *Resolver {
	return &Resolver{
		conn:       conn,
		platforms:  map[string]int{},
		placements: map[string]int{},
		regions:    map[string]int{},
	}
}

// Platform returns the surrogate key for a publisher platform name,
// creating the dimension row on first sight.
func (r *Resolver) Platform(ctx context.Context, name string) (int, error) {
	if name == "" {
		name = "unknown"
	}
	if key, ok := r.platforms[name]; ok {
		return key, nil
	}

	row := models.DimPlatform{Name: name}
	res := r.conn.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return 0, fmt.Errorf("creating platform %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		// lost the insert race or row pre-existed, read it back
		if err := r.conn.WithContext(ctx).Where("name = ?", name).First(&row).Error; err != nil {
			return 0, fmt.Errorf("reading platform %q: %w", name, err)
		}
	}

	r.platforms[name] = row.PlatformKey
	return row.PlatformKey, nil
}

// Placement returns the surrogate key for a platform position name.
func (r *Resolver) Placement(ctx context.Context, name string) (int, error) {
	if name == "" {
		name = "unknown"
	}
	if key, ok := r.placements[name]; ok {
		return key, nil
	}

	row := models.DimPlacement{Name: name}
	res := r.conn.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return 0, fmt.Errorf("creating placement %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		if err := r.conn.WithContext(ctx).Where("name = ?", name).First(&row).Error; err != nil {
			return 0, fmt.Errorf("reading placement %q: %w", name, err)
		}
	}

	r.placements[name] = row.PlacementKey
	return row.PlacementKey, nil
}

// Region returns the surrogate key for a region, storing the country code
// alongside on first creation.
func (r *Resolver) Region(ctx context.Context, name, countryCode string) (int, error) {
	if name == "" {
		name = "unknown"
	}
	if key, ok := r.regions[name]; ok {
		return key, nil
	}

	row := models.DimRegion{Name: name, CountryCode: countryCode}
	res := r.conn.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return 0, fmt.Errorf("creating region %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		if err := r.conn.WithContext(ctx).Where("name = ?", name).First(&row).Error; err != nil {
			return 0, fmt.Errorf("reading region %q: %w", name, err)
		}
	}

	r.regions[name] = row.RegionKey
	return row.RegionKey, nil
}
