package dimensions

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vuminh/adsboard-backend/pkg/db/models"
)

// EnsureDates backfills dim_date for every day in the list. Existing rows
// are left untouched; the calendar attributes of a date never change.
func EnsureDates(ctx context.Context, conn *gorm.DB, days []time.Time) error {
	if len(days) == 0 {
		return nil
	}

	rows := make([]models.DimDate, 0, len(days))
	seen := map[int]struct{}{}
	for _, day := range days {
		row := models.NewDimDate(day)
		if _, dup := seen[row.DateKey]; dup {
			continue
		}
		seen[row.DateKey] = struct{}{}
		rows = append(rows, row)
	}

	err := conn.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "date_key"}}, DoNothing: true}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("backfilling dim_date: %w", err)
	}
	return nil
}
