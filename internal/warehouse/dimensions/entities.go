package dimensions

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vuminh/adsboard-backend/internal/meta"
	"github.com/vuminh/adsboard-backend/pkg/db/models"
)

// graphTimeLayouts cover the timestamp shapes the source emits.
var graphTimeLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
	"2006-01-02",
}

func parseGraphTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range graphTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

func upsertAll[T any](ctx context.Context, conn *gorm.DB, keyColumn string, rows []T, updateColumns []string) error {
	if len(rows) == 0 {
		return nil
	}
	return conn.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: keyColumn}},
			DoUpdates: clause.AssignmentColumns(updateColumns),
		}).
		Create(&rows).Error
}

// UpsertAdAccounts writes the account dimension, overwriting names on
// conflict.
func UpsertAdAccounts(ctx context.Context, conn *gorm.DB, accounts []meta.AdAccount) error {
	rows := make([]models.DimAdAccount, 0, len(accounts))
	for _, acc := range accounts {
		rows = append(rows, models.DimAdAccount{AdAccountID: acc.ID, Name: acc.Name})
	}
	if err := upsertAll(ctx, conn, "ad_account_id", rows, []string{"name", "updated_at"}); err != nil {
		return fmt.Errorf("upserting ad accounts: %w", err)
	}
	return nil
}

func UpsertCampaigns(ctx context.Context, conn *gorm.DB, campaigns []meta.Campaign) error {
	rows := make([]models.DimCampaign, 0, len(campaigns))
	for _, c := range campaigns {
		rows = append(rows, models.DimCampaign{
			CampaignID:  c.ID,
			Name:        c.Name,
			Objective:   c.Objective,
			Status:      c.Status,
			CreatedTime: parseGraphTime(c.CreatedTime),
			StartTime:   parseGraphTime(c.StartTime),
			StopTime:    parseGraphTime(c.StopTime),
			AdAccountID: c.AccountID,
		})
	}
	columns := []string{"name", "objective", "status", "created_time", "start_time", "stop_time", "ad_account_id", "updated_at"}
	if err := upsertAll(ctx, conn, "campaign_id", rows, columns); err != nil {
		return fmt.Errorf("upserting campaigns: %w", err)
	}
	return nil
}

func UpsertAdSets(ctx context.Context, conn *gorm.DB, adsets []meta.AdSet) error {
	rows := make([]models.DimAdSet, 0, len(adsets))
	for _, as := range adsets {
		rows = append(rows, models.DimAdSet{
			AdSetID:          as.ID,
			Name:             as.Name,
			Status:           as.Status,
			OptimizationGoal: as.OptimizationGoal,
			StartTime:        parseGraphTime(as.StartTime),
			EndTime:          parseGraphTime(as.EndTime),
			CampaignID:       as.CampaignID,
			AdAccountID:      as.AccountID,
		})
	}
	columns := []string{"name", "status", "optimization_goal", "start_time", "end_time", "campaign_id", "ad_account_id", "updated_at"}
	if err := upsertAll(ctx, conn, "adset_id", rows, columns); err != nil {
		return fmt.Errorf("upserting adsets: %w", err)
	}
	return nil
}

func UpsertAds(ctx context.Context, conn *gorm.DB, ads []meta.Ad) error {
	rows := make([]models.DimAd, 0, len(ads))
	for _, ad := range ads {
		rows = append(rows, models.DimAd{
			AdID:        ad.ID,
			Name:        ad.Name,
			Status:      ad.Status,
			AdSetID:     ad.AdSetID,
			CampaignID:  ad.CampaignID,
			AdAccountID: ad.AccountID,
		})
	}
	columns := []string{"name", "status", "adset_id", "campaign_id", "ad_account_id", "updated_at"}
	if err := upsertAll(ctx, conn, "ad_id", rows, columns); err != nil {
		return fmt.Errorf("upserting ads: %w", err)
	}
	return nil
}

func UpsertFanpages(ctx context.Context, conn *gorm.DB, pages []meta.Page) error {
	rows := make([]models.DimFanpage, 0, len(pages))
	for _, pg := range pages {
		rows = append(rows, models.DimFanpage{
			PageID:      pg.ID,
			Name:        pg.Name,
			Category:    pg.Category,
			AccessToken: pg.AccessToken,
			FanCount:    pg.FanCount,
		})
	}
	columns := []string{"name", "category", "access_token", "fan_count", "updated_at"}
	if err := upsertAll(ctx, conn, "page_id", rows, columns); err != nil {
		return fmt.Errorf("upserting fanpages: %w", err)
	}
	return nil
}

// ApplyStatuses overwrites the status column of campaigns, ad sets and ads
// from the bulk enrichment map. Ids absent from the warehouse are ignored;
// the enrichment call can see entities the refresh window never touched.
func ApplyStatuses(ctx context.Context, conn *gorm.DB, statuses map[string]string) error {
	if len(statuses) == 0 {
		return nil
	}

	byStatus := map[string][]string{}
	for id, status := range statuses {
		byStatus[status] = append(byStatus[status], id)
	}

	for status, ids := range byStatus {
		for _, target := range []struct {
			model any
			idCol string
		}{
			{&models.DimCampaign{}, "campaign_id"},
			{&models.DimAdSet{}, "adset_id"},
			{&models.DimAd{}, "ad_id"},
		} {
			err := conn.WithContext(ctx).
				Model(target.model).
				Where(target.idCol+" IN ?", ids).
				Update("status", status).Error
			if err != nil {
				return fmt.Errorf("applying status %q: %w", status, err)
			}
		}
	}
	return nil
}
