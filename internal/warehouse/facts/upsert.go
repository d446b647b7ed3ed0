package facts

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vuminh/adsboard-backend/internal/meta"
	"github.com/vuminh/adsboard-backend/internal/warehouse/dimensions"
	"github.com/vuminh/adsboard-backend/pkg/db"
	"github.com/vuminh/adsboard-backend/pkg/db/models"
)

// Result counts the outcome of one fact upsert batch. Skipped rows failed
// referential validation; the batch itself still succeeds.
type Result struct {
	Upserted int
	Skipped  int
}

func (r Result) Add(other Result) Result {
	return Result{Upserted: r.Upserted + other.Upserted, Skipped: r.Skipped + other.Skipped}
}

var measureColumns = []string{
	"spend", "impressions", "clicks", "ctr", "cpm", "reach", "frequency",
	"messaging_started", "purchases", "purchase_value", "post_engagement",
	"link_clicks", "updated_at",
}

// validFactRow is the referential gate for one ad-level insight row: the
// full campaign/ad-set/ad lineage must be present, the ad must exist in the
// dimension, and the row must name the day it describes. Returns the
// resolved date key.
func validFactRow(row meta.InsightRow, knownAds map[string]bool) (int, bool) {
	if row.AdID == "" || row.AdSetID == "" || row.CampaignID == "" || !knownAds[row.AdID] {
		return 0, false
	}
	day, err := time.Parse("2006-01-02", row.DateStart)
	if err != nil {
		return 0, false
	}
	return models.DateKey(day), true
}

// knownAdIDs loads the set of ad ids the warehouse already holds, the
// referential gate for every ad-level fact row.
func knownAdIDs(ctx context.Context, conn *gorm.DB) (map[string]bool, error) {
	var ids []string
	if err := conn.WithContext(ctx).Model(&models.DimAd{}).Pluck("ad_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("loading ad dimension ids: %w", err)
	}
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	return known, nil
}

// UpsertAdPerformance writes platform+placement rows, resolving the two
// surrogate keys per row. Rows missing their campaign/ad-set/ad lineage or
// day, or referencing ads the dimension pass never captured, are counted and
// skipped, not failed.
func UpsertAdPerformance(ctx context.Context, conn *gorm.DB, resolver *dimensions.Resolver, insights []meta.InsightRow) (Result, error) {
	var res Result
	if len(insights) == 0 {
		return res, nil
	}

	known, err := knownAdIDs(ctx, conn)
	if err != nil {
		return res, err
	}

	rows := make([]models.FactAdPerformance, 0, len(insights))
	for _, row := range insights {
		dateKey, ok := validFactRow(row, known)
		if !ok {
			res.Skipped++
			continue
		}
		platformKey, err := resolver.Platform(ctx, row.PublisherPlatform)
		if err != nil {
			return res, err
		}
		placementKey, err := resolver.Placement(ctx, row.PlatformPosition)
		if err != nil {
			return res, err
		}
		rows = append(rows, models.FactAdPerformance{
			DateKey:      dateKey,
			AdID:         row.AdID,
			PlatformKey:  platformKey,
			PlacementKey: placementKey,
			AdSetID:      row.AdSetID,
			CampaignID:   row.CampaignID,
			AdAccountID:  row.AccountID,
			Measures:     MeasuresFromInsight(row),
		})
	}
	if len(rows) == 0 {
		return res, nil
	}

	err = db.WithTx(ctx, conn, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "date_key"}, {Name: "ad_id"}, {Name: "platform_key"}, {Name: "placement_key"},
			},
			DoUpdates: clause.AssignmentColumns(measureColumns),
		}).Create(&rows).Error
	})
	if err != nil {
		return res, fmt.Errorf("upserting ad performance: %w", err)
	}
	res.Upserted = len(rows)
	return res, nil
}

// UpsertAdPerformanceDemographic writes age+gender rows.
func UpsertAdPerformanceDemographic(ctx context.Context, conn *gorm.DB, insights []meta.InsightRow) (Result, error) {
	var res Result
	if len(insights) == 0 {
		return res, nil
	}

	known, err := knownAdIDs(ctx, conn)
	if err != nil {
		return res, err
	}

	rows := make([]models.FactAdPerformanceDemographic, 0, len(insights))
	for _, row := range insights {
		dateKey, ok := validFactRow(row, known)
		if !ok {
			res.Skipped++
			continue
		}
		gender := row.Gender
		if gender == "" {
			gender = "unknown"
		}
		age := row.Age
		if age == "" {
			age = "unknown"
		}
		rows = append(rows, models.FactAdPerformanceDemographic{
			DateKey:     dateKey,
			AdID:        row.AdID,
			Gender:      gender,
			Age:         age,
			AdSetID:     row.AdSetID,
			CampaignID:  row.CampaignID,
			AdAccountID: row.AccountID,
			Measures:    MeasuresFromInsight(row),
		})
	}
	if len(rows) == 0 {
		return res, nil
	}

	err = db.WithTx(ctx, conn, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "date_key"}, {Name: "ad_id"}, {Name: "gender"}, {Name: "age"},
			},
			DoUpdates: clause.AssignmentColumns(measureColumns),
		}).Create(&rows).Error
	})
	if err != nil {
		return res, fmt.Errorf("upserting demographic performance: %w", err)
	}
	res.Upserted = len(rows)
	return res, nil
}

// UpsertAdPerformanceRegion writes geographic rows.
func UpsertAdPerformanceRegion(ctx context.Context, conn *gorm.DB, resolver *dimensions.Resolver, insights []meta.InsightRow) (Result, error) {
	var res Result
	if len(insights) == 0 {
		return res, nil
	}

	known, err := knownAdIDs(ctx, conn)
	if err != nil {
		return res, err
	}

	rows := make([]models.FactAdPerformanceRegion, 0, len(insights))
	for _, row := range insights {
		dateKey, ok := validFactRow(row, known)
		if !ok {
			res.Skipped++
			continue
		}
		regionKey, err := resolver.Region(ctx, row.Region, row.Country)
		if err != nil {
			return res, err
		}
		rows = append(rows, models.FactAdPerformanceRegion{
			DateKey:     dateKey,
			AdID:        row.AdID,
			RegionKey:   regionKey,
			AdSetID:     row.AdSetID,
			CampaignID:  row.CampaignID,
			AdAccountID: row.AccountID,
			Measures:    MeasuresFromInsight(row),
		})
	}
	if len(rows) == 0 {
		return res, nil
	}

	err = db.WithTx(ctx, conn, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "date_key"}, {Name: "ad_id"}, {Name: "region_key"},
			},
			DoUpdates: clause.AssignmentColumns(measureColumns),
		}).Create(&rows).Error
	})
	if err != nil {
		return res, fmt.Errorf("upserting regional performance: %w", err)
	}
	res.Upserted = len(rows)
	return res, nil
}

// UpsertPageDaily writes one row per (day, page); re-runs overwrite.
func UpsertPageDaily(ctx context.Context, conn *gorm.DB, metrics []meta.PageDailyMetrics) (Result, error) {
	var res Result
	if len(metrics) == 0 {
		return res, nil
	}

	rows := make([]models.FactPageDaily, 0, len(metrics))
	for _, m := range metrics {
		if m.PageID == "" || m.Date.IsZero() {
			res.Skipped++
			continue
		}
		rows = append(rows, models.FactPageDaily{
			DateKey:     models.DateKey(m.Date),
			PageID:      m.PageID,
			FansTotal:   m.FansTotal,
			FollowsNew:  m.FollowsNew,
			Impressions: m.Impressions,
			Engagement:  m.Engagement,
			VideoViews:  m.VideoViews,
		})
	}
	if len(rows) == 0 {
		return res, nil
	}

	err := db.WithTx(ctx, conn, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "date_key"}, {Name: "page_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"fans_total", "follows_new", "impressions", "engagement", "video_views", "updated_at",
			}),
		}).Create(&rows).Error
	})
	if err != nil {
		return res, fmt.Errorf("upserting page daily: %w", err)
	}
	res.Upserted = len(rows)
	return res, nil
}

// UpsertPosts writes lifetime post rows keyed by post id; imageURLs maps a
// post id to its offloaded image location when the offload succeeded.
func UpsertPosts(ctx context.Context, conn *gorm.DB, posts []meta.Post, imageURLs map[string]string) (Result, error) {
	var res Result
	if len(posts) == 0 {
		return res, nil
	}

	rows := make([]models.FactPost, 0, len(posts))
	for _, p := range posts {
		if p.ID == "" {
			res.Skipped++
			continue
		}
		imageURL := p.PictureURL
		if offloaded, ok := imageURLs[p.ID]; ok && offloaded != "" {
			imageURL = offloaded
		}
		var created *time.Time
		if p.CreatedTime != "" {
			if t, err := time.Parse("2006-01-02T15:04:05-0700", p.CreatedTime); err == nil {
				utc := t.UTC()
				created = &utc
			}
		}
		rows = append(rows, models.FactPost{
			PostID:      p.ID,
			PageID:      p.PageID,
			CreatedTime: created,
			Message:     p.Message,
			Permalink:   p.Permalink,
			ImageURL:    imageURL,
			Impressions: p.Impressions,
			Reach:       p.Reach,
			Engagement:  p.Engagement,
			Clicks:      p.Clicks,
			Reactions:   p.Reactions,
			Comments:    p.Comments,
			Shares:      p.Shares,
		})
	}
	if len(rows) == 0 {
		return res, nil
	}

	err := db.WithTx(ctx, conn, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "post_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"page_id", "created_time", "message", "permalink", "image_url",
				"impressions", "reach", "engagement", "clicks", "reactions",
				"comments", "shares", "updated_at",
			}),
		}).Create(&rows).Error
	})
	if err != nil {
		return res, fmt.Errorf("upserting posts: %w", err)
	}
	res.Upserted = len(rows)
	return res, nil
}
