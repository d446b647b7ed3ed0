package models

import (
	"time"
)

// FactAdPerformance is the platform+placement breakdown. One row per
// (date, ad, platform, placement); re-upserts overwrite every measure.
//
// CTR is the per-row value reported by the source. Aggregation reads must
// recompute sum(clicks)/sum(impressions) instead of averaging this column.
type FactAdPerformance struct {
	PerformanceID int64  `gorm:"column:performance_id;primaryKey;autoIncrement"`
	DateKey       int    `gorm:"column:date_key;uniqueIndex:ux_fact_ad_perf,priority:1"`
	AdID          string `gorm:"column:ad_id;uniqueIndex:ux_fact_ad_perf,priority:2"`
	PlatformKey   int    `gorm:"column:platform_key;uniqueIndex:ux_fact_ad_perf,priority:3"`
	PlacementKey  int    `gorm:"column:placement_key;uniqueIndex:ux_fact_ad_perf,priority:4"`
	AdSetID       string `gorm:"column:adset_id;index"`
	CampaignID    string `gorm:"column:campaign_id;index"`
	AdAccountID   string `gorm:"column:ad_account_id;index"`

	Measures
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (FactAdPerformance) TableName() string { return "fact_ad_performance" }

// FactAdPerformanceDemographic is the age+gender breakdown.
type FactAdPerformanceDemographic struct {
	PerformanceID int64  `gorm:"column:performance_id;primaryKey;autoIncrement"`
	DateKey       int    `gorm:"column:date_key;uniqueIndex:ux_fact_ad_perf_demo,priority:1"`
	AdID          string `gorm:"column:ad_id;uniqueIndex:ux_fact_ad_perf_demo,priority:2"`
	Gender        string `gorm:"column:gender;uniqueIndex:ux_fact_ad_perf_demo,priority:3"`
	Age           string `gorm:"column:age;uniqueIndex:ux_fact_ad_perf_demo,priority:4"`
	AdSetID       string `gorm:"column:adset_id;index"`
	CampaignID    string `gorm:"column:campaign_id;index"`
	AdAccountID   string `gorm:"column:ad_account_id;index"`

	Measures
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (FactAdPerformanceDemographic) TableName() string { return "fact_ad_performance_demographic" }

// FactAdPerformanceRegion is the geographic breakdown.
type FactAdPerformanceRegion struct {
	PerformanceID int64  `gorm:"column:performance_id;primaryKey;autoIncrement"`
	DateKey       int    `gorm:"column:date_key;uniqueIndex:ux_fact_ad_perf_region,priority:1"`
	AdID          string `gorm:"column:ad_id;uniqueIndex:ux_fact_ad_perf_region,priority:2"`
	RegionKey     int    `gorm:"column:region_key;uniqueIndex:ux_fact_ad_perf_region,priority:3"`
	AdSetID       string `gorm:"column:adset_id;index"`
	CampaignID    string `gorm:"column:campaign_id;index"`
	AdAccountID   string `gorm:"column:ad_account_id;index"`

	Measures
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (FactAdPerformanceRegion) TableName() string { return "fact_ad_performance_region" }

// Measures are the flat numeric columns shared by the ad fact tables.
// The conversion counters are decoded from the nested actions payload.
type Measures struct {
	Spend            float64 `gorm:"column:spend"`
	Impressions      int64   `gorm:"column:impressions"`
	Clicks           int64   `gorm:"column:clicks"`
	CTR              float64 `gorm:"column:ctr"`
	CPM              float64 `gorm:"column:cpm"`
	Reach            int64   `gorm:"column:reach"`
	Frequency        float64 `gorm:"column:frequency"`
	MessagingStarted int64   `gorm:"column:messaging_started"`
	Purchases        int64   `gorm:"column:purchases"`
	PurchaseValue    float64 `gorm:"column:purchase_value"`
	PostEngagement   int64   `gorm:"column:post_engagement"`
	LinkClicks       int64   `gorm:"column:link_clicks"`
}

// FactPageDaily holds per-day page deltas plus the lifetime fan total as
// observed on that day.
type FactPageDaily struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	DateKey     int       `gorm:"column:date_key;uniqueIndex:ux_fact_page_daily,priority:1"`
	PageID      string    `gorm:"column:page_id;uniqueIndex:ux_fact_page_daily,priority:2"`
	FansTotal   int64     `gorm:"column:fans_total"`
	FollowsNew  int64     `gorm:"column:follows_new"`
	Impressions int64     `gorm:"column:impressions"`
	Engagement  int64     `gorm:"column:engagement"`
	VideoViews  int64     `gorm:"column:video_views"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (FactPageDaily) TableName() string { return "fact_page_daily" }

// FactPost carries lifetime-cumulative post metrics; the source reports
// running totals, so re-upserts overwrite rather than add.
type FactPost struct {
	PostID      string     `gorm:"column:post_id;primaryKey"`
	PageID      string     `gorm:"column:page_id;index"`
	CreatedTime *time.Time `gorm:"column:created_time"`
	Message     string     `gorm:"column:message"`
	Permalink   string     `gorm:"column:permalink"`
	ImageURL    string     `gorm:"column:image_url"`
	Impressions int64      `gorm:"column:impressions"`
	Reach       int64      `gorm:"column:reach"`
	Engagement  int64      `gorm:"column:engagement"`
	Clicks      int64      `gorm:"column:clicks"`
	Reactions   int64      `gorm:"column:reactions"`
	Comments    int64      `gorm:"column:comments"`
	Shares      int64      `gorm:"column:shares"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (FactPost) TableName() string { return "fact_post" }

// WarehouseRefreshStatus is the durable concurrency-guard row, one per
// warehouse. Transitions go through a compare-and-set UPDATE so two
// processes cannot both enter Running.
type WarehouseRefreshStatus struct {
	Warehouse string     `gorm:"column:warehouse;primaryKey"`
	Running   bool       `gorm:"column:running;not null;default:false"`
	StartedAt *time.Time `gorm:"column:started_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (WarehouseRefreshStatus) TableName() string { return "warehouse_refresh_status" }
