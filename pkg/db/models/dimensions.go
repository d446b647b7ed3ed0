package models

import (
	"time"
)

// DimAdAccount is the top-level dimension; the Meta account id ("act_...")
// is the natural primary key.
type DimAdAccount struct {
	AdAccountID string    `gorm:"column:ad_account_id;primaryKey"`
	Name        string    `gorm:"column:name"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (DimAdAccount) TableName() string { return "dim_ad_account" }

// DimCampaign holds campaign descriptors. Status reflects the last
// enrichment pass, not necessarily the live platform state.
type DimCampaign struct {
	CampaignID  string     `gorm:"column:campaign_id;primaryKey"`
	Name        string     `gorm:"column:name"`
	Objective   string     `gorm:"column:objective"`
	Status      string     `gorm:"column:status"`
	CreatedTime *time.Time `gorm:"column:created_time"`
	StartTime   *time.Time `gorm:"column:start_time"`
	StopTime    *time.Time `gorm:"column:stop_time"`
	AdAccountID string     `gorm:"column:ad_account_id;index"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (DimCampaign) TableName() string { return "dim_campaign" }

type DimAdSet struct {
	AdSetID          string     `gorm:"column:adset_id;primaryKey"`
	Name             string     `gorm:"column:name"`
	Status           string     `gorm:"column:status"`
	OptimizationGoal string     `gorm:"column:optimization_goal"`
	StartTime        *time.Time `gorm:"column:start_time"`
	EndTime          *time.Time `gorm:"column:end_time"`
	CampaignID       string     `gorm:"column:campaign_id;index"`
	AdAccountID      string     `gorm:"column:ad_account_id;index"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (DimAdSet) TableName() string { return "dim_adset" }

type DimAd struct {
	AdID        string    `gorm:"column:ad_id;primaryKey"`
	Name        string    `gorm:"column:name"`
	Status      string    `gorm:"column:status"`
	AdSetID     string    `gorm:"column:adset_id;index"`
	CampaignID  string    `gorm:"column:campaign_id;index"`
	AdAccountID string    `gorm:"column:ad_account_id;index"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (DimAd) TableName() string { return "dim_ad" }

// DimPlatform is a lazily discovered enumeration ("facebook", "instagram",
// ...). The surrogate key exists because insight rows join on it heavily.
type DimPlatform struct {
	PlatformKey int       `gorm:"column:platform_key;primaryKey;autoIncrement"`
	Name        string    `gorm:"column:name;uniqueIndex"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (DimPlatform) TableName() string { return "dim_platform" }

type DimPlacement struct {
	PlacementKey int       `gorm:"column:placement_key;primaryKey;autoIncrement"`
	Name         string    `gorm:"column:name;uniqueIndex"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (DimPlacement) TableName() string { return "dim_placement" }

// DimDate keys facts by an integer YYYYMMDD so range scans stay cheap.
type DimDate struct {
	DateKey  int       `gorm:"column:date_key;primaryKey"`
	FullDate time.Time `gorm:"column:full_date"`
	Day      int       `gorm:"column:day"`
	Month    int       `gorm:"column:month"`
	Year     int       `gorm:"column:year"`
	Quarter  int       `gorm:"column:quarter"`
}

func (DimDate) TableName() string { return "dim_date" }

// NewDimDate decomposes a calendar date into its dim_date row.
func NewDimDate(day time.Time) DimDate {
	day = day.UTC().Truncate(24 * time.Hour)
	return DimDate{
		DateKey:  DateKey(day),
		FullDate: day,
		Day:      day.Day(),
		Month:    int(day.Month()),
		Year:     day.Year(),
		Quarter:  (int(day.Month())-1)/3 + 1,
	}
}

// DateKey encodes a date as YYYYMMDD.
func DateKey(day time.Time) int {
	return day.Year()*10000 + int(day.Month())*100 + day.Day()
}

// DimFanpage stores a page and the per-page access token required for its
// insights calls. The token rotates when Meta expires it mid-run.
type DimFanpage struct {
	PageID      string    `gorm:"column:page_id;primaryKey"`
	Name        string    `gorm:"column:name"`
	Category    string    `gorm:"column:category"`
	AccessToken string    `gorm:"column:access_token"`
	FanCount    int64     `gorm:"column:fan_count"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (DimFanpage) TableName() string { return "dim_fanpage" }

type DimRegion struct {
	RegionKey   int       `gorm:"column:region_key;primaryKey;autoIncrement"`
	Name        string    `gorm:"column:name;uniqueIndex"`
	CountryCode string    `gorm:"column:country_code"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (DimRegion) TableName() string { return "dim_region" }
