package meta

import "time"

// AdAccount is one row of /me/adaccounts.
type AdAccount struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Campaign mirrors the campaign fields the warehouse keeps.
type Campaign struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Objective   string `json:"objective"`
	Status      string `json:"status"`
	CreatedTime string `json:"created_time"`
	StartTime   string `json:"start_time"`
	StopTime    string `json:"stop_time"`
	AccountID   string `json:"account_id"`
}

type AdSet struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Status           string `json:"status"`
	OptimizationGoal string `json:"optimization_goal"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	CampaignID       string `json:"campaign_id"`
	AccountID        string `json:"account_id"`
}

type Ad struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	AdSetID    string `json:"adset_id"`
	CampaignID string `json:"campaign_id"`
	AccountID  string `json:"account_id"`
}

// ActionEntry is one element of the nested actions / action_values lists.
// Values arrive as strings ("3", "120.5") like every numeric Graph field.
type ActionEntry struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

// InsightRow is a raw insight record for any breakdown; only the fields
// matching the requested breakdown are populated.
type InsightRow struct {
	DateStart  string `json:"date_start"`
	DateStop   string `json:"date_stop"`
	AccountID  string `json:"account_id"`
	CampaignID string `json:"campaign_id"`
	AdSetID    string `json:"adset_id"`
	AdID       string `json:"ad_id"`

	Spend       string `json:"spend"`
	Impressions string `json:"impressions"`
	Clicks      string `json:"clicks"`
	CTR         string `json:"ctr"`
	CPM         string `json:"cpm"`
	Reach       string `json:"reach"`
	Frequency   string `json:"frequency"`

	PublisherPlatform string `json:"publisher_platform"`
	PlatformPosition  string `json:"platform_position"`
	Age               string `json:"age"`
	Gender            string `json:"gender"`
	Region            string `json:"region"`
	Country           string `json:"country"`

	Actions      []ActionEntry `json:"actions"`
	ActionValues []ActionEntry `json:"action_values"`
}

// Breakdown selects which insight grouping axis to request.
type Breakdown string

const (
	BreakdownPlatformPlacement Breakdown = "publisher_platform,platform_position"
	BreakdownDemographic       Breakdown = "age,gender"
	BreakdownRegion            Breakdown = "region,country"
)

// Page is one row of /me/accounts; the per-page token authorizes all
// follow-up insight calls for that page.
type Page struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	AccessToken string `json:"access_token"`
	FanCount    int64  `json:"fan_count"`
}

// PageDailyMetrics is the flattened day-level page insight set.
type PageDailyMetrics struct {
	PageID      string
	Date        time.Time
	FansTotal   int64
	FollowsNew  int64
	Impressions int64
	Engagement  int64
	VideoViews  int64
}

// Post carries a published post with its lifetime-cumulative insight values.
type Post struct {
	ID          string
	PageID      string
	Message     string
	CreatedTime string
	Permalink   string
	PictureURL  string
	Impressions int64
	Reach       int64
	Engagement  int64
	Clicks      int64
	Reactions   int64
	Comments    int64
	Shares      int64
}

// TimeSpec parameterizes a listing call by either a named relative preset or
// an explicit inclusive date pair. Exactly one form is honored: an explicit
// range wins when both are set.
type TimeSpec struct {
	Preset string
	Since  time.Time
	Until  time.Time
}

// Explicit reports whether a concrete date pair is set.
func (ts TimeSpec) Explicit() bool {
	return !ts.Since.IsZero() && !ts.Until.IsZero()
}

// RangeFor returns the concrete inclusive date boundaries, resolving presets
// against the provided anchor day.
func (ts TimeSpec) RangeFor(today time.Time) (time.Time, time.Time, error) {
	if ts.Explicit() {
		return ts.Since.Truncate(24 * time.Hour), ts.Until.Truncate(24 * time.Hour), nil
	}
	return ResolvePreset(ts.Preset, today)
}
