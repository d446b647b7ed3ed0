package performance

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vuminh/adsboard-backend/pkg/db/models"
	pkgerrors "github.com/vuminh/adsboard-backend/pkg/errors"
)

// Grouping axes the summary endpoint accepts.
const (
	GroupByCampaign = "campaign"
	GroupByAccount  = "account"
	GroupByPlatform = "platform"
	GroupByDate     = "date"
)

// Query scopes one aggregation read. The date range is inclusive.
type Query struct {
	Since   time.Time
	Until   time.Time
	GroupBy string
}

// Row is one aggregated bucket. CTR and CPM are recomputed from the summed
// counters; averaging the stored per-row ratios would weight sparse
// placements the same as dominant ones.
type Row struct {
	GroupID          string  `json:"group_id"`
	GroupLabel       string  `json:"group_label"`
	Spend            float64 `json:"spend"`
	Impressions      int64   `json:"impressions"`
	Clicks           int64   `json:"clicks"`
	CTR              float64 `json:"ctr"`
	CPM              float64 `json:"cpm"`
	Reach            int64   `json:"reach"`
	Purchases        int64   `json:"purchases"`
	PurchaseValue    float64 `json:"purchase_value"`
	MessagingStarted int64   `json:"messaging_started"`
	PostEngagement   int64   `json:"post_engagement"`
	LinkClicks       int64   `json:"link_clicks"`
}

// Service answers dashboard aggregation reads over the ad fact table.
type Service struct {
	conn *gorm.DB
}

func NewService(conn *gorm.DB) *Service {
	return &Service{conn: conn}
}

type grouping struct {
	idExpr    string
	labelExpr string
	join      string
}

var groupings = map[string]grouping{
	GroupByCampaign: {
		idExpr:    "f.campaign_id",
		labelExpr: "COALESCE(MAX(dc.name), f.campaign_id)",
		join:      "LEFT JOIN dim_campaign dc ON dc.campaign_id = f.campaign_id",
	},
	GroupByAccount: {
		idExpr:    "f.ad_account_id",
		labelExpr: "COALESCE(MAX(da.name), f.ad_account_id)",
		join:      "LEFT JOIN dim_ad_account da ON da.ad_account_id = f.ad_account_id",
	},
	GroupByPlatform: {
		idExpr:    "CAST(f.platform_key AS TEXT)",
		labelExpr: "COALESCE(MAX(dp.name), 'unknown')",
		join:      "LEFT JOIN dim_platform dp ON dp.platform_key = f.platform_key",
	},
	GroupByDate: {
		idExpr:    "CAST(f.date_key AS TEXT)",
		labelExpr: "CAST(f.date_key AS TEXT)",
	},
}

type aggregate struct {
	GroupID          string
	GroupLabel       string
	Spend            float64
	Impressions      int64
	Clicks           int64
	Reach            int64
	Purchases        int64
	PurchaseValue    float64
	MessagingStarted int64
	PostEngagement   int64
	LinkClicks       int64
}

// Summary aggregates fact_ad_performance over the query window.
func (s *Service) Summary(ctx context.Context, q Query) ([]Row, error) {
	g, ok := groupings[q.GroupBy]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown group_by %q", q.GroupBy))
	}
	if q.Since.IsZero() || q.Until.IsZero() || q.Until.Before(q.Since) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid date range is required")
	}

	query := fmt.Sprintf(`
		SELECT
			%s AS group_id,
			%s AS group_label,
			SUM(f.spend) AS spend,
			SUM(f.impressions) AS impressions,
			SUM(f.clicks) AS clicks,
			SUM(f.reach) AS reach,
			SUM(f.purchases) AS purchases,
			SUM(f.purchase_value) AS purchase_value,
			SUM(f.messaging_started) AS messaging_started,
			SUM(f.post_engagement) AS post_engagement,
			SUM(f.link_clicks) AS link_clicks
		FROM fact_ad_performance f
		%s
		WHERE f.date_key BETWEEN ? AND ?
		GROUP BY %s
		ORDER BY spend DESC`,
		g.idExpr, g.labelExpr, g.join, g.idExpr)

	var aggs []aggregate
	err := s.conn.WithContext(ctx).
		Raw(query, models.DateKey(q.Since), models.DateKey(q.Until)).
		Scan(&aggs).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregating performance")
	}

	rows := make([]Row, 0, len(aggs))
	for _, a := range aggs {
		row := Row{
			GroupID:          a.GroupID,
			GroupLabel:       a.GroupLabel,
			Spend:            a.Spend,
			Impressions:      a.Impressions,
			Clicks:           a.Clicks,
			Reach:            a.Reach,
			Purchases:        a.Purchases,
			PurchaseValue:    a.PurchaseValue,
			MessagingStarted: a.MessagingStarted,
			PostEngagement:   a.PostEngagement,
			LinkClicks:       a.LinkClicks,
		}
		if a.Impressions > 0 {
			row.CTR = float64(a.Clicks) / float64(a.Impressions) * 100
			row.CPM = a.Spend / float64(a.Impressions) * 1000
		}
		rows = append(rows, row)
	}
	return rows, nil
}
