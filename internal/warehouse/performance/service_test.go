package performance

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vuminh/adsboard-backend/pkg/db/models"
	pkgerrors "github.com/vuminh/adsboard-backend/pkg/errors"
	"github.com/vuminh/adsboard-backend/pkg/migrate"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:performance_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migrate.Run(context.Background(), conn))
	return conn
}

func seedFacts(t *testing.T, conn *gorm.DB) {
	t.Helper()
	rows := []models.FactAdPerformance{
		{
			DateKey: 20251101, AdID: "ad_1", PlatformKey: 1, PlacementKey: 1,
			CampaignID: "c_1", AdAccountID: "act_1",
			Measures: models.Measures{Spend: 100, Impressions: 10000, Clicks: 100},
		},
		{
			// sparse placement with an extreme per-row CTR
			DateKey: 20251101, AdID: "ad_1", PlatformKey: 1, PlacementKey: 2,
			CampaignID: "c_1", AdAccountID: "act_1",
			Measures: models.Measures{Spend: 1, Impressions: 10, Clicks: 5},
		},
		{
			DateKey: 20251102, AdID: "ad_2", PlatformKey: 2, PlacementKey: 1,
			CampaignID: "c_2", AdAccountID: "act_1",
			Measures: models.Measures{Spend: 50, Impressions: 5000, Clicks: 25, Purchases: 3, PurchaseValue: 299.97},
		},
	}
	require.NoError(t, conn.Create(&rows).Error)
	require.NoError(t, conn.Create(&models.DimCampaign{CampaignID: "c_1", Name: "Launch"}).Error)
}

func TestSummaryRecomputesCTRFromSums(t *testing.T) {
	conn := testDB(t)
	seedFacts(t, conn)
	svc := NewService(conn)

	rows, err := svc.Summary(context.Background(), Query{
		Since:   time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		Until:   time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		GroupBy: GroupByCampaign,
	})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one campaign bucket, got %+v", rows)
	}

	row := rows[0]
	if row.GroupID != "c_1" || row.GroupLabel != "Launch" {
		t.Fatalf("unexpected grouping: %+v", row)
	}
	if row.Impressions != 10010 || row.Clicks != 105 {
		t.Fatalf("unexpected sums: %+v", row)
	}
	// 105/10010, not the average of 1% and 50%
	wantCTR := 105.0 / 10010.0 * 100
	if math.Abs(row.CTR-wantCTR) > 1e-9 {
		t.Fatalf("expected pooled CTR %.4f, got %.4f", wantCTR, row.CTR)
	}
	wantCPM := 101.0 / 10010.0 * 1000
	if math.Abs(row.CPM-wantCPM) > 1e-9 {
		t.Fatalf("expected recomputed CPM %.4f, got %.4f", wantCPM, row.CPM)
	}
}

func TestSummaryGroupsByDate(t *testing.T) {
	conn := testDB(t)
	seedFacts(t, conn)
	svc := NewService(conn)

	rows, err := svc.Summary(context.Background(), Query{
		Since:   time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		Until:   time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC),
		GroupBy: GroupByDate,
	})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected two day buckets, got %+v", rows)
	}

	byID := map[string]Row{}
	for _, r := range rows {
		byID[r.GroupID] = r
	}
	if byID["20251102"].Purchases != 3 {
		t.Fatalf("conversion counters missing: %+v", byID["20251102"])
	}
}

func TestSummaryWindowExcludesOutsideDays(t *testing.T) {
	conn := testDB(t)
	seedFacts(t, conn)
	svc := NewService(conn)

	rows, err := svc.Summary(context.Background(), Query{
		Since:   time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC),
		Until:   time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC),
		GroupBy: GroupByAccount,
	})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(rows) != 1 || rows[0].Spend != 50 {
		t.Fatalf("window leaked other days: %+v", rows)
	}
}

func TestSummaryValidatesInput(t *testing.T) {
	svc := NewService(testDB(t))
	day := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Summary(context.Background(), Query{Since: day, Until: day, GroupBy: "creative"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for group_by, got %v", err)
	}

	_, err = svc.Summary(context.Background(), Query{Since: day.AddDate(0, 0, 1), Until: day, GroupBy: GroupByDate})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for inverted range, got %v", err)
	}
}
