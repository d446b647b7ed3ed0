package refresh

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vuminh/adsboard-backend/internal/meta"
	"github.com/vuminh/adsboard-backend/pkg/config"
	"github.com/vuminh/adsboard-backend/pkg/db/models"
	pkgerrors "github.com/vuminh/adsboard-backend/pkg/errors"
	"github.com/vuminh/adsboard-backend/pkg/migrate"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:refresh_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := migrate.Run(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

type stubAPI struct {
	accounts []meta.AdAccount

	insightsByDay map[string][]meta.InsightRow
	failDays      map[string]bool

	pages          []meta.Page
	pagesListCalls int
	pageMetrics    map[string][]meta.PageDailyMetrics
	posts          map[string][]meta.Post
	failPageOnce   map[string]error
	failPage       map[string]error
}

func (s *stubAPI) ListAdAccounts(ctx context.Context) ([]meta.AdAccount, error) {
	return s.accounts, nil
}

func (s *stubAPI) ListCampaigns(ctx context.Context, accountID string, ts meta.TimeSpec) ([]meta.Campaign, error) {
	return []meta.Campaign{{ID: "c_" + accountID, Name: "Campaign", Status: "ACTIVE", AccountID: accountID}}, nil
}

func (s *stubAPI) ListAdSets(ctx context.Context, accountID string, campaignIDs []string, ts meta.TimeSpec) ([]meta.AdSet, error) {
	return []meta.AdSet{{ID: "as_" + accountID, Name: "Set", Status: "ACTIVE", CampaignID: campaignIDs[0], AccountID: accountID}}, nil
}

func (s *stubAPI) ListAds(ctx context.Context, accountID string, adsetIDs []string, ts meta.TimeSpec) ([]meta.Ad, error) {
	return []meta.Ad{{ID: "ad_" + accountID, Name: "Creative", Status: "ACTIVE", AdSetID: adsetIDs[0], CampaignID: "c_" + accountID, AccountID: accountID}}, nil
}

func (s *stubAPI) ListEntityStatuses(ctx context.Context, accountID string) (map[string]string, error) {
	return map[string]string{"ad_" + accountID: "ACTIVE"}, nil
}

func (s *stubAPI) ListInsights(ctx context.Context, accountID string, breakdown meta.Breakdown, ts meta.TimeSpec) ([]meta.InsightRow, error) {
	day := ts.Since.Format("2006-01-02")
	if s.failDays[day] {
		return nil, errors.New("insights unavailable")
	}
	if breakdown != meta.BreakdownPlatformPlacement {
		return nil, nil
	}
	return s.insightsByDay[day], nil
}

func (s *stubAPI) ListPages(ctx context.Context) ([]meta.Page, error) {
	s.pagesListCalls++
	return s.pages, nil
}

func (s *stubAPI) GetPageDailyMetrics(ctx context.Context, pg meta.Page, ts meta.TimeSpec) ([]meta.PageDailyMetrics, error) {
	if err, ok := s.failPage[pg.ID]; ok {
		return nil, err
	}
	if err, ok := s.failPageOnce[pg.ID]; ok {
		delete(s.failPageOnce, pg.ID)
		return nil, err
	}
	return s.pageMetrics[pg.ID], nil
}

func (s *stubAPI) GetPostsWithLifetimeMetrics(ctx context.Context, pg meta.Page, ts meta.TimeSpec) ([]meta.Post, error) {
	return s.posts[pg.ID], nil
}

func testOrchestrator(conn *gorm.DB, api graphAPI) *Orchestrator {
	o := NewOrchestrator(conn, api, nil, config.WarehouseConfig{}, nil, nil)
	o.now = func() time.Time { return time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC) }
	o.sleep = func(ctx context.Context, d time.Duration) {}
	return o
}

func TestChunkDays(t *testing.T) {
	days := []time.Time{
		time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC),
	}

	chunks := chunkDays(days, 2)
	if len(chunks) != 2 || len(chunks[0]) != 2 || len(chunks[1]) != 1 {
		t.Fatalf("unexpected chunking: %v", chunks)
	}

	// zero falls back to one day per chunk
	if got := chunkDays(days, 0); len(got) != 3 {
		t.Fatalf("expected 3 single-day chunks, got %v", got)
	}
}

func TestGuardSerializesRefreshes(t *testing.T) {
	conn := testDB(t)
	ctx := context.Background()
	g := NewGuard(conn)

	acquired, err := g.TryBegin(ctx, WarehouseAds)
	if err != nil || !acquired {
		t.Fatalf("first acquisition should succeed, got %v %v", acquired, err)
	}

	again, err := g.TryBegin(ctx, WarehouseAds)
	if err != nil {
		t.Fatalf("second try: %v", err)
	}
	if again {
		t.Fatal("guard must reject a second acquisition")
	}

	// a different warehouse is independent
	other, err := g.TryBegin(ctx, WarehouseFanpage)
	if err != nil || !other {
		t.Fatalf("fanpage guard should be free, got %v %v", other, err)
	}

	status, err := g.Current(ctx, WarehouseAds)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Running || status.StartedAt == nil {
		t.Fatalf("expected running status, got %+v", status)
	}

	if err := g.End(ctx, WarehouseAds); err != nil {
		t.Fatalf("end: %v", err)
	}
	reacquired, err := g.TryBegin(ctx, WarehouseAds)
	if err != nil || !reacquired {
		t.Fatalf("guard should be free after release, got %v %v", reacquired, err)
	}
}

func TestGuardCurrentUnknownWarehouseIsIdle(t *testing.T) {
	g := NewGuard(testDB(t))
	status, err := g.Current(context.Background(), WarehouseAds)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Running {
		t.Fatalf("never-refreshed warehouse must read idle, got %+v", status)
	}
}

func TestRunAdsLoadsDimensionsAndFacts(t *testing.T) {
	conn := testDB(t)
	api := &stubAPI{
		accounts: []meta.AdAccount{{ID: "act_1", Name: "Main"}},
		insightsByDay: map[string][]meta.InsightRow{
			"2025-11-01": {{
				DateStart: "2025-11-01", AdID: "ad_act_1", AdSetID: "as_act_1",
				CampaignID: "c_act_1", AccountID: "act_1",
				PublisherPlatform: "facebook", PlatformPosition: "feed",
				Spend: "10.00", Impressions: "100", Clicks: "5",
			}},
			"2025-11-02": {{
				DateStart: "2025-11-02", AdID: "ad_act_1", AdSetID: "as_act_1",
				CampaignID: "c_act_1", AccountID: "act_1",
				PublisherPlatform: "facebook", PlatformPosition: "feed",
				Spend: "20.00", Impressions: "200", Clicks: "8",
			}},
		},
	}
	o := testOrchestrator(conn, api)

	ts := meta.TimeSpec{
		Since: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC),
	}
	if err := o.RunAds(context.Background(), ts); err != nil {
		t.Fatalf("run: %v", err)
	}

	var accountCount, dateCount, factCount int64
	conn.Model(&models.DimAdAccount{}).Count(&accountCount)
	conn.Model(&models.DimDate{}).Count(&dateCount)
	conn.Model(&models.FactAdPerformance{}).Count(&factCount)
	if accountCount != 1 {
		t.Fatalf("expected 1 account dim, got %d", accountCount)
	}
	if dateCount != 2 {
		t.Fatalf("expected 2 calendar rows, got %d", dateCount)
	}
	if factCount != 2 {
		t.Fatalf("expected 2 fact rows, got %d", factCount)
	}
}

func TestRunAdsSkipsFailedDayAndContinues(t *testing.T) {
	conn := testDB(t)
	api := &stubAPI{
		accounts: []meta.AdAccount{{ID: "act_1", Name: "Main"}},
		failDays: map[string]bool{"2025-11-01": true},
		insightsByDay: map[string][]meta.InsightRow{
			"2025-11-02": {{
				DateStart: "2025-11-02", AdID: "ad_act_1", AdSetID: "as_act_1",
				CampaignID: "c_act_1", AccountID: "act_1",
				PublisherPlatform: "facebook", PlatformPosition: "feed",
				Spend: "20.00",
			}},
		},
	}
	o := testOrchestrator(conn, api)

	ts := meta.TimeSpec{
		Since: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC),
	}
	if err := o.RunAds(context.Background(), ts); err != nil {
		t.Fatalf("a failed day must not abort the run: %v", err)
	}

	var facts []models.FactAdPerformance
	if err := conn.Find(&facts).Error; err != nil {
		t.Fatalf("read facts: %v", err)
	}
	if len(facts) != 1 || facts[0].DateKey != 20251102 {
		t.Fatalf("expected only the second day to land, got %+v", facts)
	}
}

func TestRunAdsHonorsDenylist(t *testing.T) {
	conn := testDB(t)
	api := &stubAPI{accounts: []meta.AdAccount{
		{ID: "act_keep", Name: "Keep"},
		{ID: "act_deny", Name: "Deny"},
	}}
	o := testOrchestrator(conn, api)
	o.cfg.AccountDenylist = []string{"act_deny"}

	ts := meta.TimeSpec{
		Since: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := o.RunAds(context.Background(), ts); err != nil {
		t.Fatalf("run: %v", err)
	}

	var rows []models.DimAdAccount
	if err := conn.Find(&rows).Error; err != nil {
		t.Fatalf("read accounts: %v", err)
	}
	if len(rows) != 1 || rows[0].AdAccountID != "act_keep" {
		t.Fatalf("denylisted account leaked into warehouse: %+v", rows)
	}
}

func TestRunFanpagesRetriesOnceAfterTokenExpiry(t *testing.T) {
	conn := testDB(t)
	day := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	api := &stubAPI{
		pages: []meta.Page{{ID: "p_1", Name: "Shop", AccessToken: "tok"}},
		pageMetrics: map[string][]meta.PageDailyMetrics{
			"p_1": {{PageID: "p_1", Date: day, FansTotal: 100}},
		},
		posts: map[string][]meta.Post{
			"p_1": {{ID: "post_1", PageID: "p_1", Impressions: 50}},
		},
		failPageOnce: map[string]error{"p_1": &meta.AuthError{Message: "expired", Code: 190}},
	}
	o := testOrchestrator(conn, api)

	ts := meta.TimeSpec{Since: day, Until: day}
	if err := o.RunFanpages(context.Background(), ts); err != nil {
		t.Fatalf("run: %v", err)
	}
	if api.pagesListCalls != 2 {
		t.Fatalf("expected page list refresh after expiry, got %d calls", api.pagesListCalls)
	}

	var daily int64
	conn.Model(&models.FactPageDaily{}).Count(&daily)
	if daily != 1 {
		t.Fatalf("expected retried page to load, got %d rows", daily)
	}
	var posts int64
	conn.Model(&models.FactPost{}).Count(&posts)
	if posts != 1 {
		t.Fatalf("expected post facts, got %d rows", posts)
	}
}

func TestRunFanpagesRetryAllowanceIsPerPage(t *testing.T) {
	conn := testDB(t)
	day := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	api := &stubAPI{
		pages: []meta.Page{
			{ID: "p_1", Name: "Shop", AccessToken: "tok1"},
			{ID: "p_2", Name: "Brand", AccessToken: "tok2"},
		},
		pageMetrics: map[string][]meta.PageDailyMetrics{
			"p_1": {{PageID: "p_1", Date: day, FansTotal: 100}},
			"p_2": {{PageID: "p_2", Date: day, FansTotal: 200}},
		},
		failPageOnce: map[string]error{
			"p_1": &meta.AuthError{Message: "expired", Code: 190},
			"p_2": &meta.AuthError{Message: "expired", Code: 190},
		},
	}
	o := testOrchestrator(conn, api)

	ts := meta.TimeSpec{Since: day, Until: day}
	if err := o.RunFanpages(context.Background(), ts); err != nil {
		t.Fatalf("run: %v", err)
	}
	// one refresh per expired page, on top of the initial listing
	if api.pagesListCalls != 3 {
		t.Fatalf("expected a page list refresh per expired page, got %d calls", api.pagesListCalls)
	}

	var daily int64
	conn.Model(&models.FactPageDaily{}).Count(&daily)
	if daily != 2 {
		t.Fatalf("expected both pages to load after retry, got %d rows", daily)
	}
}

func TestRunFanpagesSkipsPageAfterSecondExpiry(t *testing.T) {
	conn := testDB(t)
	day := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	api := &stubAPI{
		pages: []meta.Page{
			{ID: "p_dead", Name: "Stale", AccessToken: "tok1"},
			{ID: "p_2", Name: "Brand", AccessToken: "tok2"},
		},
		pageMetrics: map[string][]meta.PageDailyMetrics{
			"p_2": {{PageID: "p_2", Date: day, FansTotal: 200}},
		},
		failPage: map[string]error{
			"p_dead": &meta.AuthError{Message: "expired", Code: 190},
		},
	}
	o := testOrchestrator(conn, api)

	ts := meta.TimeSpec{Since: day, Until: day}
	if err := o.RunFanpages(context.Background(), ts); err != nil {
		t.Fatalf("a persistently expired page must not abort the run: %v", err)
	}
	// the dead page gets one retry, then its failure stays page-level
	if api.pagesListCalls != 2 {
		t.Fatalf("expected exactly one refresh attempt, got %d calls", api.pagesListCalls)
	}

	var rows []models.FactPageDaily
	if err := conn.Find(&rows).Error; err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 1 || rows[0].PageID != "p_2" {
		t.Fatalf("expected only the healthy page to land, got %+v", rows)
	}
}

func TestServiceTriggerRejectsWhileRunning(t *testing.T) {
	conn := testDB(t)
	ctx := context.Background()
	g := NewGuard(conn)
	svc := NewService(g, testOrchestrator(conn, &stubAPI{}), nil, nil)

	if acquired, err := g.TryBegin(ctx, WarehouseAds); err != nil || !acquired {
		t.Fatalf("seed guard: %v %v", acquired, err)
	}

	err := svc.Trigger(ctx, WarehouseAds, meta.TimeSpec{Preset: meta.PresetYesterday})
	if err == nil {
		t.Fatal("expected busy rejection")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeBusy {
		t.Fatalf("expected busy code, got %v", err)
	}
}

func TestServiceTriggerRunsDetachedAndReleasesGuard(t *testing.T) {
	conn := testDB(t)
	ctx := context.Background()
	api := &stubAPI{accounts: []meta.AdAccount{{ID: "act_1", Name: "Main"}}}
	svc := NewService(NewGuard(conn), testOrchestrator(conn, api), nil, nil)

	day := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	if err := svc.Trigger(ctx, WarehouseAds, meta.TimeSpec{Since: day, Until: day}); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	svc.Wait()

	status, err := svc.Status(ctx, WarehouseAds)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Running {
		t.Fatalf("guard must release after the run, got %+v", status)
	}

	var accountCount int64
	conn.Model(&models.DimAdAccount{}).Count(&accountCount)
	if accountCount != 1 {
		t.Fatalf("detached run did not load dimensions, got %d", accountCount)
	}
}

func TestServiceRejectsUnknownWarehouse(t *testing.T) {
	conn := testDB(t)
	svc := NewService(NewGuard(conn), testOrchestrator(conn, &stubAPI{}), nil, nil)

	err := svc.Trigger(context.Background(), "minerals", meta.TimeSpec{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Status(context.Background(), "minerals"); pkgerrors.As(err) == nil {
		t.Fatalf("expected validation error from status, got %v", err)
	}
}
