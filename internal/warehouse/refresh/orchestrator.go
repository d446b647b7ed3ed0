package refresh

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vuminh/adsboard-backend/internal/meta"
	"github.com/vuminh/adsboard-backend/internal/warehouse/dimensions"
	"github.com/vuminh/adsboard-backend/internal/warehouse/facts"
	"github.com/vuminh/adsboard-backend/pkg/config"
	"github.com/vuminh/adsboard-backend/pkg/logger"
	"github.com/vuminh/adsboard-backend/pkg/metrics"
)

// Warehouse identifiers used by the guard, logs and metrics.
const (
	WarehouseAds     = "ads"
	WarehouseFanpage = "fanpage"
)

// graphAPI is the upstream surface the orchestrator consumes; the concrete
// implementation is the Graph client, tests stub it.
type graphAPI interface {
	ListAdAccounts(ctx context.Context) ([]meta.AdAccount, error)
	ListCampaigns(ctx context.Context, accountID string, ts meta.TimeSpec) ([]meta.Campaign, error)
	ListAdSets(ctx context.Context, accountID string, campaignIDs []string, ts meta.TimeSpec) ([]meta.AdSet, error)
	ListAds(ctx context.Context, accountID string, adsetIDs []string, ts meta.TimeSpec) ([]meta.Ad, error)
	ListEntityStatuses(ctx context.Context, accountID string) (map[string]string, error)
	ListInsights(ctx context.Context, accountID string, breakdown meta.Breakdown, ts meta.TimeSpec) ([]meta.InsightRow, error)
	ListPages(ctx context.Context) ([]meta.Page, error)
	GetPageDailyMetrics(ctx context.Context, pg meta.Page, ts meta.TimeSpec) ([]meta.PageDailyMetrics, error)
	GetPostsWithLifetimeMetrics(ctx context.Context, pg meta.Page, ts meta.TimeSpec) ([]meta.Post, error)
}

// imageOffloader mirrors the storage client; nil disables offloading.
type imageOffloader interface {
	OffloadImage(ctx context.Context, postID, sourceURL string) string
}

// Orchestrator drives the extract-transform-load sequence for one
// warehouse refresh. Setup failures abort the run; a failure inside a
// single day skips that day and continues.
type Orchestrator struct {
	conn      *gorm.DB
	api       graphAPI
	offloader imageOffloader
	cfg       config.WarehouseConfig
	logger    *logger.Logger
	metrics   *metrics.RefreshMetrics

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func NewOrchestrator(conn *gorm.DB, api graphAPI, offloader imageOffloader, cfg config.WarehouseConfig, logg *logger.Logger, m *metrics.RefreshMetrics) *Orchestrator {
	return &Orchestrator{
		conn:      conn,
		api:       api,
		offloader: offloader,
		cfg:       cfg,
		logger:    logg,
		metrics:   m,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (o *Orchestrator) denylisted() map[string]bool {
	deny := make(map[string]bool, len(o.cfg.AccountDenylist))
	for _, id := range o.cfg.AccountDenylist {
		deny[id] = true
	}
	return deny
}

// RunAds refreshes the advertising warehouse over the resolved window.
func (o *Orchestrator) RunAds(ctx context.Context, ts meta.TimeSpec) error {
	start, end, err := ts.RangeFor(o.now())
	if err != nil {
		return err
	}
	days := meta.DaysBetween(start, end)
	if len(days) == 0 {
		return fmt.Errorf("empty refresh window")
	}
	window := meta.TimeSpec{Since: start, Until: end}

	// setup: accounts, entity dimensions, status enrichment, calendar
	accounts, err := o.api.ListAdAccounts(ctx)
	if err != nil {
		return fmt.Errorf("listing ad accounts: %w", err)
	}
	deny := o.denylisted()
	kept := accounts[:0]
	for _, acc := range accounts {
		if deny[acc.ID] {
			continue
		}
		kept = append(kept, acc)
	}
	accounts = kept
	if len(accounts) == 0 {
		return fmt.Errorf("no ad accounts remain after denylist filtering")
	}
	if err := dimensions.UpsertAdAccounts(ctx, o.conn, accounts); err != nil {
		return err
	}

	for _, acc := range accounts {
		accCtx := ctx
		if o.logger != nil {
			accCtx = o.logger.WithAccountID(ctx, acc.ID)
		}
		if err := o.loadAccountEntities(accCtx, acc.ID, window); err != nil {
			return fmt.Errorf("loading entities for %s: %w", acc.ID, err)
		}
		o.sleep(ctx, o.cfg.TaskDelay)
	}

	if err := dimensions.EnsureDates(ctx, o.conn, days); err != nil {
		return err
	}

	// chunk loop: each chunk loads independently, failures skip the chunk
	resolver := dimensions.NewResolver(o.conn)
	chunks := chunkDays(days, o.cfg.ChunkDays)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunkCtx := ctx
		if o.logger != nil {
			chunkCtx = o.logger.WithDay(ctx, chunk[0].Format("2006-01-02"))
		}
		if err := o.loadAdsChunk(chunkCtx, resolver, accounts, chunk); err != nil {
			for range chunk {
				o.metrics.IncDaySkipped(WarehouseAds)
			}
			if o.logger != nil {
				o.logger.Error(chunkCtx, "chunk load failed, skipping", err)
			}
		}
		if i < len(chunks)-1 {
			o.sleep(ctx, o.cfg.DayDelay)
		}
	}
	return nil
}

// chunkDays splits a day list into consecutive runs of at most size days.
func chunkDays(days []time.Time, size int) [][]time.Time {
	if size <= 0 {
		size = 1
	}
	var chunks [][]time.Time
	for start := 0; start < len(days); start += size {
		end := start + size
		if end > len(days) {
			end = len(days)
		}
		chunks = append(chunks, days[start:end])
	}
	return chunks
}

func (o *Orchestrator) loadAccountEntities(ctx context.Context, accountID string, window meta.TimeSpec) error {
	campaigns, err := o.api.ListCampaigns(ctx, accountID, window)
	if err != nil {
		return err
	}
	if err := dimensions.UpsertCampaigns(ctx, o.conn, campaigns); err != nil {
		return err
	}
	campaignIDs := make([]string, 0, len(campaigns))
	for _, c := range campaigns {
		campaignIDs = append(campaignIDs, c.ID)
	}
	if len(campaignIDs) == 0 {
		return nil
	}

	adsets, err := o.api.ListAdSets(ctx, accountID, campaignIDs, window)
	if err != nil {
		return err
	}
	if err := dimensions.UpsertAdSets(ctx, o.conn, adsets); err != nil {
		return err
	}
	adsetIDs := make([]string, 0, len(adsets))
	for _, as := range adsets {
		adsetIDs = append(adsetIDs, as.ID)
	}
	if len(adsetIDs) == 0 {
		return nil
	}

	ads, err := o.api.ListAds(ctx, accountID, adsetIDs, window)
	if err != nil {
		return err
	}
	if err := dimensions.UpsertAds(ctx, o.conn, ads); err != nil {
		return err
	}

	statuses, err := o.api.ListEntityStatuses(ctx, accountID)
	if err != nil {
		// enrichment is additive; stale statuses are acceptable
		if o.logger != nil {
			o.logger.Warn(ctx, "status enrichment failed, keeping listing statuses")
		}
		return nil
	}
	return dimensions.ApplyStatuses(ctx, o.conn, statuses)
}

func (o *Orchestrator) loadAdsChunk(ctx context.Context, resolver *dimensions.Resolver, accounts []meta.AdAccount, chunk []time.Time) error {
	window := meta.TimeSpec{Since: chunk[0], Until: chunk[len(chunk)-1]}

	for _, acc := range accounts {
		platform, err := o.api.ListInsights(ctx, acc.ID, meta.BreakdownPlatformPlacement, window)
		if err != nil {
			return fmt.Errorf("platform insights for %s: %w", acc.ID, err)
		}
		res, err := facts.UpsertAdPerformance(ctx, o.conn, resolver, platform)
		if err != nil {
			return err
		}
		o.recordFactResult(WarehouseAds, "fact_ad_performance", res)
		o.sleep(ctx, o.cfg.TaskDelay)

		demo, err := o.api.ListInsights(ctx, acc.ID, meta.BreakdownDemographic, window)
		if err != nil {
			return fmt.Errorf("demographic insights for %s: %w", acc.ID, err)
		}
		res, err = facts.UpsertAdPerformanceDemographic(ctx, o.conn, demo)
		if err != nil {
			return err
		}
		o.recordFactResult(WarehouseAds, "fact_ad_performance_demographic", res)
		o.sleep(ctx, o.cfg.TaskDelay)

		region, err := o.api.ListInsights(ctx, acc.ID, meta.BreakdownRegion, window)
		if err != nil {
			return fmt.Errorf("regional insights for %s: %w", acc.ID, err)
		}
		res, err = facts.UpsertAdPerformanceRegion(ctx, o.conn, resolver, region)
		if err != nil {
			return err
		}
		o.recordFactResult(WarehouseAds, "fact_ad_performance_region", res)
		o.sleep(ctx, o.cfg.TaskDelay)
	}
	return nil
}

func (o *Orchestrator) recordFactResult(warehouse, table string, res facts.Result) {
	o.metrics.AddRowsUpserted(warehouse, table, res.Upserted)
	o.metrics.AddRowsSkipped(warehouse, table, res.Skipped)
}

// RunFanpages refreshes the fanpage warehouse. A token expiry mid-page gets
// exactly one recovery attempt for that page: the page list is re-fetched
// for fresh per-page tokens and the failed page retried once. A second
// expiry skips the page; other pages keep their own allowance.
func (o *Orchestrator) RunFanpages(ctx context.Context, ts meta.TimeSpec) error {
	start, end, err := ts.RangeFor(o.now())
	if err != nil {
		return err
	}
	days := meta.DaysBetween(start, end)
	if len(days) == 0 {
		return fmt.Errorf("empty refresh window")
	}
	window := meta.TimeSpec{Since: start, Until: end}

	pages, err := o.api.ListPages(ctx)
	if err != nil {
		return fmt.Errorf("listing pages: %w", err)
	}
	if err := dimensions.UpsertFanpages(ctx, o.conn, pages); err != nil {
		return err
	}
	if err := dimensions.EnsureDates(ctx, o.conn, days); err != nil {
		return err
	}

	retried := map[string]bool{}
	for i := 0; i < len(pages); i++ {
		pg := pages[i]
		pgCtx := ctx
		if o.logger != nil {
			pgCtx = o.logger.WithField(ctx, "page_id", pg.ID)
		}

		err := o.loadPage(pgCtx, pg, window)
		if err != nil && meta.IsAuthExpired(err) && !retried[pg.ID] {
			retried[pg.ID] = true
			if o.logger != nil {
				o.logger.Warn(pgCtx, "page token expired, refreshing page list and retrying once")
			}
			fresh, listErr := o.api.ListPages(ctx)
			if listErr != nil {
				return fmt.Errorf("refreshing page tokens: %w", listErr)
			}
			if upErr := dimensions.UpsertFanpages(ctx, o.conn, fresh); upErr != nil {
				return upErr
			}
			pages = fresh
			i--
			continue
		}
		if err != nil {
			o.metrics.IncDaySkipped(WarehouseFanpage)
			if o.logger != nil {
				o.logger.Error(pgCtx, "page load failed, skipping", err)
			}
		}
		o.sleep(ctx, o.cfg.TaskDelay)
	}
	return nil
}

func (o *Orchestrator) loadPage(ctx context.Context, pg meta.Page, window meta.TimeSpec) error {
	daily, err := o.api.GetPageDailyMetrics(ctx, pg, window)
	if err != nil {
		return fmt.Errorf("page daily metrics for %s: %w", pg.ID, err)
	}
	res, err := facts.UpsertPageDaily(ctx, o.conn, daily)
	if err != nil {
		return err
	}
	o.recordFactResult(WarehouseFanpage, "fact_page_daily", res)

	posts, err := o.api.GetPostsWithLifetimeMetrics(ctx, pg, window)
	if err != nil {
		return fmt.Errorf("posts for %s: %w", pg.ID, err)
	}

	imageURLs := map[string]string{}
	if o.offloader != nil {
		for _, post := range posts {
			if post.PictureURL == "" {
				continue
			}
			imageURLs[post.ID] = o.offloader.OffloadImage(ctx, post.ID, post.PictureURL)
		}
	}

	res, err = facts.UpsertPosts(ctx, o.conn, posts, imageURLs)
	if err != nil {
		return err
	}
	o.recordFactResult(WarehouseFanpage, "fact_post", res)
	return nil
}
