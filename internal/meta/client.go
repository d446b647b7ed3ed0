package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vuminh/adsboard-backend/pkg/config"
	"github.com/vuminh/adsboard-backend/pkg/logger"
)

// Client wraps the Graph API with centralized auth, cursor pagination and
// error mapping. Every listing call materializes all pages into one slice;
// partial pages are discarded when a later page fails.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	pageSize    int
	logger      *logger.Logger

	// now anchors relative-date presets; tests pin it.
	now func() time.Time
}

// NewClient validates the configuration and builds a Graph API client.
func NewClient(cfg config.MetaConfig, logg *logger.Logger) (*Client, error) {
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, fmt.Errorf("meta access token is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("meta base url is required")
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     base,
		accessToken: token,
		pageSize:    pageSize,
		logger:      logg,
		now:         time.Now,
	}, nil
}

type page struct {
	Data   []json.RawMessage `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
	Error *apiError `json:"error"`
}

// fetchAll follows the server-provided next cursor until exhausted and
// returns every record of every page.
func (c *Client) fetchAll(ctx context.Context, path string, params url.Values, token string) ([]json.RawMessage, error) {
	if token == "" {
		token = c.accessToken
	}
	params.Set("access_token", token)
	if params.Get("limit") == "" {
		params.Set("limit", strconv.Itoa(c.pageSize))
	}

	next := fmt.Sprintf("%s/%s?%s", c.baseURL, strings.TrimLeft(path, "/"), params.Encode())

	var all []json.RawMessage
	for next != "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, fmt.Errorf("building request for %s: %w", path, err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("calling %s: %w", path, err)
		}

		body, readErr := io.ReadAll(resp.Body)
		closeErr := resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("reading %s response: %w", path, readErr)
		}
		if closeErr != nil && c.logger != nil {
			c.logger.Warn(ctx, "failed to close response body")
		}

		var pg page
		if err := json.Unmarshal(body, &pg); err != nil {
			return nil, fmt.Errorf("decoding %s response: %w", path, err)
		}

		if pg.Error != nil {
			if pg.Error.Code == oauthErrorCode || pg.Error.Type == "OAuthException" {
				return nil, &AuthError{Message: pg.Error.Message, Code: pg.Error.Code}
			}
			return nil, &RequestError{Path: path, StatusCode: resp.StatusCode, Message: pg.Error.Message}
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &RequestError{Path: path, StatusCode: resp.StatusCode, Message: string(body)}
		}

		all = append(all, pg.Data...)
		next = pg.Paging.Next
	}

	return all, nil
}

func (c *Client) applyTimeSpec(params url.Values, ts TimeSpec) {
	// Exactly one time form per call; an explicit range wins over a preset.
	if ts.Explicit() {
		tr, _ := json.Marshal(map[string]string{
			"since": ts.Since.Format("2006-01-02"),
			"until": ts.Until.Format("2006-01-02"),
		})
		params.Set("time_range", string(tr))
		return
	}
	if ts.Preset != "" {
		params.Set("date_preset", ts.Preset)
	}
}

// ListAdAccounts returns every ad account visible to the configured token.
func (c *Client) ListAdAccounts(ctx context.Context) ([]AdAccount, error) {
	params := url.Values{}
	params.Set("fields", "id,name")

	raw, err := c.fetchAll(ctx, "me/adaccounts", params, "")
	if err != nil {
		return nil, err
	}
	return decodeAll[AdAccount](raw)
}

// ListCampaigns returns the campaigns of one account scoped to a time spec.
func (c *Client) ListCampaigns(ctx context.Context, accountID string, ts TimeSpec) ([]Campaign, error) {
	params := url.Values{}
	params.Set("fields", "id,name,objective,status,created_time,start_time,stop_time")
	c.applyTimeSpec(params, ts)

	raw, err := c.fetchAll(ctx, accountID+"/campaigns", params, "")
	if err != nil {
		return nil, err
	}
	campaigns, err := decodeAll[Campaign](raw)
	if err != nil {
		return nil, err
	}
	for i := range campaigns {
		campaigns[i].AccountID = accountID
	}
	return campaigns, nil
}

// ListAdSets returns the ad sets of the given campaigns.
func (c *Client) ListAdSets(ctx context.Context, accountID string, campaignIDs []string, ts TimeSpec) ([]AdSet, error) {
	params := url.Values{}
	params.Set("fields", "id,name,status,optimization_goal,start_time,end_time,campaign_id")
	if len(campaignIDs) > 0 {
		params.Set("filtering", inFilter("campaign.id", campaignIDs))
	}
	c.applyTimeSpec(params, ts)

	raw, err := c.fetchAll(ctx, accountID+"/adsets", params, "")
	if err != nil {
		return nil, err
	}
	adsets, err := decodeAll[AdSet](raw)
	if err != nil {
		return nil, err
	}
	for i := range adsets {
		adsets[i].AccountID = accountID
	}
	return adsets, nil
}

// ListAds returns the ads of the given ad sets.
func (c *Client) ListAds(ctx context.Context, accountID string, adsetIDs []string, ts TimeSpec) ([]Ad, error) {
	params := url.Values{}
	params.Set("fields", "id,name,status,adset_id,campaign_id")
	if len(adsetIDs) > 0 {
		params.Set("filtering", inFilter("adset.id", adsetIDs))
	}
	c.applyTimeSpec(params, ts)

	raw, err := c.fetchAll(ctx, accountID+"/ads", params, "")
	if err != nil {
		return nil, err
	}
	ads, err := decodeAll[Ad](raw)
	if err != nil {
		return nil, err
	}
	for i := range ads {
		ads[i].AccountID = accountID
	}
	return ads, nil
}

type statusRecord struct {
	ID              string `json:"id"`
	EffectiveStatus string `json:"effective_status"`
	AdSet           *struct {
		ID              string `json:"id"`
		EffectiveStatus string `json:"effective_status"`
	} `json:"adset"`
	Campaign *struct {
		ID              string `json:"id"`
		EffectiveStatus string `json:"effective_status"`
	} `json:"campaign"`
}

// ListEntityStatuses performs the bulk status lookup for one account: a
// single ads listing with nested adset/campaign expansion, flattened into an
// entity-id to current-status map covering all three levels.
func (c *Client) ListEntityStatuses(ctx context.Context, accountID string) (map[string]string, error) {
	params := url.Values{}
	params.Set("fields", "id,effective_status,adset{id,effective_status},campaign{id,effective_status}")

	raw, err := c.fetchAll(ctx, accountID+"/ads", params, "")
	if err != nil {
		return nil, err
	}
	records, err := decodeAll[statusRecord](raw)
	if err != nil {
		return nil, err
	}

	statuses := make(map[string]string, len(records)*3)
	for _, rec := range records {
		if rec.ID != "" && rec.EffectiveStatus != "" {
			statuses[rec.ID] = rec.EffectiveStatus
		}
		if rec.AdSet != nil && rec.AdSet.ID != "" && rec.AdSet.EffectiveStatus != "" {
			statuses[rec.AdSet.ID] = rec.AdSet.EffectiveStatus
		}
		if rec.Campaign != nil && rec.Campaign.ID != "" && rec.Campaign.EffectiveStatus != "" {
			statuses[rec.Campaign.ID] = rec.Campaign.EffectiveStatus
		}
	}
	return statuses, nil
}

// ListInsights pulls ad-level insight rows for the requested breakdown.
func (c *Client) ListInsights(ctx context.Context, accountID string, breakdown Breakdown, ts TimeSpec) ([]InsightRow, error) {
	params := url.Values{}
	params.Set("level", "ad")
	params.Set("breakdowns", string(breakdown))
	params.Set("time_increment", "1")
	params.Set("fields", "account_id,campaign_id,adset_id,ad_id,spend,impressions,clicks,ctr,cpm,reach,frequency,actions,action_values")
	c.applyTimeSpec(params, ts)

	raw, err := c.fetchAll(ctx, accountID+"/insights", params, "")
	if err != nil {
		return nil, err
	}
	return decodeAll[InsightRow](raw)
}

// ListPages returns the fanpages the token manages, each with its own
// page access token.
func (c *Client) ListPages(ctx context.Context) ([]Page, error) {
	params := url.Values{}
	params.Set("fields", "id,name,category,access_token,fan_count")

	raw, err := c.fetchAll(ctx, "me/accounts", params, "")
	if err != nil {
		return nil, err
	}
	return decodeAll[Page](raw)
}

type pageInsightSeries struct {
	Name   string `json:"name"`
	Period string `json:"period"`
	Values []struct {
		Value   json.Number `json:"value"`
		EndTime string      `json:"end_time"`
	} `json:"values"`
}

// GetPageDailyMetrics pulls the day-period page insight series and pivots
// them into one record per day. The page's own token authorizes the call.
func (c *Client) GetPageDailyMetrics(ctx context.Context, pg Page, ts TimeSpec) ([]PageDailyMetrics, error) {
	start, end, err := ts.RangeFor(c.now())
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("metric", "page_fans,page_fan_adds,page_impressions,page_post_engagements,page_video_views")
	params.Set("period", "day")
	params.Set("since", start.Format("2006-01-02"))
	// until is exclusive on page insights
	params.Set("until", end.AddDate(0, 0, 1).Format("2006-01-02"))

	raw, err := c.fetchAll(ctx, pg.ID+"/insights", params, pg.AccessToken)
	if err != nil {
		return nil, err
	}
	series, err := decodeAll[pageInsightSeries](raw)
	if err != nil {
		return nil, err
	}

	byDay := map[string]*PageDailyMetrics{}
	for _, s := range series {
		for _, v := range s.Values {
			day, parseErr := parseInsightEndTime(v.EndTime)
			if parseErr != nil {
				continue
			}
			key := day.Format("2006-01-02")
			rec, ok := byDay[key]
			if !ok {
				rec = &PageDailyMetrics{PageID: pg.ID, Date: day}
				byDay[key] = rec
			}
			n, _ := v.Value.Int64()
			switch s.Name {
			case "page_fans":
				rec.FansTotal = n
			case "page_fan_adds":
				rec.FollowsNew = n
			case "page_impressions":
				rec.Impressions = n
			case "page_post_engagements":
				rec.Engagement = n
			case "page_video_views":
				rec.VideoViews = n
			}
		}
	}

	out := make([]PageDailyMetrics, 0, len(byDay))
	for _, rec := range byDay {
		out = append(out, *rec)
	}
	return out, nil
}

type rawPost struct {
	ID           string `json:"id"`
	Message      string `json:"message"`
	CreatedTime  string `json:"created_time"`
	PermalinkURL string `json:"permalink_url"`
	FullPicture  string `json:"full_picture"`
	Shares       *struct {
		Count int64 `json:"count"`
	} `json:"shares"`
	Comments *struct {
		Summary struct {
			TotalCount int64 `json:"total_count"`
		} `json:"summary"`
	} `json:"comments"`
	Insights *struct {
		Data []struct {
			Name   string `json:"name"`
			Values []struct {
				Value json.Number `json:"value"`
			} `json:"values"`
		} `json:"data"`
	} `json:"insights"`
}

// GetPostsWithLifetimeMetrics lists published posts in the range together
// with their lifetime-cumulative insight totals.
func (c *Client) GetPostsWithLifetimeMetrics(ctx context.Context, pg Page, ts TimeSpec) ([]Post, error) {
	start, end, err := ts.RangeFor(c.now())
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("fields", "id,message,created_time,permalink_url,full_picture,shares,comments.summary(true),"+
		"insights.metric(post_impressions,post_impressions_unique,post_engaged_users,post_clicks,post_reactions_by_type_total)")
	params.Set("since", start.Format("2006-01-02"))
	params.Set("until", end.AddDate(0, 0, 1).Format("2006-01-02"))

	raw, err := c.fetchAll(ctx, pg.ID+"/published_posts", params, pg.AccessToken)
	if err != nil {
		return nil, err
	}
	records, err := decodeAll[rawPost](raw)
	if err != nil {
		return nil, err
	}

	posts := make([]Post, 0, len(records))
	for _, rec := range records {
		post := Post{
			ID:          rec.ID,
			PageID:      pg.ID,
			Message:     rec.Message,
			CreatedTime: rec.CreatedTime,
			Permalink:   rec.PermalinkURL,
			PictureURL:  rec.FullPicture,
		}
		if rec.Shares != nil {
			post.Shares = rec.Shares.Count
		}
		if rec.Comments != nil {
			post.Comments = rec.Comments.Summary.TotalCount
		}
		if rec.Insights != nil {
			for _, metric := range rec.Insights.Data {
				if len(metric.Values) == 0 {
					continue
				}
				n, _ := metric.Values[0].Value.Int64()
				switch metric.Name {
				case "post_impressions":
					post.Impressions = n
				case "post_impressions_unique":
					post.Reach = n
				case "post_engaged_users":
					post.Engagement = n
				case "post_clicks":
					post.Clicks = n
				case "post_reactions_by_type_total":
					post.Reactions = n
				}
			}
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func decodeAll[T any](raw []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raw))
	for _, msg := range raw {
		var item T
		if err := json.Unmarshal(msg, &item); err != nil {
			return nil, fmt.Errorf("decoding record: %w", err)
		}
		out = append(out, item)
	}
	return out, nil
}

func inFilter(field string, values []string) string {
	filter, _ := json.Marshal([]map[string]any{{
		"field":    field,
		"operator": "IN",
		"value":    values,
	}})
	return string(filter)
}

func parseInsightEndTime(endTime string) (time.Time, error) {
	// end_time marks the exclusive end of the day bucket
	t, err := time.Parse("2006-01-02T15:04:05-0700", endTime)
	if err != nil {
		t, err = time.Parse(time.RFC3339, endTime)
		if err != nil {
			return time.Time{}, err
		}
	}
	day := t.UTC().AddDate(0, 0, -1)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC), nil
}
