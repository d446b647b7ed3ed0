package meta

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/vuminh/adsboard-backend/pkg/logger"
	"github.com/vuminh/adsboard-backend/pkg/redis"
)

// listingCache is the slice of the redis client the account cache uses.
type listingCache interface {
	CacheKey(scope string, parts ...string) string
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// accountLister is the upstream surface CachedAccountLister wraps.
type accountLister interface {
	ListAdAccounts(ctx context.Context) ([]AdAccount, error)
}

// CachedAccountLister serves the ad-account listing out of redis for the
// configured TTL. Account sets change rarely and the listing is the most
// frequently hit upstream call, so cache errors never fail the request;
// they just fall through to the API.
type CachedAccountLister struct {
	upstream accountLister
	cache    listingCache
	ttl      time.Duration
	logger   *logger.Logger
}

func NewCachedAccountLister(upstream accountLister, cache *redis.Client, ttl time.Duration, logg *logger.Logger) *CachedAccountLister {
	var lc listingCache
	if cache != nil {
		lc = cache
	}
	return &CachedAccountLister{
		upstream: upstream,
		cache:    lc,
		ttl:      ttl,
		logger:   logg,
	}
}

// RefreshAPI is the Graph surface handed to the refresh pipeline: the raw
// client with its account listing served through the cache.
type RefreshAPI struct {
	*Client
	accounts *CachedAccountLister
}

func NewRefreshAPI(client *Client, cache *redis.Client, ttl time.Duration, logg *logger.Logger) *RefreshAPI {
	return &RefreshAPI{
		Client:   client,
		accounts: NewCachedAccountLister(client, cache, ttl, logg),
	}
}

func (a *RefreshAPI) ListAdAccounts(ctx context.Context) ([]AdAccount, error) {
	return a.accounts.ListAdAccounts(ctx)
}

func (c *CachedAccountLister) ListAdAccounts(ctx context.Context) ([]AdAccount, error) {
	if c.cache == nil || c.ttl <= 0 {
		return c.upstream.ListAdAccounts(ctx)
	}

	key := c.cache.CacheKey("adaccounts")

	cached, err := c.cache.Get(ctx, key)
	if err == nil {
		var accounts []AdAccount
		if unmarshalErr := json.Unmarshal([]byte(cached), &accounts); unmarshalErr == nil {
			return accounts, nil
		}
		// stale or corrupted entry, refetch below
	} else if !errors.Is(err, redis.Nil) && c.logger != nil {
		c.logger.Warn(ctx, "account cache read failed, falling back to api")
	}

	accounts, err := c.upstream.ListAdAccounts(ctx)
	if err != nil {
		return nil, err
	}

	if payload, marshalErr := json.Marshal(accounts); marshalErr == nil {
		if setErr := c.cache.Set(ctx, key, string(payload), c.ttl); setErr != nil && c.logger != nil {
			c.logger.Warn(ctx, "account cache write failed")
		}
	}
	return accounts, nil
}
