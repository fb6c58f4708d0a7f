package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/thanhpn/alphavn/internal/contracts"
)

// CachePort is the injectable caching interface wrapped around the store.
// pkg/redis.Cache satisfies it in production; NoopCache keeps tests and
// backtests deterministic.
type CachePort interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// NoopCache never hits and never stores.
type NoopCache struct{}

func (NoopCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	return false, nil
}

func (NoopCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

// CachedStore wraps a Store with read-through caching of price series and
// context snapshots. Historical bars are immutable, so a generous TTL is safe.
type CachedStore struct {
	inner Store
	cache CachePort
	ttl   time.Duration
}

// NewCachedStore wraps inner with the given cache port.
func NewCachedStore(inner Store, cache CachePort, ttl time.Duration) *CachedStore {
	return &CachedStore{inner: inner, cache: cache, ttl: ttl}
}

// GetPriceSeries serves from cache before falling through to the inner store.
func (s *CachedStore) GetPriceSeries(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PricePoint, error) {
	key := fmt.Sprintf("prices:%s:%s:%s", symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))

	var cached []contracts.PricePoint
	if found, err := s.cache.Get(ctx, key, &cached); err == nil && found {
		return cached, nil
	}

	series, err := s.inner.GetPriceSeries(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}

	_ = s.cache.Set(ctx, key, series, s.ttl)
	return series, nil
}

// GetContext serves context snapshots through the cache. Misses in the feed
// itself (ErrContextUnavailable) are not cached.
func (s *CachedStore) GetContext(ctx context.Context, date time.Time) (contracts.MarketContext, error) {
	key := fmt.Sprintf("context:%s", date.Format("2006-01-02"))

	var cached contracts.MarketContext
	if found, err := s.cache.Get(ctx, key, &cached); err == nil && found {
		return cached, nil
	}

	mctx, err := s.inner.GetContext(ctx, date)
	if err != nil {
		return contracts.MarketContext{}, err
	}

	_ = s.cache.Set(ctx, key, mctx, s.ttl)
	return mctx, nil
}

// GetSector passes through with caching.
func (s *CachedStore) GetSector(ctx context.Context, symbol string) (string, error) {
	key := fmt.Sprintf("sector:%s", symbol)

	var cached string
	if found, err := s.cache.Get(ctx, key, &cached); err == nil && found {
		return cached, nil
	}

	sector, err := s.inner.GetSector(ctx, symbol)
	if err != nil {
		return "", err
	}

	_ = s.cache.Set(ctx, key, sector, s.ttl)
	return sector, nil
}
