package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainbooks/chainbooks/internal/usecase"
)

// unpricedSentinel caches negative lookups so an asset without a price
// does not hammer the upstream API on every run.
const unpricedSentinel = "unpriced"

// LookupMetrics records oracle lookup outcomes and cache traffic.
type LookupMetrics interface {
	OracleLookup(outcome string, seconds float64)
	PriceCache(outcome string)
}

// CachedOracle memoizes price lookups by (asset, timestamp). Historical
// prices never change, so cache entries can live long.
type CachedOracle struct {
	next    usecase.PriceOracle
	cache   usecase.Cache
	ttl     time.Duration
	metrics LookupMetrics
}

// NewCachedOracle wraps next with a cache.
func NewCachedOracle(next usecase.PriceOracle, cache usecase.Cache, ttl time.Duration) *CachedOracle {
	return &CachedOracle{
		next:    next,
		cache:   cache,
		ttl:     ttl,
		metrics: nopLookupMetrics{},
	}
}

// WithMetrics attaches a lookup metrics sink and returns the oracle.
func (o *CachedOracle) WithMetrics(m LookupMetrics) *CachedOracle {
	if m != nil {
		o.metrics = m
	}
	return o
}

type nopLookupMetrics struct{}

func (nopLookupMetrics) OracleLookup(string, float64) {}
func (nopLookupMetrics) PriceCache(string)            {}

// GetUnitPrice implements usecase.PriceOracle.
func (o *CachedOracle) GetUnitPrice(ctx context.Context, asset string, at time.Time) (decimal.Decimal, bool, error) {
	key := priceKey(asset, at)

	if cached, err := o.cache.Get(ctx, key); err == nil {
		if cached == unpricedSentinel {
			o.metrics.PriceCache("hit")
			return decimal.Zero, false, nil
		}

		price, err := decimal.NewFromString(cached)
		if err == nil {
			o.metrics.PriceCache("hit")
			return price, true, nil
		}
		// Corrupt entry: fall through to the upstream lookup.
	}
	o.metrics.PriceCache("miss")

	start := time.Now()
	price, priced, err := o.next.GetUnitPrice(ctx, asset, at)
	elapsed := time.Since(start).Seconds()

	switch {
	case err != nil:
		o.metrics.OracleLookup("error", elapsed)
		return decimal.Zero, false, err
	case priced:
		o.metrics.OracleLookup("priced", elapsed)
	default:
		o.metrics.OracleLookup("unpriced", elapsed)
	}

	value := unpricedSentinel
	if priced {
		value = price.String()
	}

	// Cache write failures are not lookup failures.
	_ = o.cache.Set(ctx, key, value, o.ttl)

	return price, priced, nil
}

func priceKey(asset string, at time.Time) string {
	return fmt.Sprintf("price:%s:%d", strings.ToUpper(asset), at.UTC().Unix())
}
