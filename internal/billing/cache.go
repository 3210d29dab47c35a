package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/aiox-platform/governor/internal/metrics"
)

// TierSource is anything that can look up a tier.
type TierSource interface {
	SubscriptionTier(ctx context.Context, userID uuid.UUID) (Tier, error)
}

// CachedResolver fronts a TierSource with an in-memory LRU with TTL.
// Only successful lookups are cached, so a failing source is retried on the
// next call.
type CachedResolver struct {
	source TierSource
	cache  *expirable.LRU[uuid.UUID, Tier]
}

// NewCachedResolver creates a cache holding at most size tiers for ttl each.
func NewCachedResolver(source TierSource, size int, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		source: source,
		cache:  expirable.NewLRU[uuid.UUID, Tier](size, nil, ttl),
	}
}

func (c *CachedResolver) SubscriptionTier(ctx context.Context, userID uuid.UUID) (Tier, error) {
	if tier, ok := c.cache.Get(userID); ok {
		metrics.BillingCacheLookupsTotal.WithLabelValues("hit").Inc()
		return tier, nil
	}
	metrics.BillingCacheLookupsTotal.WithLabelValues("miss").Inc()

	tier, err := c.source.SubscriptionTier(ctx, userID)
	if err != nil {
		return "", err
	}
	c.cache.Add(userID, tier)
	return tier, nil
}

// Invalidate drops a cached tier, e.g. after a plan change.
func (c *CachedResolver) Invalidate(userID uuid.UUID) {
	c.cache.Remove(userID)
}
