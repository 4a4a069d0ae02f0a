package eligibility

import (
	"context"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedOracle memoizes decisions of another oracle for a short TTL. Decisions are keyed by minute.
type CachedOracle struct {
	next  Oracle
	cache *cache.Cache
}

// NewCachedOracle wraps next. Decisions expire after ttl.
func NewCachedOracle(next Oracle, ttl time.Duration) *CachedOracle {
	return &CachedOracle{next: next, cache: cache.New(ttl, 2*ttl)}
}

func (o *CachedOracle) EligibleTo(ctx context.Context, memberID string, resource Resource, asOf time.Time) (bool, error) {
	key := memberID + "|" + resource.EligibilityResourceKey() + "|" + strconv.FormatInt(asOf.Truncate(time.Minute).Unix(), 10)
	if v, found := o.cache.Get(key); found {
		return v.(bool), nil
	}
	ok, err := o.next.EligibleTo(ctx, memberID, resource, asOf)
	if err != nil {
		return false, err
	}
	o.cache.SetDefault(key, ok)
	return ok, nil
}

// Flush drops every cached decision.
func (o *CachedOracle) Flush() {
	o.cache.Flush()
}
