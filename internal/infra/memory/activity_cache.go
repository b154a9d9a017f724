package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"edulearn-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ActivityLoader fetches a user's newest results from the backing store.
type ActivityLoader interface {
	LoadActivity(ctx context.Context, userID string, limit int) ([]domain.Activity, error)
}

// ActivityCache caches recent activity per user with TTL to avoid repeated store hits.
type ActivityCache struct {
	loader ActivityLoader
	limit  int
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedActivity
	// gen is bumped on invalidation so an in-flight load cannot store stale data.
	gen map[string]uint64
}

type cachedActivity struct {
	items     []domain.Activity
	expiresAt time.Time
}

func NewActivityCache(loader ActivityLoader, ttl time.Duration) *ActivityCache {
	return &ActivityCache{
		loader: loader,
		limit:  domain.RecentActivityLimit,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedActivity),
		gen:    make(map[string]uint64),
	}
}

// SetClock is test-only.
func (c *ActivityCache) SetClock(clock func() time.Time) {
	c.clock = clock
}

func (c *ActivityCache) Recent(ctx context.Context, userID string) ([]domain.Activity, error) {
	if items, ok := c.lookup(userID, c.clock()); ok {
		return items, nil
	}

	result, err, _ := c.sf.Do(userID, func() (interface{}, error) {
		now := c.clock()
		if items, ok := c.lookup(userID, now); ok {
			return items, nil
		}

		c.mu.RLock()
		gen := c.gen[userID]
		c.mu.RUnlock()

		items, err := c.loader.LoadActivity(ctx, userID, c.limit)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.gen[userID] == gen && c.ttl > 0 {
			c.cache[userID] = cachedActivity{
				items:     items,
				expiresAt: now.Add(c.ttlWithJitterLocked()),
			}
		}
		c.mu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneActivity(result.([]domain.Activity)), nil
}

// Invalidate drops the cached entry; the next Recent call reloads.
func (c *ActivityCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	delete(c.cache, userID)
	c.gen[userID]++
	c.mu.Unlock()
	return nil
}

func (c *ActivityCache) lookup(userID string, now time.Time) ([]domain.Activity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[userID]
	if !ok || !entry.expiresAt.After(now) {
		return nil, false
	}
	return cloneActivity(entry.items), true
}

func (c *ActivityCache) ttlWithJitterLocked() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func cloneActivity(items []domain.Activity) []domain.Activity {
	if items == nil {
		return nil
	}
	return append([]domain.Activity(nil), items...)
}
