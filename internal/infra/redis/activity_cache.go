package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"edulearn-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ActivityLoader fetches a user's newest results from the backing store.
type ActivityLoader interface {
	LoadActivity(ctx context.Context, userID string, limit int) ([]domain.Activity, error)
}

// ActivityCache caches each user's recent activity in Redis and falls back to a loader on miss.
// Entries are stored as: SET activity:{userID} <json array> PX ttl
// Invalidate bumps activity:{userID}:version; a load only fills the cache if
// the version it started with is still current.
type ActivityCache struct {
	client *redis.Client
	loader ActivityLoader
	limit  int
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

const versionTTL = 24 * time.Hour

// setIfVersion writes KEYS[1] only while KEYS[2] still holds ARGV[1].
var setIfVersion = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if not current then current = '0' end
if current ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

func NewActivityCache(client *redis.Client, loader ActivityLoader, ttl time.Duration) *ActivityCache {
	return &ActivityCache{
		client: client,
		loader: loader,
		limit:  domain.RecentActivityLimit,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ActivityCache) Recent(ctx context.Context, userID string) ([]domain.Activity, error) {
	key := c.key(userID)
	if items, ok := c.read(ctx, key); ok {
		return items, nil
	}

	result, err, _ := c.sf.Do(userID, func() (interface{}, error) {
		// Re-check cache in case another caller filled it.
		if items, ok := c.read(ctx, key); ok {
			return items, nil
		}

		version, versionErr := c.version(ctx, userID)
		items, err := c.loader.LoadActivity(ctx, userID, c.limit)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []domain.Activity{}
		}

		if ttl := c.ttlWithJitter(); ttl > 0 && versionErr == nil {
			if payload, err := json.Marshal(items); err == nil {
				// best-effort: a failed or skipped write only costs a reload
				_ = setIfVersion.Run(ctx, c.client,
					[]string{key, c.versionKey(userID)},
					version, payload, ttl.Milliseconds(),
				).Err()
			}
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Activity), nil
}

// Invalidate removes the cached entry for userID and fences off loads that
// started before it.
func (c *ActivityCache) Invalidate(ctx context.Context, userID string) error {
	versionKey := c.versionKey(userID)
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, versionKey)
	pipe.Expire(ctx, versionKey, versionTTL)
	pipe.Del(ctx, c.key(userID))
	_, err := pipe.Exec(ctx)
	return err
}

func (c *ActivityCache) version(ctx context.Context, userID string) (string, error) {
	v, err := c.client.Get(ctx, c.versionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return v, err
}

func (c *ActivityCache) read(ctx context.Context, key string) ([]domain.Activity, bool) {
	// redis.Nil and connection errors both fall through to the loader
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var items []domain.Activity
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

func (c *ActivityCache) key(userID string) string {
	return "activity:" + userID
}

func (c *ActivityCache) versionKey(userID string) string {
	return "activity:" + userID + ":version"
}

func (c *ActivityCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
