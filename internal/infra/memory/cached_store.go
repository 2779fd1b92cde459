package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"mathquiz-leaderboard/internal/app"
	"mathquiz-leaderboard/internal/domain"
)

const allScoresKey = "*"

// CachedStore keeps partition reads of a backing store in process memory with a TTL.
// Inserts made through it drop the touched partition and the global view.
type CachedStore struct {
	app.ScoreStore

	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand
	rndMu sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedScores
	// generations move on every insert; a fetch that started under an older
	// generation must not refill the cache.
	generations map[string]uint64
}

type cachedScores struct {
	records   []domain.ScoreRecord
	expiresAt time.Time
}

func NewCachedStore(store app.ScoreStore, ttl time.Duration) *CachedStore {
	return &CachedStore{
		ScoreStore:  store,
		ttl:         ttl,
		clock:       time.Now,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:       make(map[string]cachedScores),
		generations: make(map[string]uint64),
	}
}

func (c *CachedStore) Insert(ctx context.Context, score domain.NewScore) (int64, error) {
	id, err := c.ScoreStore.Insert(ctx, score)
	if err != nil {
		return 0, err
	}
	c.invalidate(score.Key(), allScoresKey)
	return id, nil
}

func (c *CachedStore) QueryByConfiguration(ctx context.Context, cfg domain.Configuration) ([]domain.ScoreRecord, error) {
	return c.load(ctx, cfg.Key(), func(ctx context.Context) ([]domain.ScoreRecord, error) {
		return c.ScoreStore.QueryByConfiguration(ctx, cfg)
	})
}

func (c *CachedStore) QueryAll(ctx context.Context) ([]domain.ScoreRecord, error) {
	return c.load(ctx, allScoresKey, func(ctx context.Context) ([]domain.ScoreRecord, error) {
		return c.ScoreStore.QueryAll(ctx)
	})
}

// QueryTop is not cached: it goes to the backing store's indexed query when
// there is one and falls back to the cached global view otherwise.
func (c *CachedStore) QueryTop(ctx context.Context, limit int) ([]domain.ScoreRecord, error) {
	if top, ok := c.ScoreStore.(app.TopQuerier); ok {
		return top.QueryTop(ctx, limit)
	}
	return c.QueryAll(ctx)
}

func (c *CachedStore) invalidate(keys ...string) {
	c.mu.Lock()
	for _, key := range keys {
		c.generations[key]++
		delete(c.cache, key)
	}
	c.mu.Unlock()
	// later readers must not join a flight that started before the insert
	for _, key := range keys {
		c.sf.Forget(key)
	}
}

func (c *CachedStore) load(ctx context.Context, key string, fetch func(context.Context) ([]domain.ScoreRecord, error)) ([]domain.ScoreRecord, error) {
	if records, ok := c.lookup(key); ok {
		return records, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if records, ok := c.lookup(key); ok {
			return records, nil
		}

		c.mu.RLock()
		generation := c.generations[key]
		c.mu.RUnlock()

		// The flight is shared, so one caller going away must not fail the others.
		records, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if ttl := c.ttlWithJitter(); ttl > 0 {
			c.mu.Lock()
			if c.generations[key] == generation {
				c.cache[key] = cachedScores{records: records, expiresAt: c.clock().Add(ttl)}
			}
			c.mu.Unlock()
		}
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.ScoreRecord), nil
}

func (c *CachedStore) lookup(key string) ([]domain.ScoreRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[key]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return entry.records, true
}

func (c *CachedStore) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
