package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"mathquiz-leaderboard/internal/app"
	"mathquiz-leaderboard/internal/domain"
)

// CachedStore caches partition reads in Redis so every instance shares one view.
// Partitions are stored as JSON under scores:partition:{configuration key},
// the global view under scores:all. Inserts through the store delete both and
// bump their generation counters ({key}:gen), which a refill must still match.
type CachedStore struct {
	app.ScoreStore

	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewCachedStore(client *redis.Client, store app.ScoreStore, ttl time.Duration) *CachedStore {
	return &CachedStore{
		ScoreStore: store,
		client:     client,
		ttl:        ttl,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CachedStore) Insert(ctx context.Context, score domain.NewScore) (int64, error) {
	id, err := c.ScoreStore.Insert(ctx, score)
	if err != nil {
		return 0, err
	}

	// The row is committed; the invalidation must happen even if the client left.
	ctx = context.WithoutCancel(ctx)
	keys := []string{partitionKey(score.Configuration), allKey}
	// best-effort; a failed invalidation leaves the entries to expire
	_, _ = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Incr(ctx, generationKey(key))
		}
		pipe.Del(ctx, keys...)
		return nil
	})
	for _, key := range keys {
		c.sf.Forget(key)
	}
	return id, nil
}

func (c *CachedStore) QueryByConfiguration(ctx context.Context, cfg domain.Configuration) ([]domain.ScoreRecord, error) {
	return c.load(ctx, partitionKey(cfg), func(ctx context.Context) ([]domain.ScoreRecord, error) {
		return c.ScoreStore.QueryByConfiguration(ctx, cfg)
	})
}

func (c *CachedStore) QueryAll(ctx context.Context) ([]domain.ScoreRecord, error) {
	return c.load(ctx, allKey, func(ctx context.Context) ([]domain.ScoreRecord, error) {
		return c.ScoreStore.QueryAll(ctx)
	})
}

// QueryTop skips Redis when the backing store has an indexed top-N query;
// caching the whole table to show a handful of rows costs more than it saves.
func (c *CachedStore) QueryTop(ctx context.Context, limit int) ([]domain.ScoreRecord, error) {
	if top, ok := c.ScoreStore.(app.TopQuerier); ok {
		return top.QueryTop(ctx, limit)
	}
	return c.QueryAll(ctx)
}

func (c *CachedStore) load(ctx context.Context, key string, fetch func(context.Context) ([]domain.ScoreRecord, error)) ([]domain.ScoreRecord, error) {
	if records, ok := c.lookup(ctx, key); ok {
		return records, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Shared by every waiting caller, so it must outlive the one that started it.
		ctx := context.WithoutCancel(ctx)

		// Re-check cache in case another goroutine filled it.
		if records, ok := c.lookup(ctx, key); ok {
			return records, nil
		}

		generation, genErr := readGeneration(ctx, c.client, key)
		records, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if genErr == nil {
			c.fill(ctx, key, generation, records)
		}
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.ScoreRecord), nil
}

// fill stores records unless an insert bumped the generation since the fetch began.
func (c *CachedStore) fill(ctx context.Context, key string, generation int64, records []domain.ScoreRecord) {
	ttl := c.ttlWithJitter()
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return
	}
	_ = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx, key)
		if err != nil || current != generation {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, ttl)
			return nil
		})
		return err
	}, generationKey(key))
}

// lookup treats any Redis failure as a miss so the backing store stays authoritative.
func (c *CachedStore) lookup(ctx context.Context, key string) ([]domain.ScoreRecord, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var records []domain.ScoreRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, false
	}
	return records, true
}

func (c *CachedStore) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, g getter, key string) (int64, error) {
	generation, err := g.Get(ctx, generationKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return generation, err
}

const allKey = "scores:all"

func partitionKey(cfg domain.Configuration) string {
	return "scores:partition:" + cfg.Key()
}

func generationKey(key string) string {
	return key + ":gen"
}
