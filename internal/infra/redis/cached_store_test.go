package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"mathquiz-leaderboard/internal/domain"
	"mathquiz-leaderboard/internal/infra/memory"
)

func TestCachedStoreCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	backing := &countingStore{ScoreStore: memory.NewScoreStore()}
	store := NewCachedStore(newClient(mr), backing, time.Minute)
	ctx := context.Background()

	if _, err := backing.Insert(ctx, sampleScore("Mia", 5)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	records, err := store.QueryByConfiguration(ctx, sampleConfig())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 1 || records[0].Nickname != "Mia" {
		t.Fatalf("unexpected records %+v", records)
	}
	if !mr.Exists(partitionKey(sampleConfig())) {
		t.Fatalf("expected partition cached in redis")
	}

	// Second call should hit cache, backing store not queried again.
	records, _ = store.QueryByConfiguration(ctx, sampleConfig())
	if backing.partitionCalls() != 1 {
		t.Fatalf("expected cache hit, backing calls=%d", backing.partitionCalls())
	}
	if len(records) != 1 || records[0].ID != 1 || records[0].Score != 5 {
		t.Fatalf("cached records lost data: %+v", records)
	}
}

func TestCachedStoreInsertClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewCachedStore(newClient(mr), memory.NewScoreStore(), time.Minute)
	ctx := context.Background()

	_, _ = store.QueryByConfiguration(ctx, sampleConfig())
	_, _ = store.QueryAll(ctx)
	if !mr.Exists(allKey) || !mr.Exists(partitionKey(sampleConfig())) {
		t.Fatalf("expected both keys cached")
	}

	if _, err := store.Insert(ctx, sampleScore("Leo", 3)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if mr.Exists(allKey) || mr.Exists(partitionKey(sampleConfig())) {
		t.Fatalf("expected insert to clear cached keys")
	}

	records, _ := store.QueryByConfiguration(ctx, sampleConfig())
	if len(records) != 1 {
		t.Fatalf("expected fresh partition with 1 record, got %d", len(records))
	}
}

func TestCachedStoreFallsBackWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	backing := memory.NewScoreStore()
	store := NewCachedStore(client, backing, time.Minute)
	ctx := context.Background()

	if _, err := store.Insert(ctx, sampleScore("Ana", 4)); err != nil {
		t.Fatalf("insert should not depend on redis: %v", err)
	}
	records, err := store.QueryByConfiguration(ctx, sampleConfig())
	if err != nil {
		t.Fatalf("query should not depend on redis: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestCachedStoreFetchRacingInsertDoesNotRefill(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	backing := newGatedStore()
	store := NewCachedStore(newClient(mr), backing, time.Minute)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = store.QueryByConfiguration(ctx, sampleConfig())
	}()
	<-backing.entered

	if _, err := store.Insert(ctx, sampleScore("Mia", 6)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	close(backing.release)
	<-done

	if mr.Exists(partitionKey(sampleConfig())) {
		t.Fatalf("stale snapshot written back after insert")
	}
	records, err := store.QueryByConfiguration(ctx, sampleConfig())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected insert to be visible after racing fetch, got %d records", len(records))
	}
	if !mr.Exists(partitionKey(sampleConfig())) {
		t.Fatalf("expected fresh partition cached again")
	}
}

func TestCachedStoreInsertInvalidatesAfterClientLeaves(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewCachedStore(newClient(mr), memory.NewScoreStore(), time.Minute)
	_, _ = store.QueryByConfiguration(context.Background(), sampleConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// the in-memory backing store ignores ctx, so the insert itself succeeds
	if _, err := store.Insert(ctx, sampleScore("Leo", 3)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if mr.Exists(partitionKey(sampleConfig())) {
		t.Fatalf("expected partition invalidated despite cancelled request")
	}
}

func TestCachedStoreSharedFetchSurvivesCancelledCaller(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	backing := newGatedStore()
	store := NewCachedStore(newClient(mr), backing, time.Minute)
	if _, err := backing.Insert(context.Background(), sampleScore("Mia", 6)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	go func() {
		_, _ = store.QueryByConfiguration(firstCtx, sampleConfig())
	}()
	<-backing.entered

	errs := make(chan error, 1)
	go func() {
		_, err := store.QueryByConfiguration(context.Background(), sampleConfig())
		errs <- err
	}()
	// give the second caller time to join the flight
	time.Sleep(50 * time.Millisecond)

	cancel()
	close(backing.release)

	select {
	case err := <-errs:
		if err != nil {
			t.Fatalf("second caller failed because the first one left: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("second caller never returned")
	}
}

// gatedStore takes its snapshot, then holds the first partition read until released.
type gatedStore struct {
	*memory.ScoreStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		ScoreStore: memory.NewScoreStore(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
}

func (s *gatedStore) QueryByConfiguration(ctx context.Context, cfg domain.Configuration) ([]domain.ScoreRecord, error) {
	records, err := s.ScoreStore.QueryByConfiguration(ctx, cfg)
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, err
}

type countingStore struct {
	*memory.ScoreStore
	mu    sync.Mutex
	calls int
}

func (s *countingStore) QueryByConfiguration(ctx context.Context, cfg domain.Configuration) ([]domain.ScoreRecord, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.ScoreStore.QueryByConfiguration(ctx, cfg)
}

func (s *countingStore) partitionCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func sampleConfig() domain.Configuration {
	return domain.Configuration{
		Operation:     domain.OperationMultiplication,
		NumberUsed:    7,
		Rounds:        10,
		TimerDuration: 15,
		Difficulty:    "medium",
	}
}

func sampleScore(nickname string, score int) domain.NewScore {
	cfg := sampleConfig()
	return domain.NewScore{
		Nickname:      nickname,
		Configuration: cfg,
		Score:         score,
		Percentage:    domain.Percentage(score, cfg.Rounds),
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
