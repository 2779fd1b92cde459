package memory

import (
	"context"
	"sync"
	"time"

	"mathquiz-leaderboard/internal/domain"
)

// ScoreStore is an in-memory implementation of app.ScoreStore.
type ScoreStore struct {
	now func() time.Time

	mu      sync.RWMutex
	lastID  int64
	records []domain.ScoreRecord
}

func NewScoreStore() *ScoreStore {
	return NewScoreStoreWithClock(time.Now)
}

// NewScoreStoreWithClock allows deterministic timestamps in tests.
func NewScoreStoreWithClock(now func() time.Time) *ScoreStore {
	return &ScoreStore{now: now}
}

func (s *ScoreStore) Insert(_ context.Context, score domain.NewScore) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	s.records = append(s.records, domain.ScoreRecord{
		ID:            s.lastID,
		Nickname:      score.Nickname,
		Configuration: score.Configuration,
		Score:         score.Score,
		Percentage:    score.Percentage,
		CreatedAt:     s.now(),
	})
	return s.lastID, nil
}

func (s *ScoreStore) GetByID(_ context.Context, id int64) (domain.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// ids are dense and start at 1
	if id < 1 || id > int64(len(s.records)) {
		return domain.ScoreRecord{}, domain.ErrScoreNotFound
	}
	return s.records[id-1], nil
}

func (s *ScoreStore) QueryByConfiguration(_ context.Context, cfg domain.Configuration) ([]domain.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ScoreRecord, 0)
	for _, r := range s.records {
		if r.Configuration == cfg {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *ScoreStore) QueryAll(_ context.Context) ([]domain.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ScoreRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}
