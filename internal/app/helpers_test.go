package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"mathquiz-leaderboard/internal/app"
	"mathquiz-leaderboard/internal/domain"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Insert(ctx context.Context, score domain.NewScore) (int64, error) {
	args := m.Called(ctx, score)
	id, _ := args.Get(0).(int64)
	return id, args.Error(1)
}

func (m *mockStore) GetByID(ctx context.Context, id int64) (domain.ScoreRecord, error) {
	args := m.Called(ctx, id)
	record, _ := args.Get(0).(domain.ScoreRecord)
	return record, args.Error(1)
}

func (m *mockStore) QueryByConfiguration(ctx context.Context, cfg domain.Configuration) ([]domain.ScoreRecord, error) {
	args := m.Called(ctx, cfg)
	records, _ := args.Get(0).([]domain.ScoreRecord)
	return records, args.Error(1)
}

func (m *mockStore) QueryAll(ctx context.Context) ([]domain.ScoreRecord, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]domain.ScoreRecord)
	return records, args.Error(1)
}

func easyAddition() domain.Configuration {
	return domain.Configuration{
		Operation:     domain.OperationAddition,
		NumberUsed:    3,
		Rounds:        5,
		TimerDuration: 10,
		Difficulty:    "easy",
	}
}

func candidate(cfg domain.Configuration, score int) domain.HighScoreCandidate {
	return domain.HighScoreCandidate{
		Configuration: cfg,
		Score:         score,
		Percentage:    domain.Percentage(score, cfg.Rounds),
	}
}

func newScore(cfg domain.Configuration, nickname string, score int) domain.NewScore {
	return domain.NewScore{
		Nickname:      nickname,
		Configuration: cfg,
		Score:         score,
		Percentage:    domain.Percentage(score, cfg.Rounds),
	}
}

func insert(t *testing.T, store app.ScoreStore, cfg domain.Configuration, nickname string, score int) int64 {
	t.Helper()
	id, err := store.Insert(context.Background(), newScore(cfg, nickname, score))
	require.NoError(t, err)
	return id
}
