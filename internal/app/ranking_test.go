package app_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"mathquiz-leaderboard/internal/app"
	"mathquiz-leaderboard/internal/domain"
	"mathquiz-leaderboard/internal/infra/memory"
)

func TestHighScoreOnEmptyPartition(t *testing.T) {
	ctx := context.Background()
	engine := app.NewRankingEngine(memory.NewScoreStore())

	res, err := engine.CheckHighScore(ctx, candidate(easyAddition(), 5))
	require.NoError(t, err)
	require.Equal(t, domain.HighScoreResult{IsHighScore: true, PreviousBest: 0}, res)
}

func TestHighScoreRequiresStrictlyGreaterScore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewScoreStore()
	engine := app.NewRankingEngine(store)
	insert(t, store, easyAddition(), "Mia", 3)

	res, err := engine.CheckHighScore(ctx, candidate(easyAddition(), 3))
	require.NoError(t, err)
	require.False(t, res.IsHighScore, "a tie must not unseat the current best")
	require.Equal(t, 3, res.PreviousBest)

	res, err = engine.CheckHighScore(ctx, candidate(easyAddition(), 2))
	require.NoError(t, err)
	require.False(t, res.IsHighScore)
	require.Equal(t, 3, res.PreviousBest)

	res, err = engine.CheckHighScore(ctx, candidate(easyAddition(), 4))
	require.NoError(t, err)
	require.True(t, res.IsHighScore)
	require.Equal(t, 3, res.PreviousBest)
}

func TestHighScoreIgnoresPercentageOnTie(t *testing.T) {
	ctx := context.Background()
	store := memory.NewScoreStore()
	engine := app.NewRankingEngine(store)
	insert(t, store, easyAddition(), "Mia", 3)

	c := candidate(easyAddition(), 3)
	c.Percentage = 100
	res, err := engine.CheckHighScore(ctx, c)
	require.NoError(t, err)
	require.False(t, res.IsHighScore)
}

func TestHighScoreIsReadOnly(t *testing.T) {
	ctx := context.Background()
	store := memory.NewScoreStore()
	engine := app.NewRankingEngine(store)

	for i := 0; i < 3; i++ {
		res, err := engine.CheckHighScore(ctx, candidate(easyAddition(), 5))
		require.NoError(t, err)
		require.True(t, res.IsHighScore)
	}
	all, _ := store.QueryAll(ctx)
	require.Empty(t, all)
}

func TestHighScoreRejectsInvalidCandidate(t *testing.T) {
	store := new(mockStore)
	engine := app.NewRankingEngine(store)

	_, err := engine.CheckHighScore(context.Background(), candidate(easyAddition(), 6))
	require.ErrorIs(t, err, domain.ErrValidation)
	store.AssertNotCalled(t, "QueryByConfiguration", mock.Anything, mock.Anything)
}

func TestComputeRankScenarios(t *testing.T) {
	ctx := context.Background()
	store := memory.NewScoreStore()
	engine := app.NewRankingEngine(store)
	cfg := easyAddition()

	first := insert(t, store, cfg, "Mia", 5)
	rank, err := engine.ComputeRank(ctx, first)
	require.NoError(t, err)
	require.Equal(t, domain.Rank{Rank: 1, Total: 1}, rank)

	res, err := engine.CheckHighScore(ctx, candidate(cfg, 3))
	require.NoError(t, err)
	require.Equal(t, domain.HighScoreResult{IsHighScore: false, PreviousBest: 5}, res)

	second := insert(t, store, cfg, "Leo", 3)
	rank, err = engine.ComputeRank(ctx, second)
	require.NoError(t, err)
	require.Equal(t, domain.Rank{Rank: 2, Total: 2}, rank)
}

func TestComputeRankEarlierSubmissionWinsTie(t *testing.T) {
	ctx := context.Background()
	store := memory.NewScoreStore()
	engine := app.NewRankingEngine(store)

	first := insert(t, store, easyAddition(), "Mia", 5)
	second := insert(t, store, easyAddition(), "Leo", 5)

	r1, err := engine.ComputeRank(ctx, first)
	require.NoError(t, err)
	r2, err := engine.ComputeRank(ctx, second)
	require.NoError(t, err)

	require.Equal(t, 1, r1.Rank)
	require.Equal(t, 2, r2.Rank)
	require.Equal(t, 2, r1.Total)
	require.Equal(t, 2, r2.Total)
}

func TestComputeRankNewBestTakesFirstPlace(t *testing.T) {
	ctx := context.Background()
	store := memory.NewScoreStore()
	engine := app.NewRankingEngine(store)

	for _, s := range []int{2, 4, 4, 1} {
		insert(t, store, easyAddition(), "kid", s)
	}
	best := insert(t, store, easyAddition(), "Ana", 5)

	rank, err := engine.ComputeRank(ctx, best)
	require.NoError(t, err)
	require.Equal(t, domain.Rank{Rank: 1, Total: 5}, rank)
}

func TestComputeRankIsATotalOrderPerPartition(t *testing.T) {
	ctx := context.Background()
	store := memory.NewScoreStore()
	engine := app.NewRankingEngine(store)
	rnd := rand.New(rand.NewSource(7))

	other := easyAddition()
	other.Operation = domain.OperationDivision

	var ids []int64
	for i := 0; i < 25; i++ {
		ids = append(ids, insert(t, store, easyAddition(), "kid", rnd.Intn(6)))
		insert(t, store, other, "noise", rnd.Intn(6))
	}

	seen := make(map[int]int64)
	for _, id := range ids {
		rank, err := engine.ComputeRank(ctx, id)
		require.NoError(t, err)
		require.Equal(t, len(ids), rank.Total)
		require.GreaterOrEqual(t, rank.Rank, 1)
		require.LessOrEqual(t, rank.Rank, rank.Total)
		prev, dup := seen[rank.Rank]
		require.False(t, dup, "ids %d and %d share rank %d", prev, id, rank.Rank)
		seen[rank.Rank] = id

		again, err := engine.ComputeRank(ctx, id)
		require.NoError(t, err)
		require.Equal(t, rank, again)
	}
}

func TestPartitionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := memory.NewScoreStore()
	engine := app.NewRankingEngine(store)

	a := easyAddition()
	b := easyAddition()
	b.TimerDuration = 20

	idA := insert(t, store, a, "Mia", 2)
	insert(t, store, b, "Leo", 5)
	insert(t, store, b, "Ana", 5)

	res, err := engine.CheckHighScore(ctx, candidate(a, 3))
	require.NoError(t, err)
	require.Equal(t, domain.HighScoreResult{IsHighScore: true, PreviousBest: 2}, res)

	rank, err := engine.ComputeRank(ctx, idA)
	require.NoError(t, err)
	require.Equal(t, domain.Rank{Rank: 1, Total: 1}, rank)
}

func TestComputeRankNotFound(t *testing.T) {
	engine := app.NewRankingEngine(memory.NewScoreStore())
	_, err := engine.ComputeRank(context.Background(), 99)
	require.ErrorIs(t, err, domain.ErrScoreNotFound)
	require.NotErrorIs(t, err, domain.ErrStorage)
}

func TestComputeRankCountsTargetMissingFromSnapshot(t *testing.T) {
	store := new(mockStore)
	engine := app.NewRankingEngine(store)
	cfg := easyAddition()

	target := domain.ScoreRecord{ID: 3, Configuration: cfg, Score: 4, Percentage: 80}
	store.On("GetByID", mock.Anything, int64(3)).Return(target, nil).Once()
	store.On("QueryByConfiguration", mock.Anything, cfg).Return([]domain.ScoreRecord{
		{ID: 1, Configuration: cfg, Score: 5, Percentage: 100},
		{ID: 2, Configuration: cfg, Score: 1, Percentage: 20},
	}, nil).Once()

	rank, err := engine.ComputeRank(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, domain.Rank{Rank: 2, Total: 3}, rank)
	store.AssertExpectations(t)
}

func TestRankingStorageFailures(t *testing.T) {
	ctx := context.Background()
	dbErr := errors.New("connection reset")
	cfg := easyAddition()

	store := new(mockStore)
	store.On("QueryByConfiguration", mock.Anything, cfg).Return(nil, dbErr)
	store.On("GetByID", mock.Anything, int64(1)).Return(domain.ScoreRecord{ID: 1, Configuration: cfg}, nil)
	store.On("GetByID", mock.Anything, int64(2)).Return(domain.ScoreRecord{}, dbErr)
	engine := app.NewRankingEngine(store)

	_, err := engine.CheckHighScore(ctx, candidate(cfg, 3))
	require.ErrorIs(t, err, domain.ErrStorage)
	require.ErrorIs(t, err, dbErr)

	_, err = engine.ComputeRank(ctx, 1)
	require.ErrorIs(t, err, domain.ErrStorage)

	_, err = engine.ComputeRank(ctx, 2)
	require.ErrorIs(t, err, domain.ErrStorage)

	var storageErr *domain.StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, "load score", storageErr.Op)
}
