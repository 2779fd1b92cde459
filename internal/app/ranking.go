package app

import (
	"context"

	"mathquiz-leaderboard/internal/domain"
)

// RankingEngine answers high-score and rank questions for one configuration.
// It only reads from the store.
type RankingEngine struct {
	store ScoreStore
}

func NewRankingEngine(store ScoreStore) *RankingEngine {
	return &RankingEngine{store: store}
}

// CheckHighScore compares a candidate with the best stored score of its configuration.
// Only a strictly greater score counts; ties keep the current best.
func (e *RankingEngine) CheckHighScore(ctx context.Context, candidate domain.HighScoreCandidate) (domain.HighScoreResult, error) {
	candidate, err := candidate.Normalize()
	if err != nil {
		return domain.HighScoreResult{}, err
	}

	records, err := e.store.QueryByConfiguration(ctx, candidate.Configuration)
	if err != nil {
		return domain.HighScoreResult{}, storageErr("check high score", err)
	}

	best, ok := bestOf(records)
	if !ok {
		return domain.HighScoreResult{IsHighScore: true, PreviousBest: 0}, nil
	}
	return domain.HighScoreResult{
		IsHighScore:  candidate.Score > best.Score,
		PreviousBest: best.Score,
	}, nil
}

// ComputeRank returns the position of a stored score within its configuration
// and the number of scores sharing that configuration.
func (e *RankingEngine) ComputeRank(ctx context.Context, scoreID int64) (domain.Rank, error) {
	record, err := e.store.GetByID(ctx, scoreID)
	if err != nil {
		return domain.Rank{}, storageErr("load score", err)
	}

	partition, err := e.store.QueryByConfiguration(ctx, record.Configuration)
	if err != nil {
		return domain.Rank{}, storageErr("load partition", err)
	}
	return rankWithin(partition, record), nil
}

func bestOf(records []domain.ScoreRecord) (domain.ScoreRecord, bool) {
	if len(records) == 0 {
		return domain.ScoreRecord{}, false
	}
	best := records[0]
	for _, r := range records[1:] {
		if domain.Ahead(r, best) {
			best = r
		}
	}
	return best, true
}

// rankWithin counts the records ahead of target. The target always counts
// toward the total, even when a stale snapshot does not contain it yet.
func rankWithin(partition []domain.ScoreRecord, target domain.ScoreRecord) domain.Rank {
	ahead, total := 0, 0
	seen := false
	for _, r := range partition {
		total++
		if r.ID == target.ID {
			seen = true
			continue
		}
		if domain.Ahead(r, target) {
			ahead++
		}
	}
	if !seen {
		total++
	}
	return domain.Rank{Rank: ahead + 1, Total: total}
}
