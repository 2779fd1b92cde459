package app

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"mathquiz-leaderboard/internal/domain"
)

// ScoreService is the entry point for game clients: it saves finished games and
// exposes the ranking and leaderboard queries.
type ScoreService struct {
	store    ScoreStore
	ranking  *RankingEngine
	boards   *LeaderboardService
	notifier UpdateNotifier
	log      *zap.Logger
}

// NewScoreService wires the use cases over a store. notifier may be nil.
func NewScoreService(store ScoreStore, notifier UpdateNotifier, opts LeaderboardOptions, log *zap.Logger) *ScoreService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScoreService{
		store:    store,
		ranking:  NewRankingEngine(store),
		boards:   NewLeaderboardService(store, opts),
		notifier: notifier,
		log:      log,
	}
}

// SubmitScore validates and stores a finished game, returning its id.
// Callers are responsible for not submitting the same game twice.
func (s *ScoreService) SubmitScore(ctx context.Context, score domain.NewScore) (int64, error) {
	score, err := score.Normalize()
	if err != nil {
		return 0, err
	}

	id, err := s.store.Insert(ctx, score)
	if err != nil {
		err = storageErr("insert score", err)
		s.log.Error("save score failed", zap.String("configuration", score.Key()), zap.Error(err))
		return 0, err
	}

	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, score.Configuration); err != nil {
			s.log.Warn("publish leaderboard update failed", zap.String("configuration", score.Key()), zap.Error(err))
		}
	}
	s.log.Debug("score saved", zap.Int64("id", id), zap.String("configuration", score.Key()), zap.Int("score", score.Score))
	return id, nil
}

// CheckHighScore reports whether the candidate would beat the current best. Nothing is written.
func (s *ScoreService) CheckHighScore(ctx context.Context, candidate domain.HighScoreCandidate) (domain.HighScoreResult, error) {
	result, err := s.ranking.CheckHighScore(ctx, candidate)
	if err != nil {
		s.logFailure("check high score failed", err)
	}
	return result, err
}

// UserRank returns the rank of a stored score and the size of its leaderboard.
func (s *ScoreService) UserRank(ctx context.Context, scoreID int64) (domain.Rank, error) {
	rank, err := s.ranking.ComputeRank(ctx, scoreID)
	if err != nil {
		s.logFailure("compute rank failed", err, zap.Int64("id", scoreID))
	}
	return rank, err
}

// ScopedLeaderboard returns the top entries for one configuration.
func (s *ScoreService) ScopedLeaderboard(ctx context.Context, cfg domain.Configuration, limit int) ([]domain.ScopedEntry, error) {
	entries, err := s.boards.Scoped(ctx, cfg, limit)
	if err != nil {
		s.logFailure("scoped leaderboard failed", err, zap.String("configuration", cfg.Key()))
	}
	return entries, err
}

// GlobalLeaderboard returns the top entries across all configurations.
func (s *ScoreService) GlobalLeaderboard(ctx context.Context, limit int) ([]domain.GlobalEntry, error) {
	entries, err := s.boards.Global(ctx, limit)
	if err != nil {
		s.logFailure("global leaderboard failed", err)
	}
	return entries, err
}

// Updates subscribes to leaderboard change signals. It returns nil channel and
// a no-op cancel when no notifier is configured.
func (s *ScoreService) Updates(ctx context.Context) (<-chan domain.Configuration, func(), error) {
	if s.notifier == nil {
		return nil, func() {}, nil
	}
	return s.notifier.Subscribe(ctx)
}

// logFailure logs storage errors only; validation and not-found are caller problems.
func (s *ScoreService) logFailure(msg string, err error, fields ...zap.Field) {
	if !errors.Is(err, domain.ErrStorage) {
		return
	}
	s.log.Error(msg, append(fields, zap.Error(err))...)
}
