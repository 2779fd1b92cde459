package app

import (
	"context"

	"mathquiz-leaderboard/internal/domain"
)

const (
	DefaultLimit      = 10
	DefaultMaxLimit   = 100
	DefaultDateLayout = "2006-01-02"
)

// LeaderboardOptions tunes page sizes and how dates are rendered.
type LeaderboardOptions struct {
	DefaultLimit int
	MaxLimit     int
	DateLayout   string
}

// LeaderboardService builds ranked, size-limited leaderboard pages.
type LeaderboardService struct {
	store ScoreStore
	opts  LeaderboardOptions
}

func NewLeaderboardService(store ScoreStore, opts LeaderboardOptions) *LeaderboardService {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = DefaultMaxLimit
	}
	if opts.DefaultLimit > opts.MaxLimit {
		opts.DefaultLimit = opts.MaxLimit
	}
	if opts.DateLayout == "" {
		opts.DateLayout = DefaultDateLayout
	}
	return &LeaderboardService{store: store, opts: opts}
}

// Scoped returns the top entries of one configuration. Ranks are 1-based and contiguous.
func (s *LeaderboardService) Scoped(ctx context.Context, cfg domain.Configuration, limit int) ([]domain.ScopedEntry, error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return nil, err
	}

	records, err := s.store.QueryByConfiguration(ctx, cfg)
	if err != nil {
		return nil, storageErr("load leaderboard", err)
	}

	top := s.top(records, limit)
	entries := make([]domain.ScopedEntry, 0, len(top))
	for i, r := range top {
		entries = append(entries, s.entry(r, i+1))
	}
	return entries, nil
}

// Global returns the top entries across every configuration. Scores from
// different configurations are compared as-is.
func (s *LeaderboardService) Global(ctx context.Context, limit int) ([]domain.GlobalEntry, error) {
	limit = s.limit(limit)

	var (
		records []domain.ScoreRecord
		err     error
	)
	if top, ok := s.store.(TopQuerier); ok {
		records, err = top.QueryTop(ctx, limit)
	} else {
		records, err = s.store.QueryAll(ctx)
	}
	if err != nil {
		return nil, storageErr("load global leaderboard", err)
	}

	top := s.top(records, limit)
	entries := make([]domain.GlobalEntry, 0, len(top))
	for i, r := range top {
		entries = append(entries, domain.GlobalEntry{
			ScopedEntry:   s.entry(r, i+1),
			Configuration: r.Configuration,
		})
	}
	return entries, nil
}

// top sorts a copy of records best first and cuts it to the effective limit.
func (s *LeaderboardService) top(records []domain.ScoreRecord, limit int) []domain.ScoreRecord {
	sorted := make([]domain.ScoreRecord, len(records))
	copy(sorted, records)
	domain.SortRecords(sorted)

	limit = s.limit(limit)
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func (s *LeaderboardService) limit(requested int) int {
	if requested <= 0 {
		return s.opts.DefaultLimit
	}
	if requested > s.opts.MaxLimit {
		return s.opts.MaxLimit
	}
	return requested
}

func (s *LeaderboardService) entry(r domain.ScoreRecord, rank int) domain.ScopedEntry {
	return domain.ScopedEntry{
		ID:         r.ID,
		Nickname:   r.Nickname,
		Score:      r.Score,
		Percentage: r.Percentage,
		CreatedAt:  r.CreatedAt.Format(s.opts.DateLayout),
		Rank:       rank,
	}
}
