package app

import (
	"context"
	"errors"

	"mathquiz-leaderboard/internal/domain"
)

// ScoreStore is the append-only persistence for score records (Postgres, in-memory, cached).
// Implementations assign ids from their native sequence and return
// domain.ErrScoreNotFound from GetByID for unknown ids.
type ScoreStore interface {
	Insert(ctx context.Context, score domain.NewScore) (int64, error)
	GetByID(ctx context.Context, id int64) (domain.ScoreRecord, error)
	QueryByConfiguration(ctx context.Context, cfg domain.Configuration) ([]domain.ScoreRecord, error)
	QueryAll(ctx context.Context) ([]domain.ScoreRecord, error)
}

// TopQuerier is implemented by stores that can answer the global view without
// reading every record. QueryTop returns the best limit records; callers still
// sort and cut, so an implementation may return more.
type TopQuerier interface {
	QueryTop(ctx context.Context, limit int) ([]domain.ScoreRecord, error)
}

// UpdateNotifier fans out "this leaderboard changed" signals to live viewers.
type UpdateNotifier interface {
	Publish(ctx context.Context, cfg domain.Configuration) error
	// Subscribe returns a channel of updated configurations.
	// The caller must invoke the returned cancel function to avoid leaks.
	Subscribe(ctx context.Context) (<-chan domain.Configuration, func(), error)
}

// storageErr wraps a store failure once. Not-found and already wrapped errors pass through.
func storageErr(op string, err error) error {
	if err == nil || errors.Is(err, domain.ErrScoreNotFound) || errors.Is(err, domain.ErrStorage) {
		return err
	}
	return &domain.StorageError{Op: op, Err: err}
}
