package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"mathquiz-leaderboard/internal/domain"
)

const scoreColumns = `id, nickname, operation, number_used, rounds, timer_duration, difficulty, score, percentage, created_at`

// ScoreStore persists scores in the Postgres "scores" table.
type ScoreStore struct {
	pool *pgxpool.Pool
}

func NewScoreStore(pool *pgxpool.Pool) *ScoreStore {
	return &ScoreStore{pool: pool}
}

func (s *ScoreStore) Insert(ctx context.Context, score domain.NewScore) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO scores (nickname, operation, number_used, rounds, timer_duration, difficulty, score, percentage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, score.Nickname, string(score.Operation), score.NumberUsed, score.Rounds, score.TimerDuration,
		score.Difficulty, score.Score, score.Percentage).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert score: %w", err)
	}
	return id, nil
}

func (s *ScoreStore) GetByID(ctx context.Context, id int64) (domain.ScoreRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+scoreColumns+` FROM scores WHERE id = $1`, id)
	record, err := scanScore(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ScoreRecord{}, domain.ErrScoreNotFound
	}
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("load score %d: %w", id, err)
	}
	return record, nil
}

func (s *ScoreStore) QueryByConfiguration(ctx context.Context, cfg domain.Configuration) ([]domain.ScoreRecord, error) {
	return s.query(ctx, `
		SELECT `+scoreColumns+`
		FROM scores
		WHERE operation = $1
		AND number_used = $2
		AND rounds = $3
		AND timer_duration = $4
		AND difficulty = $5
		ORDER BY score DESC, percentage DESC, id
	`, string(cfg.Operation), cfg.NumberUsed, cfg.Rounds, cfg.TimerDuration, cfg.Difficulty)
}

func (s *ScoreStore) QueryAll(ctx context.Context) ([]domain.ScoreRecord, error) {
	return s.query(ctx, `SELECT `+scoreColumns+` FROM scores ORDER BY score DESC, percentage DESC, id`)
}

// QueryTop reads only the best limit rows, served by the ranking index.
func (s *ScoreStore) QueryTop(ctx context.Context, limit int) ([]domain.ScoreRecord, error) {
	return s.query(ctx, `SELECT `+scoreColumns+` FROM scores ORDER BY score DESC, percentage DESC, id LIMIT $1`, limit)
}

func (s *ScoreStore) query(ctx context.Context, sql string, args ...interface{}) ([]domain.ScoreRecord, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ScoreRecord, 0)
	for rows.Next() {
		record, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// scanScore reads one row. Integer columns are scanned into int64 and narrowed
// here so callers only ever see typed ints.
func scanScore(row pgx.Row) (domain.ScoreRecord, error) {
	var r domain.ScoreRecord
	var operation string
	var numberUsed, rounds, timerDuration, score, percentage int64
	if err := row.Scan(&r.ID, &r.Nickname, &operation, &numberUsed, &rounds, &timerDuration,
		&r.Difficulty, &score, &percentage, &r.CreatedAt); err != nil {
		return domain.ScoreRecord{}, err
	}
	r.Operation = domain.Operation(operation)
	r.NumberUsed = int(numberUsed)
	r.Rounds = int(rounds)
	r.TimerDuration = int(timerDuration)
	r.Score = int(score)
	r.Percentage = int(percentage)
	return r, nil
}
