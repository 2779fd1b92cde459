package domain

import (
	"fmt"
	"time"
)

// Operation is the arithmetic operation a game was played with.
type Operation string

const (
	OperationAddition       Operation = "addition"
	OperationSubtraction    Operation = "subtraction"
	OperationMultiplication Operation = "multiplication"
	OperationDivision       Operation = "division"
)

// Valid reports whether op is one of the supported operations.
func (op Operation) Valid() bool {
	switch op {
	case OperationAddition, OperationSubtraction, OperationMultiplication, OperationDivision:
		return true
	}
	return false
}

// Configuration identifies a leaderboard. Scores are only ranked against
// scores with an identical configuration.
type Configuration struct {
	Operation     Operation `json:"operation"`
	NumberUsed    int       `json:"numberUsed"`
	Rounds        int       `json:"rounds"`
	TimerDuration int       `json:"timerDuration"`
	Difficulty    string    `json:"difficulty"`
}

// Key is a stable identifier for the partition, used for cache keys and update fan-out.
func (c Configuration) Key() string {
	return fmt.Sprintf("%s:%d:%d:%d:%s", c.Operation, c.NumberUsed, c.Rounds, c.TimerDuration, c.Difficulty)
}

// ScoreRecord is a persisted game result. Records are append-only.
type ScoreRecord struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
	Configuration
	Score      int       `json:"score"`
	Percentage int       `json:"percentage"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewScore is a score submission before the store assigns id and timestamp.
type NewScore struct {
	Nickname string `json:"nickname"`
	Configuration
	Score      int `json:"score"`
	Percentage int `json:"percentage"`
}

// HighScoreCandidate is a finished game checked against its leaderboard before it is saved.
type HighScoreCandidate struct {
	Configuration
	Score      int `json:"score"`
	Percentage int `json:"percentage"`
}

// HighScoreResult reports whether a candidate beats the current best.
type HighScoreResult struct {
	IsHighScore  bool `json:"isHighScore"`
	PreviousBest int  `json:"previousBest"`
}

// Rank is the position of a record within its configuration.
type Rank struct {
	Rank  int `json:"rank"`
	Total int `json:"total"`
}

// ScopedEntry is a row of a single-configuration leaderboard.
type ScopedEntry struct {
	ID         int64  `json:"id"`
	Nickname   string `json:"nickname"`
	Score      int    `json:"score"`
	Percentage int    `json:"percentage"`
	CreatedAt  string `json:"createdAt"`
	Rank       int    `json:"rank"`
}

// GlobalEntry is a row of the cross-configuration leaderboard. It carries the
// configuration so entries from different games can be told apart.
type GlobalEntry struct {
	ScopedEntry
	Configuration
}
