package domain

import (
	"math"
	"strings"
	"unicode/utf8"
)

const (
	MaxNicknameLength   = 50
	MaxDifficultyLength = 20
)

// Percentage returns the stored percentage for a score. It divides before
// scaling, the same float steps game clients take, so 23/40 is 57 and not 58.
func Percentage(score, rounds int) int {
	if rounds <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(rounds) * 100))
}

// Normalize trims the difficulty and checks that the configuration describes a playable game.
func (c Configuration) Normalize() (Configuration, error) {
	c.Difficulty = strings.TrimSpace(c.Difficulty)
	return c, c.validate()
}

func (c Configuration) validate() error {
	if !c.Operation.Valid() {
		return invalid("operation", "unsupported operation %q", c.Operation)
	}
	if c.NumberUsed < 0 {
		return invalid("numberUsed", "must not be negative")
	}
	if c.Rounds < 1 {
		return invalid("rounds", "must be at least 1")
	}
	if c.TimerDuration < 1 {
		return invalid("timerDuration", "must be at least 1")
	}
	if c.Difficulty == "" {
		return invalid("difficulty", "is required")
	}
	if utf8.RuneCountInString(c.Difficulty) > MaxDifficultyLength {
		return invalid("difficulty", "must be %d characters or less", MaxDifficultyLength)
	}
	return nil
}

func validateScore(c Configuration, score int) error {
	if score < 0 || score > c.Rounds {
		return invalid("score", "must be between 0 and %d", c.Rounds)
	}
	return nil
}

// Normalize validates the candidate before it is compared with stored scores.
func (c HighScoreCandidate) Normalize() (HighScoreCandidate, error) {
	var err error
	if c.Configuration, err = c.Configuration.Normalize(); err != nil {
		return c, err
	}
	if err := validateScore(c.Configuration, c.Score); err != nil {
		return c, err
	}
	if c.Percentage < 0 || c.Percentage > 100 {
		return c, invalid("percentage", "must be between 0 and 100")
	}
	return c, nil
}

// Normalize trims the nickname and difficulty and validates the submission.
// The percentage must match the one derived from score and rounds.
func (s NewScore) Normalize() (NewScore, error) {
	s.Nickname = strings.TrimSpace(s.Nickname)
	if s.Nickname == "" {
		return s, invalid("nickname", "is required")
	}
	if utf8.RuneCountInString(s.Nickname) > MaxNicknameLength {
		return s, invalid("nickname", "must be %d characters or less", MaxNicknameLength)
	}

	var err error
	if s.Configuration, err = s.Configuration.Normalize(); err != nil {
		return s, err
	}
	if err := validateScore(s.Configuration, s.Score); err != nil {
		return s, err
	}
	if want := Percentage(s.Score, s.Rounds); s.Percentage != want {
		return s, invalid("percentage", "expected %d for %d/%d", want, s.Score, s.Rounds)
	}
	return s, nil
}
