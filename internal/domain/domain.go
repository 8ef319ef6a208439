package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/victornm/moviequiz/internal/errors"
)

// Movie is one entry of the most popular movies catalog.
type Movie struct {
	ID       string
	Title    string
	Rating   decimal.Decimal
	ImageURL string
}

// Question is a single true/false quiz question built from a movie.
type Question struct {
	MovieID       string
	Image         []byte
	Text          string
	CorrectAnswer bool
}

// ParseRating converts the upstream rating string. An empty string is a zero rating.
func ParseRating(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.New(errors.CodeParse,
			errors.WithMessagef("invalid rating %q", s),
			errors.WithCause(err))
	}

	return d, nil
}

// GameRecord is a snapshot of a finished round.
type GameRecord struct {
	Correct int       `json:"correct"`
	Total   int       `json:"total"`
	Date    time.Time `json:"date"`
}

// Score is the ratio of correct answers. A record without questions scores zero.
func (r GameRecord) Score() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Total)
}

// Better reports whether r outranks o: a higher correct/total ratio wins and an equal
// ratio is won by the more recent record.
func (r GameRecord) Better(o GameRecord) bool {
	if c := compareRatio(r, o); c != 0 {
		return c > 0
	}
	return r.Date.After(o.Date)
}

func compareRatio(a, b GameRecord) int {
	if a.Total == 0 || b.Total == 0 {
		// one side is exactly 0, float comparison is safe
		as, bs := a.Score(), b.Score()
		switch {
		case as > bs:
			return 1
		case as < bs:
			return -1
		}
		return 0
	}

	// cross-multiplied so equal ratios compare exactly
	lhs, rhs := a.Correct*b.Total, b.Correct*a.Total
	switch {
	case lhs > rhs:
		return 1
	case lhs < rhs:
		return -1
	}
	return 0
}

func (r GameRecord) Equal(o GameRecord) bool {
	return r.Correct == o.Correct && r.Total == o.Total && r.Date.Equal(o.Date)
}

func (r GameRecord) String() string {
	return fmt.Sprintf("%d/%d", r.Correct, r.Total)
}

// Stats is the persisted aggregate over all recorded rounds.
type Stats struct {
	TotalAccuracy float64    `json:"total_accuracy"`
	GamesCount    int        `json:"games_count"`
	BestGame      GameRecord `json:"best_game"`
}

// GameSession is the mutable state of the round being played.
type GameSession struct {
	ID                uuid.UUID `json:"id"`
	Current           *Question `json:"-"`
	Number            int       `json:"number"`
	Score             int       `json:"score"`
	QuestionsPerRound int       `json:"questions_per_round"`
}

// Counter renders the "N/M" progress label.
func (s GameSession) Counter() string {
	return fmt.Sprintf("%d/%d", s.Number, s.QuestionsPerRound)
}
