package game

import (
	"fmt"
	"strings"

	"github.com/victornm/moviequiz/internal/domain"
)

const (
	titleRoundOver = "This round is over!"
	titlePerfect   = "Perfect result!"
	buttonPlay     = "Play again"
	dateLayout     = "02.01.06 15:04"
)

// View renders the game. Presenter calls it from the event loop only.
type View interface {
	ShowQuestion(text string, image []byte, counter string)
	ShowAnswerFeedback(correct bool)
	ShowLoading()
	HideLoading()
	ShowRetryableError(message string)
	// ShowResults presents the end of a round; onAcknowledge starts the next one.
	ShowResults(r Results, onAcknowledge func())
}

// Results is the end of round summary.
type Results struct {
	Title      string
	Text       string
	ButtonText string

	Round domain.GameRecord
	// Stats is nil when the aggregates could not be read.
	Stats *domain.Stats
}

func newResults(round domain.GameRecord, st *domain.Stats) Results {
	title := titleRoundOver
	if round.Correct == round.Total {
		title = titlePerfect
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your result: %s", round)
	if st != nil {
		fmt.Fprintf(&b, "\nQuizzes played: %d", st.GamesCount)
		fmt.Fprintf(&b, "\nRecord: %s (%s)", st.BestGame, st.BestGame.Date.Local().Format(dateLayout))
		fmt.Fprintf(&b, "\nAverage accuracy: %.2f%%", st.TotalAccuracy*100)
	}

	return Results{
		Title:      title,
		Text:       b.String(),
		ButtonText: buttonPlay,
		Round:      round,
		Stats:      st,
	}
}
