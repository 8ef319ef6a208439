package api_test

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/victornm/moviequiz/internal/api"
	"github.com/victornm/moviequiz/internal/domain"
	"github.com/victornm/moviequiz/internal/game"
)

type fakeStats struct {
	stats domain.Stats
	err   error
}

func (s fakeStats) Stats(context.Context) (domain.Stats, error) { return s.stats, s.err }

type fakeGame struct {
	session domain.GameSession
	state   game.State
}

func (g fakeGame) Snapshot() (domain.GameSession, game.State) { return g.session, g.state }

func TestAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)

	id := uuid.MustParse("0b4f3c5e-8c2a-4d3e-9f10-2a6c1d7e8f90")
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		stats    fakeStats
		game     fakeGame
		path     string
		wantCode int
		wantBody string
	}{
		"health": {
			path:     "/healthz",
			wantCode: http.StatusOK,
			wantBody: `{"status":"ok"}`,
		},
		"stats": {
			stats: fakeStats{stats: domain.Stats{
				TotalAccuracy: 0.75,
				GamesCount:    2,
				BestGame:      domain.GameRecord{Correct: 9, Total: 10, Date: t0},
			}},
			path:     "/stats",
			wantCode: http.StatusOK,
			wantBody: `{"total_accuracy":0.75,"games_count":2,"best_game":{"correct":9,"total":10,"date":"2024-03-01T10:00:00Z"}}`,
		},
		"stats backend down": {
			stats:    fakeStats{err: stderrors.New("dial tcp: connection refused")},
			path:     "/stats",
			wantCode: http.StatusInternalServerError,
			wantBody: `{"code":"internal error","error":"internal error: dial tcp: connection refused"}`,
		},
		"session": {
			game: fakeGame{
				session: domain.GameSession{
					ID:                id,
					Current:           &domain.Question{Text: "Is the rating of this movie greater than 7?"},
					Number:            3,
					Score:             2,
					QuestionsPerRound: 10,
				},
				state: game.StateQuestionDisplayed,
			},
			path:     "/session",
			wantCode: http.StatusOK,
			wantBody: `{"id":"0b4f3c5e-8c2a-4d3e-9f10-2a6c1d7e8f90","number":3,"score":2,"questions_per_round":10,
				"state":"question_displayed","counter":"3/10","question":"Is the rating of this movie greater than 7?"}`,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			e := gin.New()
			api.New(api.Config{Engine: e, Stats: tt.stats, Game: tt.game})

			w := httptest.NewRecorder()
			e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}
