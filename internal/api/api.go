// Package api serves the admin HTTP endpoints: aggregate statistics and the live session.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/moviequiz/internal/domain"
	"github.com/victornm/moviequiz/internal/errors"
	"github.com/victornm/moviequiz/internal/game"
)

type Config struct {
	Engine *gin.Engine
	Stats  Stats
	Game   Game
}

type Stats interface {
	Stats(ctx context.Context) (domain.Stats, error)
}

type Game interface {
	Snapshot() (domain.GameSession, game.State)
}

type API struct {
	stats Stats
	game  Game
}

func New(c Config) *API {
	a := &API{
		stats: c.Stats,
		game:  c.Game,
	}

	c.Engine.GET("/healthz", a.Health)
	c.Engine.GET("/stats", a.GetStats)
	c.Engine.GET("/session", a.GetSession)

	return a
}

func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *API) GetStats(c *gin.Context) {
	st, err := a.stats.Stats(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, st)
}

type sessionResponse struct {
	domain.GameSession
	State    string `json:"state"`
	Counter  string `json:"counter"`
	Question string `json:"question,omitempty"`
}

func (a *API) GetSession(c *gin.Context) {
	s, state := a.game.Snapshot()

	resp := sessionResponse{
		GameSession: s,
		State:       state.String(),
		Counter:     s.Counter(),
	}
	if s.Current != nil {
		resp.Question = s.Current.Text
	}

	c.JSON(http.StatusOK, resp)
}

func abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{
		"code":  e.Code.String(),
		"error": e.Error(),
	})
}
