package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/victornm/moviequiz/internal/domain"
	"github.com/victornm/moviequiz/internal/errors"
	"github.com/victornm/moviequiz/internal/transport"
)

type Config struct {
	// BaseURL of the IMDb API, e.g. https://imdb-api.com/en/API.
	BaseURL string
	APIKey  string
	Fetcher transport.Fetcher
}

// Loader fetches the most popular movies list.
type Loader struct {
	endpoint string
	fetcher  transport.Fetcher
}

func NewLoader(c Config) (*Loader, error) {
	if c.Fetcher == nil {
		return nil, fmt.Errorf("catalog: fetcher is required")
	}

	base, err := url.Parse(strings.TrimRight(c.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("catalog: parse base url: %w", err)
	}

	return &Loader{
		endpoint: base.JoinPath("MostPopularMovies", c.APIKey).String(),
		fetcher:  c.Fetcher,
	}, nil
}

// envelope is decoded before the payload: the API reports errors with HTTP 200.
type envelope struct {
	ErrorMessage string `json:"errorMessage"`
}

type mostPopularMovies struct {
	Items []mostPopularMovie `json:"items"`
}

type mostPopularMovie struct {
	ID       string `json:"id"`
	Title    string `json:"fullTitle"`
	Rating   string `json:"imDbRating"`
	ImageURL string `json:"image"`
}

// LoadCatalog fetches and parses the catalog.
func (l *Loader) LoadCatalog(ctx context.Context) ([]domain.Movie, error) {
	b, err := l.fetcher.Fetch(ctx, l.endpoint)
	if err != nil {
		return nil, err
	}

	movies, err := Parse(b)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "catalog: loaded", "movies", len(movies))
	return movies, nil
}

// Parse decodes a most popular movies response.
func Parse(b []byte) ([]domain.Movie, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, errors.New(errors.CodeParse,
			errors.WithMessagef("decode catalog envelope"),
			errors.WithCause(err))
	}
	if env.ErrorMessage != "" {
		return nil, errors.RemoteAPI(env.ErrorMessage)
	}

	var payload mostPopularMovies
	if err := json.Unmarshal(b, &payload); err != nil {
		return nil, errors.New(errors.CodeParse,
			errors.WithMessagef("decode catalog"),
			errors.WithCause(err))
	}

	movies := make([]domain.Movie, 0, len(payload.Items))
	for _, item := range payload.Items {
		rating, err := domain.ParseRating(item.Rating)
		if err != nil {
			return nil, errors.New(errors.CodeParse,
				errors.WithMessagef("movie %s", item.ID),
				errors.WithCause(err))
		}

		movies = append(movies, domain.Movie{
			ID:       item.ID,
			Title:    item.Title,
			Rating:   rating,
			ImageURL: item.ImageURL,
		})
	}

	return movies, nil
}
