package poster

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/victornm/moviequiz/internal/errors"
	"github.com/victornm/moviequiz/internal/transport"
)

const defaultPosterSize = "w500"

type TMDBConfig struct {
	// APIURL, e.g. https://api.themoviedb.org/3.
	APIURL string
	// ImagesURL, e.g. https://image.tmdb.org.
	ImagesURL  string
	APIKey     string
	PosterSize string
	Fetcher    transport.Fetcher
}

// TMDBLoader resolves an IMDb id through the TMDB find endpoint, then downloads the
// poster image from the TMDB image host.
type TMDBLoader struct {
	api     *url.URL
	images  *url.URL
	apiKey  string
	size    string
	fetcher transport.Fetcher
}

func NewTMDBLoader(c TMDBConfig) (*TMDBLoader, error) {
	api, err := url.Parse(strings.TrimRight(c.APIURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("poster: parse tmdb api url: %w", err)
	}
	images, err := url.Parse(strings.TrimRight(c.ImagesURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("poster: parse tmdb images url: %w", err)
	}

	size := c.PosterSize
	if size == "" {
		size = defaultPosterSize
	}

	return &TMDBLoader{
		api:     api,
		images:  images,
		apiKey:  c.APIKey,
		size:    size,
		fetcher: c.Fetcher,
	}, nil
}

type findResult struct {
	MovieResults []struct {
		PosterPath string `json:"poster_path"`
	} `json:"movie_results"`
}

func (l *TMDBLoader) LoadPoster(ctx context.Context, movieID string) ([]byte, error) {
	path, err := l.resolve(ctx, movieID)
	if err != nil {
		return nil, err
	}

	return download(ctx, l.fetcher, l.posterURL(path), movieID)
}

func (l *TMDBLoader) resolve(ctx context.Context, movieID string) (string, error) {
	u := l.api.JoinPath("find", movieID)
	q := u.Query()
	q.Set("api_key", l.apiKey)
	q.Set("external_source", "imdb_id")
	u.RawQuery = q.Encode()

	b, err := l.fetcher.Fetch(ctx, u.String())
	if err != nil {
		return "", err
	}

	var res findResult
	if err := json.Unmarshal(b, &res); err != nil {
		return "", errors.New(errors.CodeParse,
			errors.WithMessagef("decode tmdb find for %s", movieID),
			errors.WithCause(err))
	}

	if len(res.MovieResults) == 0 {
		return "", errors.New(errors.CodeNoCrossReference,
			errors.WithMessagef("tmdb has no movie for %s", movieID))
	}

	path := res.MovieResults[0].PosterPath
	if path == "" {
		return "", errors.New(errors.CodeNoPoster,
			errors.WithMessagef("tmdb movie %s has no poster", movieID))
	}

	return path, nil
}

// posterURL builds <images>/t/p/<size><path>; path already starts with a slash.
func (l *TMDBLoader) posterURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return l.images.String() + "/t/p/" + l.size + path
}
