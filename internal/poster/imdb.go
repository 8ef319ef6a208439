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

// IMDbLoader fetches the poster list of a movie and downloads one of them at random.
type IMDbLoader struct {
	base    *url.URL
	apiKey  string
	fetcher transport.Fetcher
	intn    func(n int) int
}

func NewIMDbLoader(baseURL, apiKey string, fetcher transport.Fetcher, intn func(n int) int) (*IMDbLoader, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("poster: parse imdb url: %w", err)
	}
	return &IMDbLoader{
		base:    base,
		apiKey:  apiKey,
		fetcher: fetcher,
		intn:    intn,
	}, nil
}

type imdbPosters struct {
	ErrorMessage string `json:"errorMessage"`
	Posters      []struct {
		Link string `json:"link"`
	} `json:"posters"`
}

func (l *IMDbLoader) LoadPoster(ctx context.Context, movieID string) ([]byte, error) {
	b, err := l.fetcher.Fetch(ctx, l.base.JoinPath("Posters", l.apiKey, movieID).String())
	if err != nil {
		return nil, err
	}

	var payload imdbPosters
	if err := json.Unmarshal(b, &payload); err != nil {
		return nil, errors.New(errors.CodeParse,
			errors.WithMessagef("decode posters of %s", movieID),
			errors.WithCause(err))
	}
	if payload.ErrorMessage != "" {
		return nil, errors.RemoteAPI(payload.ErrorMessage)
	}
	if len(payload.Posters) == 0 {
		return nil, errors.New(errors.CodeNoPoster,
			errors.WithMessagef("no posters for %s", movieID))
	}

	link := payload.Posters[l.intn(len(payload.Posters))].Link
	if link == "" {
		return nil, errors.New(errors.CodeNoPoster,
			errors.WithMessagef("empty poster link for %s", movieID))
	}

	return download(ctx, l.fetcher, link, movieID)
}

func download(ctx context.Context, f transport.Fetcher, link, movieID string) ([]byte, error) {
	img, err := f.Fetch(ctx, link)
	if err != nil {
		return nil, err
	}
	if len(img) == 0 {
		return nil, errors.New(errors.CodeNoPoster,
			errors.WithMessagef("empty poster image for %s", movieID))
	}
	return img, nil
}
