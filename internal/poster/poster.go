// Package poster resolves a movie id to raw poster image bytes.
//
// Two backends exist: IMDbLoader looks posters up directly by IMDb id and picks one at
// random, TMDBLoader cross-references the IMDb id in TMDB and downloads a fixed size
// variant. New selects one from configuration.
package poster

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/victornm/moviequiz/internal/transport"
)

const (
	StrategyIMDb = "imdb"
	StrategyTMDB = "tmdb"
)

// Loader loads the poster image of a movie.
type Loader interface {
	LoadPoster(ctx context.Context, movieID string) ([]byte, error)
}

type Config struct {
	Strategy string

	IMDb struct {
		BaseURL string
		APIKey  string
	}

	TMDB struct {
		APIURL     string
		ImagesURL  string
		APIKey     string
		PosterSize string
	}

	Fetcher transport.Fetcher
	// Intn picks a poster among n candidates. Defaults to math/rand.
	Intn func(n int) int
}

// New returns the backend selected by c.Strategy.
func New(c Config) (Loader, error) {
	if c.Fetcher == nil {
		return nil, fmt.Errorf("poster: fetcher is required")
	}

	switch c.Strategy {
	case StrategyIMDb, "":
		intn := c.Intn
		if intn == nil {
			intn = rand.Intn
		}
		return NewIMDbLoader(c.IMDb.BaseURL, c.IMDb.APIKey, c.Fetcher, intn)
	case StrategyTMDB:
		return NewTMDBLoader(TMDBConfig{
			APIURL:     c.TMDB.APIURL,
			ImagesURL:  c.TMDB.ImagesURL,
			APIKey:     c.TMDB.APIKey,
			PosterSize: c.TMDB.PosterSize,
			Fetcher:    c.Fetcher,
		})
	default:
		return nil, fmt.Errorf("poster: unknown strategy %q", c.Strategy)
	}
}
