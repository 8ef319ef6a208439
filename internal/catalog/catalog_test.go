package catalog_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/moviequiz/internal/catalog"
	"github.com/victornm/moviequiz/internal/errors"
	"github.com/victornm/moviequiz/internal/transport"
)

const popularMovies = `{
	"errorMessage": "",
	"items": [
		{
			"crew": "Dan Trachtenberg (dir.), Amber Midthunder, Dakota Beavers",
			"fullTitle": "Prey (2022)",
			"id": "tt11866324",
			"imDbRating": "7.2",
			"imDbRatingCount": "93332",
			"image": "https://m.media-amazon.com/images/M/prey.jpg",
			"rank": "1",
			"title": "Prey",
			"year": "2022"
		},
		{
			"crew": "Anthony Russo (dir.), Ryan Gosling, Chris Evans",
			"fullTitle": "The Gray Man (2022)",
			"id": "tt1649418",
			"imDbRating": "6.5",
			"imDbRatingCount": "132890",
			"image": "https://m.media-amazon.com/images/M/grayman.jpg",
			"rank": "2",
			"title": "The Gray Man",
			"year": "2022"
		},
		{
			"fullTitle": "Unreleased (2025)",
			"id": "tt0000001",
			"imDbRating": "",
			"image": ""
		}
	]
}`

func stubFetcher(body string, err error, seen *string) transport.Fetcher {
	return transport.FetcherFunc(func(ctx context.Context, rawURL string) ([]byte, error) {
		if seen != nil {
			*seen = rawURL
		}
		if err != nil {
			return nil, err
		}
		return []byte(body), nil
	})
}

func newLoader(t *testing.T, f transport.Fetcher) *catalog.Loader {
	t.Helper()
	l, err := catalog.NewLoader(catalog.Config{
		BaseURL: "https://imdb-api.com/en/API/",
		APIKey:  "k_test",
		Fetcher: f,
	})
	require.NoError(t, err)
	return l
}

func TestLoader_LoadCatalog(t *testing.T) {
	var seen string
	l := newLoader(t, stubFetcher(popularMovies, nil, &seen))

	movies, err := l.LoadCatalog(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "https://imdb-api.com/en/API/MostPopularMovies/k_test", seen)
	require.Len(t, movies, 3)
	assert.Equal(t, "tt11866324", movies[0].ID)
	assert.Equal(t, "Prey (2022)", movies[0].Title)
	assert.True(t, decimal.RequireFromString("7.2").Equal(movies[0].Rating))
	assert.True(t, decimal.RequireFromString("6.5").Equal(movies[1].Rating))
	assert.True(t, decimal.Zero.Equal(movies[2].Rating), "empty rating should be zero")
}

func TestLoader_Failures(t *testing.T) {
	tests := map[string]struct {
		body     string
		fetchErr error
		wantCode errors.Code
	}{
		"transport failure is propagated": {
			fetchErr: errors.Transport(stderrors.New("no route to host")),
			wantCode: errors.CodeTransport,
		},
		"error envelope on success": {
			body:     `{"errorMessage":"Invalid API Key","items":[]}`,
			wantCode: errors.CodeRemoteAPI,
		},
		"malformed json": {
			body:     `not-json`,
			wantCode: errors.CodeParse,
		},
		"items of wrong shape": {
			body:     `{"errorMessage":"","items":{"id":"tt1"}}`,
			wantCode: errors.CodeParse,
		},
		"non numeric rating": {
			body:     `{"errorMessage":"","items":[{"id":"tt1","fullTitle":"X","imDbRating":"N/A"}]}`,
			wantCode: errors.CodeParse,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			l := newLoader(t, stubFetcher(tt.body, tt.fetchErr, nil))

			movies, err := l.LoadCatalog(context.Background())
			require.Error(t, err)
			assert.Nil(t, movies)
			assert.True(t, errors.HasCode(err, tt.wantCode), "unexpected error: %v", err)
		})
	}
}

func TestLoader_RemoteAPIMessage(t *testing.T) {
	l := newLoader(t, stubFetcher(`{"errorMessage":"Maximum usage reached"}`, nil, nil))

	_, err := l.LoadCatalog(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Maximum usage reached", errors.Convert(err).Message)
}

func TestNewLoader_RequiresFetcher(t *testing.T) {
	_, err := catalog.NewLoader(catalog.Config{BaseURL: "https://imdb-api.com/en/API"})
	require.Error(t, err)
}
