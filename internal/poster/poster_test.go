package poster_test

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/moviequiz/internal/errors"
	"github.com/victornm/moviequiz/internal/poster"
)

// routes is a fake transport answering from a url -> body table and recording calls.
type routes struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	calls  []string
}

func (r *routes) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, rawURL)
	if err, ok := r.errs[rawURL]; ok {
		return nil, err
	}
	body, ok := r.bodies[rawURL]
	if !ok {
		return nil, errors.Transport(stderrors.New("unexpected url " + rawURL))
	}
	return []byte(body), nil
}

const (
	imdbPostersURL = "https://imdb-api.com/en/API/Posters/k_test/tt0111161"
	tmdbFindURL    = "https://api.themoviedb.org/3/find/tt0111161?api_key=secret&external_source=imdb_id"
	tmdbImageURL   = "https://image.tmdb.org/t/p/w500/q6y0Go1tsGEsmtFryDOJo3dEmqu.jpg"
)

func newIMDb(t *testing.T, r *routes, pick int) poster.Loader {
	t.Helper()
	c := poster.Config{Strategy: poster.StrategyIMDb, Fetcher: r}
	c.IMDb.BaseURL = "https://imdb-api.com/en/API"
	c.IMDb.APIKey = "k_test"
	c.Intn = func(n int) int { return pick % n }

	l, err := poster.New(c)
	require.NoError(t, err)
	return l
}

func newTMDB(t *testing.T, r *routes) poster.Loader {
	t.Helper()
	c := poster.Config{Strategy: poster.StrategyTMDB, Fetcher: r}
	c.TMDB.APIURL = "https://api.themoviedb.org/3"
	c.TMDB.ImagesURL = "https://image.tmdb.org"
	c.TMDB.APIKey = "secret"

	l, err := poster.New(c)
	require.NoError(t, err)
	return l
}

func TestIMDbLoader_LoadPoster(t *testing.T) {
	r := &routes{bodies: map[string]string{
		imdbPostersURL: `{"errorMessage":"","posters":[{"link":"https://img.example/a.jpg"},{"link":"https://img.example/b.jpg"}]}`,
		"https://img.example/a.jpg": "AAA",
		"https://img.example/b.jpg": "BBB",
	}}

	img, err := newIMDb(t, r, 1).LoadPoster(context.Background(), "tt0111161")
	require.NoError(t, err)
	assert.Equal(t, "BBB", string(img))
	assert.Equal(t, []string{imdbPostersURL, "https://img.example/b.jpg"}, r.calls)
}

func TestIMDbLoader_Failures(t *testing.T) {
	tests := map[string]struct {
		body     string
		err      error
		wantCode errors.Code
	}{
		"network failure": {
			err:      errors.Transport(stderrors.New("reset by peer")),
			wantCode: errors.CodeTransport,
		},
		"error envelope": {
			body:     `{"errorMessage":"Invalid API Key","posters":[]}`,
			wantCode: errors.CodeRemoteAPI,
		},
		"empty poster list": {
			body:     `{"errorMessage":"","posters":[]}`,
			wantCode: errors.CodeNoPoster,
		},
		"malformed payload": {
			body:     `{"posters":"nope"}`,
			wantCode: errors.CodeParse,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := &routes{bodies: map[string]string{imdbPostersURL: tt.body}}
			if tt.err != nil {
				r.errs = map[string]error{imdbPostersURL: tt.err}
			}

			_, err := newIMDb(t, r, 0).LoadPoster(context.Background(), "tt0111161")
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.wantCode), "unexpected error: %v", err)
			assert.Len(t, r.calls, 1, "image must not be downloaded")
		})
	}
}

func TestTMDBLoader_LoadPoster(t *testing.T) {
	r := &routes{bodies: map[string]string{
		tmdbFindURL:  `{"movie_results":[{"poster_path":"/q6y0Go1tsGEsmtFryDOJo3dEmqu.jpg"}],"tv_results":[]}`,
		tmdbImageURL: "\x89PNG",
	}}

	img, err := newTMDB(t, r).LoadPoster(context.Background(), "tt0111161")
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(img))
	assert.Equal(t, []string{tmdbFindURL, tmdbImageURL}, r.calls)
}

func TestTMDBLoader_Failures(t *testing.T) {
	tests := map[string]struct {
		findBody  string
		findErr   error
		imageBody string
		wantCode  errors.Code
		wantCalls int
	}{
		"no cross reference match skips second hop": {
			findBody:  `{"movie_results":[]}`,
			wantCode:  errors.CodeNoCrossReference,
			wantCalls: 1,
		},
		"match without poster skips second hop": {
			findBody:  `{"movie_results":[{"poster_path":""}]}`,
			wantCode:  errors.CodeNoPoster,
			wantCalls: 1,
		},
		"find network failure": {
			findErr:   errors.Transport(stderrors.New("timeout")),
			wantCode:  errors.CodeTransport,
			wantCalls: 1,
		},
		"empty image body": {
			findBody:  `{"movie_results":[{"poster_path":"/q6y0Go1tsGEsmtFryDOJo3dEmqu.jpg"}]}`,
			imageBody: "",
			wantCode:  errors.CodeNoPoster,
			wantCalls: 2,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := &routes{bodies: map[string]string{
				tmdbFindURL:  tt.findBody,
				tmdbImageURL: tt.imageBody,
			}}
			if tt.findErr != nil {
				r.errs = map[string]error{tmdbFindURL: tt.findErr}
			}

			_, err := newTMDB(t, r).LoadPoster(context.Background(), "tt0111161")
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.wantCode), "unexpected error: %v", err)
			assert.Len(t, r.calls, tt.wantCalls)
		})
	}
}

func TestNew_UnknownStrategy(t *testing.T) {
	_, err := poster.New(poster.Config{Strategy: "omdb", Fetcher: &routes{}})
	require.Error(t, err)
}
