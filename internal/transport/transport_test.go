package transport_test

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/moviequiz/internal/errors"
	"github.com/victornm/moviequiz/internal/transport"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(`{"errorMessage":""}`))
		case "/missing":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	t.Cleanup(srv.Close)

	f := transport.NewHTTPFetcher(transport.Config{Timeout: time.Second})

	tests := map[string]struct {
		path     string
		wantBody string
		wantCode errors.Code
		wantErr  bool
	}{
		"success returns body": {
			path:     "/ok",
			wantBody: `{"errorMessage":""}`,
		},
		"not found is a transport error": {
			path:     "/missing",
			wantErr:  true,
			wantCode: errors.CodeTransport,
		},
		"bad gateway is a transport error": {
			path:     "/other",
			wantErr:  true,
			wantCode: errors.CodeTransport,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			b, err := f.Fetch(context.Background(), srv.URL+tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, tt.wantCode), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBody, string(b))
		})
	}
}

func TestHTTPFetcher_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := transport.NewHTTPFetcher(transport.Config{Timeout: time.Second})
	_, err := f.Fetch(context.Background(), addr+"/x")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrTransport))
}

func TestCachedFetcher(t *testing.T) {
	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{rs.Addr()}})

	var calls atomic.Int32
	next := transport.FetcherFunc(func(ctx context.Context, rawURL string) ([]byte, error) {
		calls.Add(1)
		if rawURL == "https://example.com/fail" {
			return nil, errors.Transport(stderrors.New("boom"))
		}
		return []byte("poster-bytes"), nil
	})

	f := transport.NewCachedFetcher(next, transport.CacheConfig{
		Redis:  rc,
		Prefix: "test",
		TTL:    time.Minute,
	})

	ctx := context.Background()

	b, err := f.Fetch(ctx, "https://example.com/poster.jpg")
	require.NoError(t, err)
	assert.Equal(t, "poster-bytes", string(b))

	b, err = f.Fetch(ctx, "https://example.com/poster.jpg")
	require.NoError(t, err)
	assert.Equal(t, "poster-bytes", string(b))
	assert.EqualValues(t, 1, calls.Load(), "second fetch should be served from cache")

	_, err = f.Fetch(ctx, "https://example.com/fail")
	require.Error(t, err)
	_, err = f.Fetch(ctx, "https://example.com/fail")
	require.Error(t, err)
	assert.EqualValues(t, 3, calls.Load(), "failures must not be cached")

	rs.FastForward(2 * time.Minute)
	_, err = f.Fetch(ctx, "https://example.com/poster.jpg")
	require.NoError(t, err)
	assert.EqualValues(t, 4, calls.Load(), "expired entries are fetched again")
}

func TestCachedFetcher_RedisDown(t *testing.T) {
	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:      []string{rs.Addr()},
		MaxRetries: -1,
	})
	rs.Close()

	next := transport.FetcherFunc(func(ctx context.Context, rawURL string) ([]byte, error) {
		return []byte("fresh"), nil
	})
	f := transport.NewCachedFetcher(next, transport.CacheConfig{Redis: rc, Prefix: "test"})

	b, err := f.Fetch(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(b))
}
