package transport

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedFetcher keeps successful responses in redis so repeated poster and catalog
// downloads across restarts skip the network.
type CachedFetcher struct {
	next   Fetcher
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

type CacheConfig struct {
	Redis  redis.UniversalClient
	Prefix string
	TTL    time.Duration
}

func NewCachedFetcher(next Fetcher, c CacheConfig) *CachedFetcher {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedFetcher{
		next:   next,
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    ttl,
	}
}

func (f *CachedFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	key := f.key(rawURL)

	b, err := f.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		return b, nil
	case !stderrors.Is(err, redis.Nil):
		slog.WarnContext(ctx, "transport: cache read failed", "error", err)
	}

	b, err = f.next.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if err := f.redis.Set(ctx, key, b, f.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "transport: cache write failed", "error", err)
	}

	return b, nil
}

func (f *CachedFetcher) key(rawURL string) string {
	sum := sha1.Sum([]byte(rawURL))
	return fmt.Sprintf("%s:http:%s", f.prefix, hex.EncodeToString(sum[:]))
}
