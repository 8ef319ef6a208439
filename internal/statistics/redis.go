package statistics

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type RedisKV struct {
	redis redis.UniversalClient
}

func NewRedisKV(rc redis.UniversalClient) *RedisKV {
	return &RedisKV{redis: rc}
}

func (kv *RedisKV) Get(ctx context.Context, keys ...string) (map[string]string, error) {
	vals, err := kv.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget: %w", err)
	}

	res := make(map[string]string, len(keys))
	for i, v := range vals {
		// nil means the key does not exist
		if s, ok := v.(string); ok {
			res[keys[i]] = s
		}
	}

	return res, nil
}

func (kv *RedisKV) Set(ctx context.Context, values map[string]string) error {
	_, err := kv.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for k, v := range values {
			p.Set(ctx, k, v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set: %w", err)
	}
	return nil
}
