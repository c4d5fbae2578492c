package policy

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "reminder:policy:"

// RedisBackend stores one string key per appointment. Records never expire;
// orphans left by deleted appointments are tolerated.
type RedisBackend struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisBackend(rdb redis.Cmdable, prefix string) *RedisBackend {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBackend{rdb: rdb, prefix: prefix}
}

func (b *RedisBackend) Load(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := b.rdb.Get(ctx, b.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (b *RedisBackend) Save(ctx context.Context, key string, value []byte) error {
	return b.rdb.Set(ctx, b.prefix+key, value, 0).Err()
}

func RedisReadyCheck(rdb *redis.Client) func(context.Context) error {
	if rdb == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
