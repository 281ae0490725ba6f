package currency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	baseField = "_base"
	dateField = "_date"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache shares rate tables between processes. A table is stored as a
// hash at "pricecompare:{key}" with one field per currency code plus the
// base currency and the publication date.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache connects to Redis and pings it before returning.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &RedisCache{rdb: rdb}, nil
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func redisKey(key string) string {
	return "pricecompare:" + key
}

func (c *RedisCache) Load(ctx context.Context, key string) (Table, bool, error) {
	vals, err := c.rdb.HGetAll(ctx, redisKey(key)).Result()
	if err != nil {
		return Table{}, false, fmt.Errorf("redis: load %s: %w", key, err)
	}
	if len(vals) == 0 {
		return Table{}, false, nil
	}

	t := Table{
		Base:  vals[baseField],
		Rates: make(map[string]decimal.Decimal, len(vals)),
	}
	if d, ok := vals[dateField]; ok && d != "" {
		if t.Date, err = time.Parse(time.DateOnly, d); err != nil {
			return Table{}, false, fmt.Errorf("redis: parse date %s: %w", key, err)
		}
	}
	for code, v := range vals {
		if code == baseField || code == dateField {
			continue
		}
		r, err := decimal.NewFromString(v)
		if err != nil {
			return Table{}, false, fmt.Errorf("redis: parse rate %s/%s: %w", key, code, err)
		}
		t.Rates[code] = r
	}
	return t, true, nil
}

func (c *RedisCache) Store(ctx context.Context, key string, t Table, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("redis: store %s: ttl must be positive", key)
	}

	fields := make(map[string]interface{}, len(t.Rates)+2)
	fields[baseField] = t.Base
	if !t.Date.IsZero() {
		fields[dateField] = t.Date.Format(time.DateOnly)
	}
	for code, r := range t.Rates {
		fields[code] = r.String()
	}

	k := redisKey(key)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k)
		pipe.HSet(ctx, k, fields)
		pipe.Expire(ctx, k, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: store %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ Cache = (*RedisCache)(nil)
