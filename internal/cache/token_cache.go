package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenKeyFormat = "accounts:token:%s"

// RedisTokenCache remembers which principal a bearer token resolves to.
// Keys are digests of the token so raw credentials never land in Redis.
type RedisTokenCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisTokenCache(rdb redis.Cmdable, ttl time.Duration) *RedisTokenCache {
	return &RedisTokenCache{rdb: rdb, ttl: ttl}
}

// Open connects to Redis and pings it once.
func Open(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (c *RedisTokenCache) Get(ctx context.Context, token string) (int64, bool, error) {
	val, err := c.rdb.Get(ctx, cacheKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis get token: %w", err)
	}

	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// unreadable entry, drop it
		c.rdb.Del(ctx, cacheKey(token))
		return 0, false, nil
	}
	return id, true, nil
}

// Set stores the binding for the configured ttl, or for ttl when that is shorter.
func (c *RedisTokenCache) Set(ctx context.Context, token string, principalID int64, ttl time.Duration) error {
	expiry := c.ttl
	if ttl > 0 && (expiry <= 0 || ttl < expiry) {
		expiry = ttl
	}
	if err := c.rdb.Set(ctx, cacheKey(token), strconv.FormatInt(principalID, 10), expiry).Err(); err != nil {
		return fmt.Errorf("redis set token: %w", err)
	}
	return nil
}

func (c *RedisTokenCache) Delete(ctx context.Context, token string) error {
	if err := c.rdb.Del(ctx, cacheKey(token)).Err(); err != nil {
		return fmt.Errorf("redis del token: %w", err)
	}
	return nil
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf(tokenKeyFormat, hex.EncodeToString(sum[:]))
}
