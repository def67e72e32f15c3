package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cnom/internal/observability"

	"github.com/redis/go-redis/v9"
)

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	client := GetClient()
	if client == nil {
		return false, nil
	}
	ctx, span := observability.TraceRedisOperation(ctx, "get")
	defer span.End()

	s, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	client := GetClient()
	if client == nil {
		return nil
	}
	ctx, span := observability.TraceRedisOperation(ctx, "set")
	defer span.End()

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first; on a miss or a Redis failure it calls fetch (which
// must populate dest) and stores the result with ttl. Cache errors never fail
// the read.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := GetJSON(ctx, key, dest)
	if err == nil && found {
		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	_ = SetJSON(ctx, key, dest, ttl)
	return nil
}

// Invalidate removes key from the cache if a client is configured.
func Invalidate(ctx context.Context, key string) {
	if client := GetClient(); client != nil {
		client.Del(ctx, key)
	}
}
