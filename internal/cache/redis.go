package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis backs the code cache with a shared store so duplicate suppression
// works across processes. Redis errors degrade to cache misses: the durable
// store stays correct without the cache.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "otp:"}
}

func (r *Redis) Put(ctx context.Context, key string, e Entry) {
	ttl := time.Until(e.ExpiresAt)
	if ttl <= 0 {
		return
	}
	val := fmt.Sprintf("%s|%d", e.Code, e.ExpiresAt.Unix())
	if err := r.client.Set(ctx, r.prefix+key, val, ttl).Err(); err != nil {
		slog.Warn("otp cache put failed", "key", key, "err", err)
	}
}

func (r *Redis) Peek(ctx context.Context, key string) (Entry, bool) {
	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("otp cache peek failed", "key", key, "err", err)
		}
		return Entry{}, false
	}
	return parseEntry(val)
}

// Take uses GETDEL so the remove-and-return is a single Redis command.
func (r *Redis) Take(ctx context.Context, key string) (Entry, bool) {
	val, err := r.client.GetDel(ctx, r.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("otp cache take failed", "key", key, "err", err)
		}
		return Entry{}, false
	}
	return parseEntry(val)
}

func (r *Redis) Remove(ctx context.Context, key string) {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		slog.Warn("otp cache remove failed", "key", key, "err", err)
	}
}

func parseEntry(val string) (Entry, bool) {
	code, ts, ok := strings.Cut(val, "|")
	if !ok {
		return Entry{}, false
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Entry{}, false
	}
	return Entry{Code: code, ExpiresAt: time.Unix(unix, 0)}, true
}
