package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/tunegraph/internal/observability"
)

// RedisTier shares cached values across processes. Values are JSON encoded.
type RedisTier[V any] struct {
	rdb    goredis.UniversalClient
	prefix string
}

func NewRedisTier[V any](rdb goredis.UniversalClient, prefix string) *RedisTier[V] {
	return &RedisTier[V]{rdb: rdb, prefix: prefix}
}

func (r *RedisTier[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if r == nil || r.rdb == nil {
		return zero, false, fmt.Errorf("redis tier not initialized")
	}
	raw, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		observability.CacheRequests.WithLabelValues("redis", "miss").Inc()
		return zero, false, nil
	}
	if err != nil {
		observability.CacheRequests.WithLabelValues("redis", "error").Inc()
		return zero, false, err
	}
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		_ = r.rdb.Del(ctx, r.prefix+key).Err()
		observability.CacheRequests.WithLabelValues("redis", "error").Inc()
		return zero, false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	observability.CacheRequests.WithLabelValues("redis", "hit").Inc()
	return v, true, nil
}

func (r *RedisTier[V]) Set(ctx context.Context, key string, v V, ttl time.Duration) error {
	if r == nil || r.rdb == nil {
		return fmt.Errorf("redis tier not initialized")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.prefix+key, raw, ttl).Err(); err != nil {
		observability.CacheRequests.WithLabelValues("redis", "error").Inc()
		return err
	}
	return nil
}

func (r *RedisTier[V]) Ping(ctx context.Context) error {
	if r == nil || r.rdb == nil {
		return fmt.Errorf("redis tier not initialized")
	}
	return r.rdb.Ping(ctx).Err()
}
