package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	dto "github.com/prometheus/client_model/go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/tunegraph/internal/observability"
	"github.com/yungbote/tunegraph/internal/platform/logger"
)

type match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

func setupRedisTier(t *testing.T) (*RedisTier[[]match], *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisTier[[]match](rdb, "tg:test:"), mr
}

func TestRedisTierRoundTrip(t *testing.T) {
	tier, mr := setupRedisTier(t)
	ctx := context.Background()

	_, ok, err := tier.Get(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, ok)

	want := []match{{ID: "t1", Score: 0.91}, {ID: "t2", Score: 0.8}}
	require.NoError(t, tier.Set(ctx, "q", want, time.Minute))
	assert.True(t, mr.Exists("tg:test:q"))

	got, ok, err := tier.Get(ctx, "q")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	mr.FastForward(2 * time.Minute)
	_, ok, err = tier.Get(ctx, "q")
	require.NoError(t, err)
	assert.False(t, ok, "redis TTL should expire the entry")
}

func TestCacheFallsBackToRedisTier(t *testing.T) {
	tier, _ := setupRedisTier(t)
	ctx := context.Background()
	want := []match{{ID: "t9", Score: 0.99}}
	require.NoError(t, tier.Set(ctx, "shared", want, time.Minute))

	c := New[[]match](4, time.Minute, WithBacking[[]match](tier))
	computed := false
	got, fromCache, err := c.GetOrCompute(ctx, "shared", func(context.Context) ([]match, error) {
		computed = true
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.False(t, computed)
	assert.Equal(t, want, got)

	local, ok := c.Get("shared")
	require.True(t, ok, "backing hit should populate the local tier")
	assert.Equal(t, want, local)
}

func TestCacheCheckPingsRedis(t *testing.T) {
	tier, mr := setupRedisTier(t)
	c := New[[]match](4, time.Minute, WithBacking[[]match](tier))
	require.NoError(t, c.Check(context.Background()))

	mr.Close()
	assert.Error(t, c.Check(context.Background()))
}

func redisErrors(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, observability.CacheRequests.WithLabelValues("redis", "error").Write(&m))
	return m.GetCounter().GetValue()
}

func TestCacheRecomputesWhenRedisIsDown(t *testing.T) {
	tier, mr := setupRedisTier(t)
	c := New[[]match](4, time.Minute,
		WithBacking[[]match](tier),
		WithLogger[[]match](logger.NewNop()),
	)
	mr.Close()
	before := redisErrors(t)

	want := []match{{ID: "t3", Score: 0.7}}
	calls := 0
	got, fromCache, err := c.GetOrCompute(context.Background(), "q", func(context.Context) ([]match, error) {
		calls++
		return want, nil
	})
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 1, calls)
	assert.Equal(t, want, got)

	// Both the failed read and the failed write-back are counted.
	assert.Equal(t, before+2, redisErrors(t))

	local, ok := c.Get("q")
	require.True(t, ok, "computed value should still land in the local tier")
	assert.Equal(t, want, local)
}
