package app

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/tunegraph/internal/cache"
	"github.com/yungbote/tunegraph/internal/config"
	"github.com/yungbote/tunegraph/internal/data/graph"
	"github.com/yungbote/tunegraph/internal/health"
	"github.com/yungbote/tunegraph/internal/platform/logger"
	"github.com/yungbote/tunegraph/internal/recommend"
	"github.com/yungbote/tunegraph/internal/resilience"
	"github.com/yungbote/tunegraph/internal/vector"
)

type Services struct {
	Graph     *graph.Store
	Index     *vector.Index
	MoodCache *cache.Cache[[]vector.Match]
	Engine    *recommend.Engine
	Monitor   *health.Monitor
}

// newExecutor builds the per-store call path. Each store gets its own
// breaker so a failing vector provider never trips graph calls.
func newExecutor(store string, cfg *config.Registry, timeout time.Duration, log *logger.Logger) resilience.Executor {
	return resilience.Executor{
		Store:   store,
		Policy:  resilience.PolicyFromConfig(cfg.Retry),
		Timeout: timeout,
		Breaker: resilience.NewBreaker(store, cfg.Retry.BreakerFailures, cfg.Retry.BreakerCooldown, log),
		Log:     log,
	}
}

func wireServices(ctx context.Context, log *logger.Logger, cfg *config.Registry, c Clients) (Services, error) {
	log.Info("Wiring services...")

	store, err := graph.New(log, c.Neo4j, newExecutor("graph", cfg, cfg.Retry.GraphTimeout, log))
	if err != nil {
		return Services{}, fmt.Errorf("init graph store: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return Services{}, fmt.Errorf("graph schema: %w", err)
	}

	var ix *vector.Index
	if c.Vector != nil {
		ix, err = vector.NewIndex(log, c.Vector, cfg.Vector, newExecutor("vector", cfg, cfg.Retry.VectorTimeout, log))
		if err != nil {
			return Services{}, fmt.Errorf("init vector index: %w", err)
		}
	}

	opts := []cache.Option[[]vector.Match]{
		cache.WithTier[[]vector.Match]("mood_profile"),
		cache.WithLogger[[]vector.Match](log),
	}
	if c.Redis != nil {
		opts = append(opts, cache.WithBacking[[]vector.Match](cache.NewRedisTier[[]vector.Match](c.Redis, cfg.Redis.KeyPrefix)))
	}
	moodCache := cache.New[[]vector.Match](cfg.Limits.CacheSize, cfg.Limits.CacheTTL, opts...)

	deps := recommend.Deps{
		Log:         log,
		Graph:       store,
		MoodCache:   moodCache,
		Similarity:  cfg.Similarity,
		Limits:      cfg.Limits,
		Performance: cfg.Performance,
	}
	if ix != nil {
		deps.Index = ix
	}
	engine, err := recommend.New(deps)
	if err != nil {
		return Services{}, fmt.Errorf("init recommendation engine: %w", err)
	}

	s := Services{Graph: store, Index: ix, MoodCache: moodCache, Engine: engine}
	s.Monitor = health.NewMonitor(log, cfg.Health, healthComponents(s)...)
	return s, nil
}

// healthComponents leaves out the vector index when the provider is
// disabled, so a deliberate opt-out does not report as unhealthy.
func healthComponents(s Services) []health.Component {
	var out []health.Component
	if s.Index != nil {
		out = append(out, health.Component{Name: "vector_index", Check: s.Index.Check})
	}
	if s.Graph != nil {
		out = append(out, health.Component{Name: "graph_store", Check: s.Graph.Check})
	}
	if s.MoodCache != nil {
		out = append(out, health.Component{Name: "embedding_cache", Check: s.MoodCache.Check})
	}
	return out
}
