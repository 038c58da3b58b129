// Package recommend is the orchestration core: it writes catalog and user
// activity into the relationship graph, materialises similarity edges and
// answers similarity, mood and personalised recommendation queries.
package recommend

import (
	"context"
	"time"

	"github.com/yungbote/tunegraph/internal/cache"
	"github.com/yungbote/tunegraph/internal/config"
	"github.com/yungbote/tunegraph/internal/data/graph"
	"github.com/yungbote/tunegraph/internal/domain/music"
	"github.com/yungbote/tunegraph/internal/observability"
	"github.com/yungbote/tunegraph/internal/platform/logger"
	"github.com/yungbote/tunegraph/internal/vector"
)

// Graph is the subset of the graph store the engine drives. *graph.Store
// implements it.
type Graph interface {
	UpsertTrack(ctx context.Context, t music.Track) error
	MergeEdges(ctx context.Context, kind graph.EdgeKind, trackID string, candidates []music.Candidate, threshold float64) (int, error)
	SimilarPaths(ctx context.Context, trackID string, q graph.PathQuery) ([]graph.Path, error)
	TracksByMood(ctx context.Context, q graph.MoodQuery) ([]music.Track, error)
	RecordPreferences(ctx context.Context, userID string, p music.UserPreferences) (graph.PreferenceCounts, error)
	ContentCandidates(ctx context.Context, userID string, limit int) ([]graph.Ranked, error)
	CollaborativeCandidates(ctx context.Context, userID string, limit int) ([]graph.Ranked, error)
	PairSignals(ctx context.Context, a, b string) (graph.PairSignals, error)
	TrackIDs(ctx context.Context, after string, limit int) ([]string, error)
}

// Index is the subset of the vector index the engine drives. *vector.Index
// implements it.
type Index interface {
	Upsert(ctx context.Context, id string, values []float32, metadata map[string]any) error
	Query(ctx context.Context, values []float32, topK int, filter map[string]any) ([]vector.Match, error)
}

// Engine is safe for concurrent use. The latency budgets only trigger a
// warning; they never cancel a call.
type Engine struct {
	log                  *logger.Logger
	graph                Graph
	index                Index
	moodCache            *cache.Cache[[]vector.Match]
	similarity           config.SimilarityThresholds
	limits               config.Limits
	perTrackBudget       time.Duration
	similarityBudget     time.Duration
	recommendationBudget time.Duration
}

type Deps struct {
	Log   *logger.Logger
	Graph Graph
	// Index may be nil when the vector provider is disabled; vector-backed
	// operations then return vector.ErrNotInitialized.
	Index       Index
	MoodCache   *cache.Cache[[]vector.Match]
	Similarity  config.SimilarityThresholds
	Limits      config.Limits
	Performance config.PerformanceTargets
}

func New(d Deps) (*Engine, error) {
	if d.Graph == nil {
		return nil, graph.ErrNotInitialized
	}
	if d.Log == nil {
		d.Log = logger.NewNop()
	}
	if d.MoodCache == nil {
		d.MoodCache = cache.New[[]vector.Match](d.Limits.CacheSize, d.Limits.CacheTTL,
			cache.WithTier[[]vector.Match]("mood_profile"),
			cache.WithLogger[[]vector.Match](d.Log),
		)
	}
	return &Engine{
		log:                  d.Log.With("service", "RecommendationEngine"),
		graph:                d.Graph,
		index:                d.Index,
		moodCache:            d.MoodCache,
		similarity:           d.Similarity,
		limits:               d.Limits,
		perTrackBudget:       d.Performance.PerTrackBatchTime,
		similarityBudget:     d.Performance.SimilarityQueryBudget,
		recommendationBudget: d.Performance.RecommendationBudget,
	}, nil
}

// MoodCache exposes the profile cache for health checks.
func (e *Engine) MoodCache() *cache.Cache[[]vector.Match] {
	return e.moodCache
}

// observe logs failures with their entity and counts every call.
func (e *Engine) observe(op, entity string, start time.Time, err error) error {
	observability.EngineOperations.WithLabelValues(op, observability.Outcome(err)).Inc()
	if err == nil {
		e.log.Debug("engine operation", "operation", op, "entity", entity, "duration", time.Since(start).String())
		return nil
	}
	e.log.Error("engine operation failed", "operation", op, "entity", entity, "error", err)
	return &OperationError{Op: op, Entity: entity, Err: err}
}

// overBudget warns when a call since start has run past budget. A zero
// budget disables the check.
func (e *Engine) overBudget(op, entity string, start time.Time, budget time.Duration) {
	if budget <= 0 {
		return
	}
	if took := time.Since(start); took > budget {
		observability.EngineSlowOperations.WithLabelValues(op).Inc()
		e.log.Warn("engine operation over budget", "operation", op, "entity", entity, "took", took.String(), "budget", budget.String())
	}
}

// TrackIDs pages through the catalog in ascending id order. A page shorter
// than limit is the last one.
func (e *Engine) TrackIDs(ctx context.Context, after string, limit int) ([]string, error) {
	start := time.Now()
	ids, err := e.graph.TrackIDs(ctx, after, orDefault(limit, 500))
	return ids, e.observe("track_ids", after, start, err)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
