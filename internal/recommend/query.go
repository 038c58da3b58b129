package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yungbote/tunegraph/internal/cache"
	"github.com/yungbote/tunegraph/internal/data/graph"
	"github.com/yungbote/tunegraph/internal/domain/music"
	"github.com/yungbote/tunegraph/internal/resilience"
	"github.com/yungbote/tunegraph/internal/vector"
)

type SimilarOptions struct {
	Limit int
	// MinSimilarity applies to every edge on a path. Non-positive selects
	// similarity.minimum.
	MinSimilarity      float64
	IncludeMoodMatches bool
}

type MoodOptions struct {
	Limit int
	// Feelings, when set, keeps only tracks tagged with all of them.
	Feelings  []string
	VibeRange *music.VibeRange
}

// FindSimilarTracks walks SIMILAR_TO (and optionally MOOD_MATCHES) up to two
// hops from trackID. A path scores the product of its edge weights; each
// candidate keeps its best path.
func (e *Engine) FindSimilarTracks(ctx context.Context, trackID string, opts SimilarOptions) ([]music.SimilarTrackResult, error) {
	start := time.Now()
	const op = "find_similar_tracks"
	trackID = strings.TrimSpace(trackID)
	if trackID == "" {
		return nil, e.observe(op, trackID, start, resilience.Permanent(fmt.Errorf("track id required")))
	}
	limit := orDefault(opts.Limit, e.limits.TopKSimilar)
	minSim := opts.MinSimilarity
	if minSim <= 0 {
		minSim = e.similarity.Minimum
	}
	paths, err := e.graph.SimilarPaths(ctx, trackID, graph.PathQuery{
		MinSimilarity: minSim,
		IncludeMood:   opts.IncludeMoodMatches,
		Limit:         limit,
	})
	if err != nil {
		return nil, e.observe(op, trackID, start, err)
	}
	out := ReducePaths(trackID, paths, minSim, limit)
	e.overBudget(op, trackID, start, e.similarityBudget)
	return out, e.observe(op, trackID, start, nil)
}

// PathScore multiplies the edge weights of a path. An empty path scores 0.
func PathScore(weights []float64) float64 {
	if len(weights) == 0 {
		return 0
	}
	score := 1.0
	for _, w := range weights {
		score *= w
	}
	return score
}

// ReducePaths scores each path, drops paths with an edge under minSim or
// ending at the source, keeps the best path per track and returns at most
// limit results by descending score (ties by track id).
func ReducePaths(sourceID string, paths []graph.Path, minSim float64, limit int) []music.SimilarTrackResult {
	best := make(map[string]music.SimilarTrackResult, len(paths))
	for _, p := range paths {
		id := p.Track.ID
		if id == "" || id == sourceID || len(p.Weights) == 0 {
			continue
		}
		weak := false
		for _, w := range p.Weights {
			if w < minSim {
				weak = true
				break
			}
		}
		if weak {
			continue
		}
		score := PathScore(p.Weights)
		if cur, ok := best[id]; ok && cur.Similarity >= score {
			continue
		}
		best[id] = music.SimilarTrackResult{Track: p.Track, Similarity: score, Path: p.IDs}
	}
	out := make([]music.SimilarTrackResult, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Track.ID < out[j].Track.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// FindTracksByMood is an attribute lookup ordered by descending vibe.
func (e *Engine) FindTracksByMood(ctx context.Context, mood string, opts MoodOptions) ([]music.Track, error) {
	start := time.Now()
	const op = "find_tracks_by_mood"
	mood = strings.TrimSpace(mood)
	if mood == "" {
		return nil, e.observe(op, mood, start, resilience.Permanent(fmt.Errorf("mood required")))
	}
	if r := opts.VibeRange; r != nil && r.Min > r.Max {
		return nil, e.observe(op, mood, start, resilience.Permanent(fmt.Errorf("vibe range min %.2f > max %.2f", r.Min, r.Max)))
	}
	tracks, err := e.graph.TracksByMood(ctx, graph.MoodQuery{
		Mood:      mood,
		Feelings:  music.NormalizeLabels(opts.Feelings),
		VibeRange: opts.VibeRange,
		Limit:     orDefault(opts.Limit, e.limits.TopKSimilar),
	})
	return tracks, e.observe(op, mood, start, err)
}

// FindTracksByMoodProfile runs a nearest-neighbour query for a mood/feeling
// profile embedding. Results are cached by a hash of the vector, topK and
// filter; a miss or expired entry recomputes from the index.
func (e *Engine) FindTracksByMoodProfile(ctx context.Context, profile []float32, topK int, filter map[string]any) ([]vector.Match, error) {
	start := time.Now()
	const op = "find_tracks_by_mood_profile"
	if e.index == nil {
		return nil, e.observe(op, "", start, vector.ErrNotInitialized)
	}
	topK = orDefault(topK, e.limits.TopKSimilar)
	key := cache.Key("mood_profile", profile, topK, filter)
	entity := strings.TrimPrefix(key, "mood_profile:")[:12]
	matches, hit, err := e.moodCache.GetOrCompute(ctx, key, func(ctx context.Context) ([]vector.Match, error) {
		return e.index.Query(ctx, profile, topK, filter)
	})
	if err != nil {
		return nil, e.observe(op, entity, start, err)
	}
	e.log.Debug("mood profile query", "cache_hit", hit, "matches", len(matches))
	out := make([]vector.Match, len(matches))
	copy(out, matches)
	return out, e.observe(op, entity, start, nil)
}
