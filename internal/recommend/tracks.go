package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/tunegraph/internal/data/graph"
	"github.com/yungbote/tunegraph/internal/domain/music"
	"github.com/yungbote/tunegraph/internal/resilience"
	"github.com/yungbote/tunegraph/internal/vector"
)

// UpsertTrack validates t and writes it with its descriptor edges atomically.
func (e *Engine) UpsertTrack(ctx context.Context, t music.Track) error {
	start := time.Now()
	t = t.Normalized()
	err := t.Validate()
	if err == nil {
		err = e.graph.UpsertTrack(ctx, t)
	} else {
		err = resilience.Permanent(fmt.Errorf("invalid track: %w", err))
	}
	return e.observe("upsert_track", t.ID, start, err)
}

type TrackFailure struct {
	TrackID string
	Err     error
}

type BatchResult struct {
	Upserted int
	Failures []TrackFailure
}

// BatchUpsertTracks upserts every track with at most
// limits.max_batch_concurrency in flight. Per-track failures are collected,
// not fatal; the returned error is non-nil only when ctx ends first.
func (e *Engine) BatchUpsertTracks(ctx context.Context, tracks []music.Track) (BatchResult, error) {
	var (
		mu  sync.Mutex
		res BatchResult
		g   errgroup.Group
	)
	g.SetLimit(orDefault(e.limits.MaxBatchConcurrency, 1))

	for _, t := range tracks {
		t := t
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			start := time.Now()
			err := e.UpsertTrack(ctx, t)
			e.overBudget("upsert_track", t.ID, start, e.perTrackBudget)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failures = append(res.Failures, TrackFailure{TrackID: t.ID, Err: err})
			} else {
				res.Upserted++
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].TrackID < res.Failures[j].TrackID })
	e.log.Info("batch upsert finished", "tracks", len(tracks), "upserted", res.Upserted, "failed", len(res.Failures))
	return res, ctx.Err()
}

// CreateSimilarityRelationships merges SIMILAR_TO edges to every candidate
// scoring at least threshold. A non-positive threshold selects
// similarity.standard. It returns the number of edges merged.
func (e *Engine) CreateSimilarityRelationships(ctx context.Context, trackID string, candidates []music.Candidate, threshold float64) (int, error) {
	if threshold <= 0 {
		threshold = e.similarity.Standard
	}
	return e.mergeEdges(ctx, "create_similarity_relationships", graph.EdgeSimilarTo, trackID, candidates, threshold)
}

// CreateMoodSimilarityRelationships is CreateSimilarityRelationships for
// MOOD_MATCHES with similarity.mood as the default threshold.
func (e *Engine) CreateMoodSimilarityRelationships(ctx context.Context, trackID string, candidates []music.Candidate, threshold float64) (int, error) {
	if threshold <= 0 {
		threshold = e.similarity.Mood
	}
	return e.mergeEdges(ctx, "create_mood_similarity_relationships", graph.EdgeMoodMatches, trackID, candidates, threshold)
}

func (e *Engine) mergeEdges(ctx context.Context, op string, kind graph.EdgeKind, trackID string, candidates []music.Candidate, threshold float64) (int, error) {
	start := time.Now()
	trackID = strings.TrimSpace(trackID)
	kept := make([]music.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= threshold {
			kept = append(kept, c)
		}
	}
	if trackID == "" {
		return 0, e.observe(op, trackID, start, resilience.Permanent(fmt.Errorf("track id required")))
	}
	if len(kept) == 0 {
		return 0, e.observe(op, trackID, start, nil)
	}
	n, err := e.graph.MergeEdges(ctx, kind, trackID, kept, threshold)
	return n, e.observe(op, trackID, start, err)
}

// IndexTrackEmbedding stores the track's embedding in the vector index.
func (e *Engine) IndexTrackEmbedding(ctx context.Context, trackID string, values []float32, metadata map[string]any) error {
	start := time.Now()
	if e.index == nil {
		return e.observe("index_track_embedding", trackID, start, vector.ErrNotInitialized)
	}
	return e.observe("index_track_embedding", trackID, start, e.index.Upsert(ctx, trackID, values, metadata))
}

// MaterializeSimilarityFromIndex queries the nearest neighbours of values,
// drops trackID itself and merges SIMILAR_TO edges for those at or above
// similarity.standard.
func (e *Engine) MaterializeSimilarityFromIndex(ctx context.Context, trackID string, values []float32) (int, error) {
	start := time.Now()
	const op = "materialize_similarity_from_index"
	if e.index == nil {
		return 0, e.observe(op, trackID, start, vector.ErrNotInitialized)
	}
	matches, err := e.index.Query(ctx, values, orDefault(e.limits.TopKSimilar, 10)+1, nil)
	if err != nil {
		return 0, e.observe(op, trackID, start, err)
	}
	candidates := make([]music.Candidate, 0, len(matches))
	for _, m := range matches {
		if m.ID == trackID {
			continue
		}
		candidates = append(candidates, music.Candidate{TrackID: m.ID, Score: m.Score})
	}
	return e.CreateSimilarityRelationships(ctx, trackID, candidates, e.similarity.Standard)
}
