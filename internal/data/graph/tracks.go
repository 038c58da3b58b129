package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/tunegraph/internal/domain/music"
	"github.com/yungbote/tunegraph/internal/observability"
	"github.com/yungbote/tunegraph/internal/resilience"
)

type EdgeKind int

const (
	EdgeSimilarTo EdgeKind = iota
	EdgeMoodMatches
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeSimilarTo:
		return "SIMILAR_TO"
	case EdgeMoodMatches:
		return "MOOD_MATCHES"
	default:
		return fmt.Sprintf("edge(%d)", int(k))
	}
}

func (k EdgeKind) statement() Statement {
	if k == EdgeMoodMatches {
		return StmtMergeMoodMatches
	}
	return StmtMergeSimilarTo
}

// Path is the strongest route found from a source track to Track. Weights
// are the edge weights in traversal order; IDs includes both endpoints.
type Path struct {
	Track   music.Track
	Weights []float64
	IDs     []string
}

type PathQuery struct {
	MinSimilarity float64
	IncludeMood   bool
	Limit         int
}

type MoodQuery struct {
	Mood      string
	Feelings  []string
	VibeRange *music.VibeRange
	Limit     int
}

// Statement picks the static variant matching the optional filters.
func (q MoodQuery) Statement() Statement {
	switch {
	case len(q.Feelings) > 0 && q.VibeRange != nil:
		return StmtTracksByMoodFeelingsVibe
	case len(q.Feelings) > 0:
		return StmtTracksByMoodFeelings
	case q.VibeRange != nil:
		return StmtTracksByMoodVibe
	default:
		return StmtTracksByMood
	}
}

// UpsertTrack merges the track node, prunes stale descriptor edges and links
// the current descriptors in a single write transaction.
func (s *Store) UpsertTrack(ctx context.Context, t music.Track) error {
	t = t.Normalized()
	if t.ID == "" {
		return resilience.Permanent(fmt.Errorf("graph upsert track: id required"))
	}
	if s == nil || s.runner == nil {
		return ErrNotInitialized
	}
	now := s.stamp()
	prune := map[string]any{
		"id":        t.ID,
		"mood":      t.Mood,
		"genres":    t.Genres,
		"feelings":  t.Feelings,
		"artist_id": t.ArtistID,
		"album_id":  t.AlbumID,
	}
	link := map[string]any{
		"artist_name": t.ArtistName,
		"album_name":  t.AlbumName,
		"now":         now,
	}
	for k, v := range prune {
		link[k] = v
	}
	return s.write(ctx, "upsert_track", func(ctx context.Context, tx Tx) error {
		if _, err := tx.Run(ctx, StmtMergeTrack, map[string]any{"id": t.ID, "props": trackProps(t), "now": now}); err != nil {
			return err
		}
		if _, err := tx.Run(ctx, StmtPruneTrackLinks, prune); err != nil {
			return err
		}
		_, err := tx.Run(ctx, StmtLinkTrackDescriptors, link)
		return err
	})
}

// MergeEdges writes one weighted edge of kind per candidate scoring at or
// above threshold and returns how many were merged. Candidates below the
// threshold, self references and unknown tracks are skipped.
func (s *Store) MergeEdges(ctx context.Context, kind EdgeKind, trackID string, candidates []music.Candidate, threshold float64) (int, error) {
	trackID = strings.TrimSpace(trackID)
	if trackID == "" {
		return 0, resilience.Permanent(fmt.Errorf("graph merge %s: track id required", kind))
	}
	rows := make([]map[string]any, 0, len(candidates))
	skipped := 0
	for _, c := range candidates {
		id := strings.TrimSpace(c.TrackID)
		if id == "" || id == trackID || c.Score < threshold || c.Score > 1 {
			skipped++
			continue
		}
		rows = append(rows, map[string]any{"id": id, "score": c.Score})
	}
	if skipped > 0 {
		observability.EdgesSkipped.WithLabelValues(kind.String()).Add(float64(skipped))
	}
	if len(rows) == 0 {
		return 0, nil
	}

	merged := 0
	err := s.write(ctx, "merge_"+strings.ToLower(kind.String()), func(ctx context.Context, tx Tx) error {
		out, err := tx.Run(ctx, kind.statement(), map[string]any{
			"id":         trackID,
			"candidates": rows,
			"threshold":  threshold,
			"now":        s.stamp(),
		})
		if err != nil {
			return err
		}
		merged = 0
		if len(out) > 0 {
			merged = int(asInt(out[0]["merged"]))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	observability.EdgesMaterialized.WithLabelValues(kind.String()).Add(float64(merged))
	return merged, nil
}

// SimilarPaths returns the strongest 1..2 hop path per reachable track.
func (s *Store) SimilarPaths(ctx context.Context, trackID string, q PathQuery) ([]Path, error) {
	st := StmtSimilarPaths
	if q.IncludeMood {
		st = StmtSimilarOrMoodPaths
	}
	var out []Path
	err := s.read(ctx, "similar_paths", func(ctx context.Context, tx Tx) error {
		rows, err := tx.Run(ctx, st, map[string]any{
			"id":             trackID,
			"min_similarity": q.MinSimilarity,
			"limit":          int64(q.Limit),
		})
		if err != nil {
			return err
		}
		out = make([]Path, 0, len(rows))
		for _, row := range rows {
			t, err := decodeTrack(row["track"])
			if err != nil {
				return resilience.Permanent(err)
			}
			out = append(out, Path{Track: t, Weights: asFloats(row["weights"]), IDs: asStrings(row["path"])})
		}
		return nil
	})
	return out, err
}

// TracksByMood returns tracks tagged with q.Mood ordered by descending vibe.
func (s *Store) TracksByMood(ctx context.Context, q MoodQuery) ([]music.Track, error) {
	params := map[string]any{"mood": q.Mood, "limit": int64(q.Limit)}
	if len(q.Feelings) > 0 {
		params["feelings"] = q.Feelings
	}
	if q.VibeRange != nil {
		params["vibe_min"] = q.VibeRange.Min
		params["vibe_max"] = q.VibeRange.Max
	}
	var out []music.Track
	err := s.read(ctx, "tracks_by_mood", func(ctx context.Context, tx Tx) error {
		rows, err := tx.Run(ctx, q.Statement(), params)
		if err != nil {
			return err
		}
		out, err = decodeTrackRows(rows)
		return err
	})
	return out, err
}

// TrackIDs pages through track ids in ascending order.
func (s *Store) TrackIDs(ctx context.Context, after string, limit int) ([]string, error) {
	var out []string
	err := s.read(ctx, "track_ids", func(ctx context.Context, tx Tx) error {
		rows, err := tx.Run(ctx, StmtTrackIDs, map[string]any{"after": after, "limit": int64(limit)})
		if err != nil {
			return err
		}
		out = make([]string, 0, len(rows))
		for _, row := range rows {
			out = append(out, asString(row["id"]))
		}
		return nil
	})
	return out, err
}

func decodeTrackRows(rows []Row) ([]music.Track, error) {
	out := make([]music.Track, 0, len(rows))
	for _, row := range rows {
		t, err := decodeTrack(row["track"])
		if err != nil {
			return nil, resilience.Permanent(err)
		}
		out = append(out, t)
	}
	return out, nil
}
