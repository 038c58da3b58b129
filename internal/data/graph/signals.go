package graph

import (
	"context"
	"fmt"

	"github.com/yungbote/tunegraph/internal/resilience"
)

// PairSignals are the raw inputs to the fallback pairwise scorer.
type PairSignals struct {
	Direct       float64
	SameMood     bool
	SharedGenres int
}

type Stats struct {
	Tracks       int64 `json:"tracks"`
	SimilarEdges int64 `json:"similar_edges"`
	MoodEdges    int64 `json:"mood_edges"`
	Users        int64 `json:"users"`
}

// PairSignals returns ErrTrackNotFound (permanent) when either id is unknown.
func (s *Store) PairSignals(ctx context.Context, a, b string) (PairSignals, error) {
	var out PairSignals
	err := s.read(ctx, "pair_signals", func(ctx context.Context, tx Tx) error {
		rows, err := tx.Run(ctx, StmtPairSignals, map[string]any{"a_id": a, "b_id": b})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return resilience.Permanent(fmt.Errorf("pair %s/%s: %w", a, b, ErrTrackNotFound))
		}
		out = PairSignals{
			Direct:       asFloat(rows[0]["direct"]),
			SameMood:     asBool(rows[0]["same_mood"]),
			SharedGenres: int(asInt(rows[0]["shared_genres"])),
		}
		return nil
	})
	return out, err
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	err := s.read(ctx, "stats", func(ctx context.Context, tx Tx) error {
		rows, err := tx.Run(ctx, StmtStats, nil)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			out = Stats{}
			return nil
		}
		out = Stats{
			Tracks:       asInt(rows[0]["tracks"]),
			SimilarEdges: asInt(rows[0]["similar_edges"]),
			MoodEdges:    asInt(rows[0]["mood_edges"]),
			Users:        asInt(rows[0]["users"]),
		}
		return nil
	})
	return out, err
}
