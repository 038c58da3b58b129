package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/tunegraph/internal/data/graph"
	"github.com/yungbote/tunegraph/internal/resilience"
)

const (
	directWeight = 0.5
	moodWeight   = 0.3
	genreWeight  = 0.2
)

// CalculateTrackSimilarity scores a pair in [0,1] from the direct SIMILAR_TO
// weight, a shared mood and the number of shared genres. A track is fully
// similar to itself.
func (e *Engine) CalculateTrackSimilarity(ctx context.Context, a, b string) (float64, error) {
	start := time.Now()
	const op = "calculate_track_similarity"
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	entity := a + "/" + b
	if a == "" || b == "" {
		return 0, e.observe(op, entity, start, resilience.Permanent(fmt.Errorf("two track ids required")))
	}
	if a == b {
		return 1, e.observe(op, entity, start, nil)
	}
	sig, err := e.graph.PairSignals(ctx, a, b)
	if err != nil {
		return 0, e.observe(op, entity, start, err)
	}
	return SimilarityScore(sig, e.similarity.GenreOverlapCap), e.observe(op, entity, start, nil)
}

// SimilarityScore is 0.5*direct + 0.3*sameMood + 0.2*min(shared,cap)/cap,
// clamped to [0,1].
func SimilarityScore(sig graph.PairSignals, genreCap int) float64 {
	if genreCap <= 0 {
		genreCap = 1
	}
	direct := clamp01(sig.Direct)
	mood := 0.0
	if sig.SameMood {
		mood = 1
	}
	shared := sig.SharedGenres
	if shared > genreCap {
		shared = genreCap
	}
	if shared < 0 {
		shared = 0
	}
	genres := float64(shared) / float64(genreCap)
	return clamp01(directWeight*direct + moodWeight*mood + genreWeight*genres)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
