package vector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/tunegraph/internal/config"
	"github.com/yungbote/tunegraph/internal/observability"
	"github.com/yungbote/tunegraph/internal/platform/logger"
	"github.com/yungbote/tunegraph/internal/resilience"
)

type Index struct {
	log       *logger.Logger
	provider  Provider
	dimension int
	namespace string
	exec      resilience.Executor
}

func NewIndex(log *logger.Logger, p Provider, cfg config.VectorConfig, exec resilience.Executor) (*Index, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if p == nil {
		return nil, ErrNotInitialized
	}
	if cfg.Dimension < cfg.MinDimension || cfg.Dimension > cfg.MaxDimension {
		return nil, &config.ConfigError{
			Field:  "vector.dimension",
			Value:  fmt.Sprint(cfg.Dimension),
			Reason: fmt.Sprintf("must be within [%d, %d]", cfg.MinDimension, cfg.MaxDimension),
		}
	}
	if exec.Store == "" {
		exec.Store = "vector"
	}
	return &Index{
		log:       log.With("service", "VectorIndex", "provider", p.Name()),
		provider:  p,
		dimension: cfg.Dimension,
		namespace: strings.TrimSpace(cfg.Namespace),
		exec:      exec,
	}, nil
}

func (ix *Index) Dimension() int {
	if ix == nil {
		return 0
	}
	return ix.dimension
}

// Upsert writes or replaces the embedding for id.
func (ix *Index) Upsert(ctx context.Context, id string, values []float32, metadata map[string]any) error {
	if ix == nil || ix.provider == nil {
		return ErrNotInitialized
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return resilience.Permanent(fmt.Errorf("vector upsert: id required"))
	}
	if err := ix.checkDim(id, values); err != nil {
		return err
	}
	ctx, span := observability.StartSpan(ctx, "vector.upsert", attribute.String("vector.id", id))
	err := resilience.Exec(ctx, ix.exec, "upsert", func(ctx context.Context) error {
		return ix.provider.Upsert(ctx, ix.namespace, []Record{{ID: id, Values: values, Metadata: metadata}})
	})
	observability.EndSpan(span, err)
	return err
}

// Query returns up to topK matches ordered by descending score, with scores
// clamped into [0,1].
func (ix *Index) Query(ctx context.Context, values []float32, topK int, filter map[string]any) ([]Match, error) {
	if ix == nil || ix.provider == nil {
		return nil, ErrNotInitialized
	}
	if err := ix.checkDim("", values); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}
	ctx, span := observability.StartSpan(ctx, "vector.query", attribute.Int("vector.top_k", topK))
	matches, err := resilience.Run(ctx, ix.exec, "query", func(ctx context.Context) ([]Match, error) {
		return ix.provider.Query(ctx, ix.namespace, values, topK, filter)
	})
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		if strings.TrimSpace(m.ID) == "" {
			continue
		}
		m.Score = clamp01(m.Score)
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Stats reports dimension, vector count and fullness. A provider reporting a
// different dimension than configured is a configuration error.
func (ix *Index) Stats(ctx context.Context) (Stats, error) {
	if ix == nil || ix.provider == nil {
		return Stats{}, ErrNotInitialized
	}
	st, err := resilience.Run(ctx, ix.exec, "stats", ix.provider.Stats)
	if err != nil {
		return Stats{}, err
	}
	if st.Dimension != 0 && st.Dimension != ix.dimension {
		return st, resilience.Permanent(&DimensionMismatchError{Expected: ix.dimension, Got: st.Dimension})
	}
	if st.Dimension == 0 {
		st.Dimension = ix.dimension
	}
	st.FullnessRatio = clamp01(st.FullnessRatio)
	return st, nil
}

// Check is the health probe.
func (ix *Index) Check(ctx context.Context) error {
	if ix != nil && ix.exec.Breaker.Open() {
		return fmt.Errorf("vector index circuit breaker open")
	}
	_, err := ix.Stats(ctx)
	return err
}

func (ix *Index) checkDim(id string, values []float32) error {
	if len(values) != ix.dimension {
		return resilience.Permanent(&DimensionMismatchError{ID: id, Expected: ix.dimension, Got: len(values)})
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
