// Package vector is the nearest-neighbour side of the recommender: a thin,
// provider-agnostic adapter over Qdrant or Pinecone that validates
// dimensions, clamps scores into [0,1] and routes every call through the
// resilience executor.
package vector

import (
	"context"
	"errors"
	"fmt"
)

type Record struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Stats struct {
	Dimension     int     `json:"dimension"`
	TotalCount    int64   `json:"total_count"`
	FullnessRatio float64 `json:"fullness_ratio"`
}

// Provider is implemented by the concrete stores under internal/platform.
type Provider interface {
	Name() string
	Upsert(ctx context.Context, namespace string, records []Record) error
	Query(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]Match, error)
	Stats(ctx context.Context) (Stats, error)
}

var ErrNotInitialized = errors.New("vector index not initialized")

type DimensionMismatchError struct {
	ID       string
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("vector %q dimension mismatch: expected=%d got=%d", e.ID, e.Expected, e.Got)
	}
	return fmt.Sprintf("vector dimension mismatch: expected=%d got=%d", e.Expected, e.Got)
}
