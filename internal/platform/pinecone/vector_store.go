package pinecone

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/tunegraph/internal/platform/logger"
	"github.com/yungbote/tunegraph/internal/vector"
)

type StoreConfig struct {
	IndexName string
	IndexHost string
	Dimension int
}

type Store struct {
	log       *logger.Logger
	pc        Client
	indexName string
	indexHost string
	dimension int
}

// NewVectorStore resolves the index host through describe_index when it is
// not configured and rejects indexes whose dimension differs from ours.
func NewVectorStore(ctx context.Context, log *logger.Logger, pc Client, cfg StoreConfig) (*Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if pc == nil {
		return nil, fmt.Errorf("pinecone client required")
	}
	indexName := strings.TrimSpace(cfg.IndexName)
	if indexName == "" {
		return nil, fmt.Errorf("missing PINECONE_INDEX_NAME")
	}
	host := strings.TrimSpace(cfg.IndexHost)

	if host == "" || cfg.Dimension > 0 {
		desc, err := pc.DescribeIndex(ctx, indexName)
		if err != nil {
			return nil, fmt.Errorf("pinecone describe_index failed: %w", err)
		}
		if desc.Dimension != 0 && cfg.Dimension > 0 && desc.Dimension != cfg.Dimension {
			return nil, &vector.DimensionMismatchError{Expected: cfg.Dimension, Got: desc.Dimension}
		}
		if host == "" {
			host = strings.TrimSpace(desc.Host)
			log.Warn("PINECONE_INDEX_HOST not set; resolved via describe_index",
				"index_name", indexName,
				"index_host", host,
			)
		}
	}

	return &Store{
		log:       log.With("service", "PineconeVectorStore"),
		pc:        pc,
		indexName: indexName,
		indexHost: host,
		dimension: cfg.Dimension,
	}, nil
}

func (s *Store) Name() string { return "pinecone" }

func (s *Store) Upsert(ctx context.Context, namespace string, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}
	vecs := make([]Vector, 0, len(records))
	for _, r := range records {
		if s.dimension > 0 && len(r.Values) != s.dimension {
			return &vector.DimensionMismatchError{ID: r.ID, Expected: s.dimension, Got: len(r.Values)}
		}
		vecs = append(vecs, Vector{ID: r.ID, Values: r.Values, Metadata: r.Metadata})
	}
	_, err := s.pc.UpsertVectors(ctx, s.indexHost, UpsertRequest{Namespace: namespace, Vectors: vecs})
	return err
}

func (s *Store) Query(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]vector.Match, error) {
	if s.dimension > 0 && len(q) != s.dimension {
		return nil, &vector.DimensionMismatchError{Expected: s.dimension, Got: len(q)}
	}
	resp, err := s.pc.Query(ctx, s.indexHost, QueryRequest{
		Namespace:       namespace,
		Vector:          q,
		TopK:            topK,
		Filter:          filter,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, err
	}
	out := make([]vector.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if strings.TrimSpace(m.ID) == "" {
			continue
		}
		out = append(out, vector.Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return out, nil
}

func (s *Store) Stats(ctx context.Context) (vector.Stats, error) {
	st, err := s.pc.DescribeIndexStats(ctx, s.indexHost)
	if err != nil {
		return vector.Stats{}, err
	}
	return vector.Stats{
		Dimension:     st.Dimension,
		TotalCount:    st.TotalVectorCount,
		FullnessRatio: st.IndexFullness,
	}, nil
}
