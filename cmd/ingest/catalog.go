package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/tunegraph/internal/data/graph"
	"github.com/yungbote/tunegraph/internal/domain/music"
	"github.com/yungbote/tunegraph/internal/platform/logger"
	"github.com/yungbote/tunegraph/internal/recommend"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Catalog is the ingestion file. JSON input decodes too since it is valid
// YAML.
type Catalog struct {
	Tracks       []music.Track                    `yaml:"tracks" validate:"dive"`
	Users        map[string]music.UserPreferences `yaml:"users"`
	Similarities []EdgeBatch                      `yaml:"similarities" validate:"dive"`
	Embeddings   map[string][]float32             `yaml:"embeddings"`
}

// EdgeBatch lists scored neighbours for one track. Mood selects
// MOOD_MATCHES instead of SIMILAR_TO; a zero threshold uses the configured
// default for the edge type.
type EdgeBatch struct {
	TrackID    string            `yaml:"track_id" validate:"required"`
	Mood       bool              `yaml:"mood"`
	Threshold  float64           `yaml:"threshold" validate:"gte=0,lte=1"`
	Candidates []music.Candidate `yaml:"candidates" validate:"dive"`
}

func decodeCatalog(r io.Reader) (*Catalog, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return &c, nil
}

// Ingester is the slice of the engine the loader drives.
type Ingester interface {
	BatchUpsertTracks(ctx context.Context, tracks []music.Track) (recommend.BatchResult, error)
	CreateUserPreferences(ctx context.Context, userID string, prefs music.UserPreferences) (graph.PreferenceCounts, error)
	CreateSimilarityRelationships(ctx context.Context, trackID string, candidates []music.Candidate, threshold float64) (int, error)
	CreateMoodSimilarityRelationships(ctx context.Context, trackID string, candidates []music.Candidate, threshold float64) (int, error)
	IndexTrackEmbedding(ctx context.Context, trackID string, values []float32, metadata map[string]any) error
	MaterializeSimilarityFromIndex(ctx context.Context, trackID string, values []float32) (int, error)
	TrackIDs(ctx context.Context, after string, limit int) ([]string, error)
}

const trackIDPage = 500

type Options struct {
	// Materialize derives SIMILAR_TO edges from each embedding's nearest
	// neighbours once all embeddings are indexed.
	Materialize bool
	DryRun      bool
}

type Summary struct {
	Tracks        int
	TrackFailures int
	Users         int
	Edges         int
	Embeddings    int
	// Orphans are embeddings skipped because their track is not in the graph.
	Orphans int
	Errors  int
}

func (s Summary) String() string {
	return fmt.Sprintf("tracks=%d track_failures=%d users=%d edges=%d embeddings=%d orphans=%d errors=%d",
		s.Tracks, s.TrackFailures, s.Users, s.Edges, s.Embeddings, s.Orphans, s.Errors)
}

// Load writes tracks first so that user activity and edges can reference
// them, then users, explicit edges and embeddings. Embeddings are indexed
// only for tracks the graph holds, so materialization never links to a
// missing track. Item failures are logged and counted; only a cancelled
// context aborts the run.
func Load(ctx context.Context, log *logger.Logger, eng Ingester, c *Catalog, opts Options) (Summary, error) {
	var sum Summary
	if opts.DryRun {
		sum.Tracks = len(c.Tracks)
		sum.Users = len(c.Users)
		sum.Embeddings = len(c.Embeddings)
		for _, b := range c.Similarities {
			sum.Edges += len(b.Candidates)
		}
		return sum, nil
	}

	res, err := eng.BatchUpsertTracks(ctx, c.Tracks)
	if err != nil {
		return sum, err
	}
	sum.Tracks = res.Upserted
	sum.TrackFailures = len(res.Failures)
	for _, f := range res.Failures {
		log.Warn("track upsert failed", "track_id", f.TrackID, "error", f.Err)
	}

	for _, id := range sortedKeys(c.Users) {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if _, err := eng.CreateUserPreferences(ctx, id, c.Users[id]); err != nil {
			log.Warn("user preferences failed", "user_id", id, "error", err)
			sum.Errors++
			continue
		}
		sum.Users++
	}

	for _, b := range c.Similarities {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		create := eng.CreateSimilarityRelationships
		if b.Mood {
			create = eng.CreateMoodSimilarityRelationships
		}
		n, err := create(ctx, b.TrackID, b.Candidates, b.Threshold)
		if err != nil {
			log.Warn("edge batch failed", "track_id", b.TrackID, "mood", b.Mood, "error", err)
			sum.Errors++
			continue
		}
		sum.Edges += n
	}

	if len(c.Embeddings) == 0 {
		return sum, nil
	}
	known, err := knownTracks(ctx, eng)
	if err != nil {
		return sum, err
	}
	var ids []string
	for _, id := range sortedKeys(c.Embeddings) {
		if !known[id] {
			log.Warn("embedding skipped; track not in graph", "track_id", id)
			sum.Orphans++
			continue
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := eng.IndexTrackEmbedding(ctx, id, c.Embeddings[id], nil); err != nil {
			log.Warn("embedding upsert failed", "track_id", id, "error", err)
			sum.Errors++
			continue
		}
		sum.Embeddings++
	}
	if opts.Materialize {
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			n, err := eng.MaterializeSimilarityFromIndex(ctx, id, c.Embeddings[id])
			if err != nil {
				log.Warn("similarity materialization failed", "track_id", id, "error", err)
				sum.Errors++
				continue
			}
			sum.Edges += n
		}
	}
	return sum, nil
}

// knownTracks pages every track id out of the graph.
func knownTracks(ctx context.Context, eng Ingester) (map[string]bool, error) {
	known := make(map[string]bool)
	after := ""
	for {
		page, err := eng.TrackIDs(ctx, after, trackIDPage)
		if err != nil {
			return nil, fmt.Errorf("list graph tracks: %w", err)
		}
		for _, id := range page {
			known[id] = true
		}
		if len(page) < trackIDPage {
			return known, nil
		}
		after = page[len(page)-1]
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
