package recommend

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/yungbote/tunegraph/internal/cache"
	"github.com/yungbote/tunegraph/internal/config"
	"github.com/yungbote/tunegraph/internal/data/graph"
	"github.com/yungbote/tunegraph/internal/domain/music"
	"github.com/yungbote/tunegraph/internal/observability"
	"github.com/yungbote/tunegraph/internal/resilience"
	"github.com/yungbote/tunegraph/internal/vector"
)

type fakeIndex struct {
	mu      sync.Mutex
	matches []vector.Match
	queries int
	upserts []string
}

func (f *fakeIndex) Upsert(_ context.Context, id string, _ []float32, _ map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, id)
	return nil
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, topK int, _ map[string]any) ([]vector.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	out := append([]vector.Match(nil), f.matches...)
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func newTestEngine(t *testing.T, g Graph, ix Index) *Engine {
	t.Helper()
	reg := config.Defaults()
	e, err := New(Deps{
		Graph:       g,
		Index:       ix,
		Similarity:  reg.Similarity,
		Limits:      reg.Limits,
		Performance: reg.Performance,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func seedTracks(t *testing.T, e *Engine, tracks ...music.Track) {
	t.Helper()
	for _, track := range tracks {
		if err := e.UpsertTrack(context.Background(), track); err != nil {
			t.Fatalf("UpsertTrack(%s): %v", track.ID, err)
		}
	}
}

func tr(id, mood string, vibe float64, genres ...string) music.Track {
	return music.Track{ID: id, Name: "Track " + id, Mood: mood, Vibe: vibe, Genres: genres}
}

func TestUpsertTrackIdempotent(t *testing.T) {
	g := newMemGraph()
	e := newTestEngine(t, g, nil)
	track := tr("t1", "Happy", 60, "pop", "pop", "dance")
	seedTracks(t, e, track, track)

	if len(g.tracks) != 1 {
		t.Fatalf("tracks: want=1 got=%d", len(g.tracks))
	}
	if got := g.tracks["t1"].Genres; !reflect.DeepEqual(got, []string{"dance", "pop"}) {
		t.Fatalf("genres: want=[dance pop] got=%v", got)
	}
}

func TestUpsertTrackRejectsInvalidWithoutWriting(t *testing.T) {
	g := newMemGraph()
	e := newTestEngine(t, g, nil)
	err := e.UpsertTrack(context.Background(), music.Track{ID: "t1", Name: "x", Vibe: 140})
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Op != "upsert_track" || opErr.Entity != "t1" {
		t.Fatalf("want OperationError for upsert_track/t1 got=%v", err)
	}
	if !resilience.IsPermanent(err) {
		t.Fatalf("validation failure should be permanent: %v", err)
	}
	if g.upserts != 0 {
		t.Fatalf("graph writes: want=0 got=%d", g.upserts)
	}
}

func TestSimilarityThresholdGating(t *testing.T) {
	g := newMemGraph()
	e := newTestEngine(t, g, nil)
	seedTracks(t, e, tr("t1", "Happy", 50), tr("t2", "Happy", 50))
	ctx := context.Background()

	n, err := e.CreateSimilarityRelationships(ctx, "t1", []music.Candidate{{TrackID: "t2", Score: 0.65}}, 0.7)
	if err != nil || n != 0 {
		t.Fatalf("below threshold: n=%d err=%v", n, err)
	}
	if len(g.edges[graph.EdgeSimilarTo]) != 0 || g.merges != 0 {
		t.Fatalf("below threshold wrote edges=%d merges=%d", len(g.edges[graph.EdgeSimilarTo]), g.merges)
	}

	n, err = e.CreateSimilarityRelationships(ctx, "t1", []music.Candidate{{TrackID: "t2", Score: 0.75}}, 0.7)
	if err != nil || n != 1 {
		t.Fatalf("above threshold: n=%d err=%v", n, err)
	}
	if w := g.edges[graph.EdgeSimilarTo][pair("t1", "t2")]; w != 0.75 {
		t.Fatalf("weight: want=0.75 got=%v", w)
	}
}

func TestMoodRelationshipsDefaultToMoodThreshold(t *testing.T) {
	g := newMemGraph()
	e := newTestEngine(t, g, nil)
	seedTracks(t, e, tr("t1", "Calm", 20), tr("t2", "Calm", 25), tr("t3", "Calm", 30))

	n, err := e.CreateMoodSimilarityRelationships(context.Background(), "t1", []music.Candidate{
		{TrackID: "t2", Score: 0.79},
		{TrackID: "t3", Score: 0.85},
	}, 0)
	if err != nil || n != 1 {
		t.Fatalf("mood edges: n=%d err=%v", n, err)
	}
	if _, ok := g.edges[graph.EdgeMoodMatches][pair("t1", "t2")]; ok {
		t.Fatalf("edge below mood threshold exists")
	}
	if len(g.edges[graph.EdgeSimilarTo]) != 0 {
		t.Fatalf("mood call wrote SIMILAR_TO edges")
	}
}

func TestPlayCountIncrementsPerListen(t *testing.T) {
	g := newMemGraph()
	e := newTestEngine(t, g, nil)
	seedTracks(t, e, tr("t1", "Happy", 50))
	for i := 0; i < 3; i++ {
		if _, err := e.CreateUserPreferences(context.Background(), "u1", music.UserPreferences{ListenedTracks: []string{"t1"}}); err != nil {
			t.Fatalf("CreateUserPreferences: %v", err)
		}
	}
	if got := g.listens["u1"]["t1"]; got != 3 {
		t.Fatalf("play count: want=3 got=%d", got)
	}

	if _, err := e.CreateUserPreferences(context.Background(), "u1", music.UserPreferences{LikedTracks: []string{"t1", "t1"}}); err != nil {
		t.Fatalf("likes: %v", err)
	}
	if _, err := e.CreateUserPreferences(context.Background(), "u1", music.UserPreferences{LikedTracks: []string{"t1"}}); err != nil {
		t.Fatalf("likes again: %v", err)
	}
	if len(g.likes["u1"]) != 1 {
		t.Fatalf("likes: want=1 got=%d", len(g.likes["u1"]))
	}
}

func TestFindSimilarTracksCompoundsPathWeights(t *testing.T) {
	g := newMemGraph()
	e := newTestEngine(t, g, nil)
	seedTracks(t, e, tr("t1", "Happy", 50), tr("t2", "Happy", 50), tr("t3", "Happy", 50))
	ctx := context.Background()
	if _, err := e.CreateSimilarityRelationships(ctx, "t1", []music.Candidate{{TrackID: "t2", Score: 0.8}}, 0.7); err != nil {
		t.Fatalf("edge t1-t2: %v", err)
	}
	if _, err := e.CreateSimilarityRelationships(ctx, "t2", []music.Candidate{{TrackID: "t3", Score: 0.75}}, 0.7); err != nil {
		t.Fatalf("edge t2-t3: %v", err)
	}

	got, err := e.FindSimilarTracks(ctx, "t1", SimilarOptions{Limit: 10})
	if err != nil {
		t.Fatalf("FindSimilarTracks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("results: want=2 got=%d (%+v)", len(got), got)
	}
	if got[0].Track.ID != "t2" || got[0].Similarity != 0.8 {
		t.Fatalf("first: want=t2/0.8 got=%s/%v", got[0].Track.ID, got[0].Similarity)
	}
	if got[1].Track.ID != "t3" || math.Abs(got[1].Similarity-0.6) > 1e-9 {
		t.Fatalf("second: want=t3/0.6 got=%s/%v", got[1].Track.ID, got[1].Similarity)
	}
	if !reflect.DeepEqual(got[1].Path, []string{"t1", "t2", "t3"}) {
		t.Fatalf("path: got=%v", got[1].Path)
	}
}

func TestFindSimilarTracksHonoursMinSimilarityAndMoodEdges(t *testing.T) {
	g := newMemGraph()
	e := newTestEngine(t, g, nil)
	seedTracks(t, e, tr("a", "Sad", 10), tr("b", "Sad", 20), tr("c", "Sad", 30), tr("d", "Sad", 40))
	g.edges[graph.EdgeSimilarTo][pair("a", "b")] = 0.9
	g.edges[graph.EdgeSimilarTo][pair("b", "c")] = 0.55
	g.edges[graph.EdgeMoodMatches][pair("a", "d")] = 0.95
	ctx := context.Background()

	got, err := e.FindSimilarTracks(ctx, "a", SimilarOptions{MinSimilarity: 0.6})
	if err != nil {
		t.Fatalf("FindSimilarTracks: %v", err)
	}
	if len(got) != 1 || got[0].Track.ID != "b" {
		t.Fatalf("min similarity: want=[b] got=%+v", got)
	}

	got, err = e.FindSimilarTracks(ctx, "a", SimilarOptions{MinSimilarity: 0.6, IncludeMoodMatches: true})
	if err != nil {
		t.Fatalf("FindSimilarTracks with mood: %v", err)
	}
	if len(got) != 2 || got[0].Track.ID != "d" || got[1].Track.ID != "b" {
		t.Fatalf("with mood: want=[d b] got=%+v", got)
	}
}

func TestReducePathsKeepsBestPathPerTrack(t *testing.T) {
	paths := []graph.Path{
		{Track: music.Track{ID: "c"}, Weights: []float64{0.8, 0.75}, IDs: []string{"a", "b", "c"}},
		{Track: music.Track{ID: "c"}, Weights: []float64{0.7}, IDs: []string{"a", "c"}},
		{Track: music.Track{ID: "a"}, Weights: []float64{0.9, 0.9}, IDs: []string{"a", "b", "a"}},
		{Track: music.Track{ID: "d"}, Weights: []float64{0.9, 0.4}, IDs: []string{"a", "b", "d"}},
		{Track: music.Track{ID: "e"}, Weights: []float64{0.7}, IDs: []string{"a", "e"}},
	}
	got := ReducePaths("a", paths, 0.5, 10)
	if len(got) != 2 {
		t.Fatalf("results: want=2 got=%+v", got)
	}
	if got[0].Track.ID != "c" || got[0].Similarity != 0.7 || !reflect.DeepEqual(got[0].Path, []string{"a", "c"}) {
		t.Fatalf("best path for c: got=%+v", got[0])
	}
	if got[1].Track.ID != "e" {
		t.Fatalf("tie order: want=e got=%s", got[1].Track.ID)
	}
	if out := ReducePaths("a", paths, 0.5, 1); len(out) != 1 {
		t.Fatalf("limit: want=1 got=%d", len(out))
	}
}

func TestPathScore(t *testing.T) {
	cases := []struct {
		weights []float64
		want    float64
	}{
		{nil, 0},
		{[]float64{0.9}, 0.9},
		{[]float64{0.8, 0.75}, 0.6},
		{[]float64{1, 1}, 1},
	}
	for _, tc := range cases {
		if got := PathScore(tc.weights); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("PathScore(%v): want=%v got=%v", tc.weights, tc.want, got)
		}
	}
}

func TestFindTracksByMoodFilters(t *testing.T) {
	g := newMemGraph()
	e := newTestEngine(t, g, nil)
	warm := tr("w", "Happy", 70)
	warm.Feelings = []string{"warm", "bright"}
	seedTracks(t, e, tr("a", "Happy", 90), warm, tr("b", "Happy", 30), tr("s", "Sad", 95))
	ctx := context.Background()

	got, err := e.FindTracksByMood(ctx, "Happy", MoodOptions{})
	if err != nil {
		t.Fatalf("FindTracksByMood: %v", err)
	}
	if ids := trackIDs(got); !reflect.DeepEqual(ids, []string{"a", "w", "b"}) {
		t.Fatalf("order by vibe: got=%v", ids)
	}

	got, _ = e.FindTracksByMood(ctx, "Happy", MoodOptions{VibeRange: &music.VibeRange{Min: 50, Max: 80}})
	if ids := trackIDs(got); !reflect.DeepEqual(ids, []string{"w"}) {
		t.Fatalf("vibe range: got=%v", ids)
	}

	got, _ = e.FindTracksByMood(ctx, "Happy", MoodOptions{Feelings: []string{"warm"}})
	if ids := trackIDs(got); !reflect.DeepEqual(ids, []string{"w"}) {
		t.Fatalf("feelings: got=%v", ids)
	}

	if _, err := e.FindTracksByMood(ctx, "Happy", MoodOptions{VibeRange: &music.VibeRange{Min: 80, Max: 10}}); err == nil {
		t.Fatalf("inverted vibe range accepted")
	}
}

func trackIDs(ts []music.Track) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}

func TestCalculateTrackSimilarity(t *testing.T) {
	g := newMemGraph()
	e := newTestEngine(t, g, nil)
	seedTracks(t, e,
		tr("a", "Happy", 50, "pop", "dance", "disco"),
		tr("b", "Happy", 50, "pop", "dance", "disco", "funk"),
		tr("c", "Sad", 50, "folk"),
	)
	g.edges[graph.EdgeSimilarTo][pair("a", "b")] = 1.0
	ctx := context.Background()

	cases := []struct {
		a, b string
		want float64
	}{
		{"a", "b", 1.0},
		{"a", "c", 0},
		{"a", "a", 1.0},
	}
	for _, tc := range cases {
		got, err := e.CalculateTrackSimilarity(ctx, tc.a, tc.b)
		if err != nil {
			t.Fatalf("%s/%s: %v", tc.a, tc.b, err)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s/%s: want=%v got=%v", tc.a, tc.b, tc.want, got)
		}
	}

	if _, err := e.CalculateTrackSimilarity(ctx, "a", "missing"); !errors.Is(err, graph.ErrTrackNotFound) {
		t.Fatalf("missing track: want ErrTrackNotFound got=%v", err)
	}
}

func TestSimilarityScoreStaysInUnitInterval(t *testing.T) {
	cases := []struct {
		sig  graph.PairSignals
		want float64
	}{
		{graph.PairSignals{}, 0},
		{graph.PairSignals{SameMood: true}, 0.3},
		{graph.PairSignals{SharedGenres: 1}, 0.2 / 3},
		{graph.PairSignals{Direct: 0.8, SharedGenres: 10}, 0.6},
		{graph.PairSignals{Direct: 1.7, SameMood: true, SharedGenres: 99}, 1},
		{graph.PairSignals{Direct: -2, SharedGenres: -1}, 0},
	}
	for _, tc := range cases {
		got := SimilarityScore(tc.sig, 3)
		if got < 0 || got > 1 || math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("SimilarityScore(%+v): want=%v got=%v", tc.sig, tc.want, got)
		}
	}
}

// seedListeners builds: u1 likes t1, listened t2; t1~t3, t1~t4, t2~t4, t2~t1.
// u2 likes t1, t5, t6; u3 likes t1, t6.
func seedListeners(t *testing.T) (*Engine, *memGraph) {
	t.Helper()
	g := newMemGraph()
	e := newTestEngine(t, g, nil)
	seedTracks(t, e,
		tr("t1", "Happy", 50), tr("t2", "Happy", 60), tr("t3", "Happy", 90),
		tr("t4", "Happy", 40), tr("t5", "Calm", 20), tr("t6", "Calm", 10),
	)
	g.edges[graph.EdgeSimilarTo][pair("t1", "t3")] = 0.9
	g.edges[graph.EdgeSimilarTo][pair("t1", "t4")] = 0.8
	g.edges[graph.EdgeMoodMatches][pair("t2", "t4")] = 0.85
	g.edges[graph.EdgeSimilarTo][pair("t1", "t2")] = 0.95
	ctx := context.Background()
	prefs := map[string]music.UserPreferences{
		"u1": {LikedTracks: []string{"t1"}, ListenedTracks: []string{"t2"}},
		"u2": {LikedTracks: []string{"t1", "t5", "t6"}},
		"u3": {LikedTracks: []string{"t1", "t6"}},
	}
	for user, p := range prefs {
		if _, err := e.CreateUserPreferences(ctx, user, p); err != nil {
			t.Fatalf("prefs %s: %v", user, err)
		}
	}
	return e, g
}

func TestContentRecommendationsExcludeKnownTracks(t *testing.T) {
	e, g := seedListeners(t)
	got, err := e.GetPersonalizedRecommendations(context.Background(), "u1", RecommendOptions{})
	if err != nil {
		t.Fatalf("GetPersonalizedRecommendations: %v", err)
	}
	known := g.known("u1")
	for _, r := range got {
		if known[r.Track.ID] {
			t.Fatalf("recommended known track %s", r.Track.ID)
		}
		if r.Strategy != music.StrategyContent {
			t.Fatalf("strategy: want=content got=%s", r.Strategy)
		}
	}
	if len(got) != 2 || got[0].Track.ID != "t4" || got[0].Support != 2 || got[1].Track.ID != "t3" {
		t.Fatalf("ranking: want=[t4(2) t3(1)] got=%+v", got)
	}
}

func TestCollaborativeRecommendationsRankByPeers(t *testing.T) {
	e, _ := seedListeners(t)
	got, err := e.GetPersonalizedRecommendations(context.Background(), "u1", RecommendOptions{UseCollaborativeFiltering: true})
	if err != nil {
		t.Fatalf("GetPersonalizedRecommendations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("results: want=2 got=%+v", got)
	}
	if got[0].Track.ID != "t6" || got[0].Support != 2 || got[1].Track.ID != "t5" || got[1].Support != 1 {
		t.Fatalf("ranking: want=[t6(2) t5(1)] got=%+v", got)
	}
	for _, r := range got {
		if r.Track.ID == "t1" || r.Track.ID == "t2" {
			t.Fatalf("recommended known track %s", r.Track.ID)
		}
	}
}

func TestBatchUpsertBoundsConcurrencyAndCollectsFailures(t *testing.T) {
	g := newMemGraph()
	g.gate = make(chan struct{})
	g.failIDs["t3"] = errors.New("connection reset")
	e := newTestEngine(t, g, nil)
	e.limits.MaxBatchConcurrency = 2

	var tracks []music.Track
	for _, id := range []string{"t1", "t2", "t3", "t4", "t5", "t6"} {
		tracks = append(tracks, tr(id, "Happy", 50))
	}
	go func() {
		for range tracks {
			g.gate <- struct{}{}
		}
	}()
	res, err := e.BatchUpsertTracks(context.Background(), tracks)
	if err != nil {
		t.Fatalf("BatchUpsertTracks: %v", err)
	}
	if g.maxSeen > 2 {
		t.Fatalf("in flight: want<=2 got=%d", g.maxSeen)
	}
	if res.Upserted != 5 || len(res.Failures) != 1 || res.Failures[0].TrackID != "t3" {
		t.Fatalf("result: got=%+v", res)
	}
	var opErr *OperationError
	if !errors.As(res.Failures[0].Err, &opErr) || opErr.Entity != "t3" {
		t.Fatalf("failure type: got=%v", res.Failures[0].Err)
	}
}

func TestMaterializeSimilarityFromIndexSkipsSelfAndWeakNeighbours(t *testing.T) {
	g := newMemGraph()
	ix := &fakeIndex{matches: []vector.Match{
		{ID: "t1", Score: 1},
		{ID: "t2", Score: 0.9},
		{ID: "t3", Score: 0.6},
	}}
	e := newTestEngine(t, g, ix)
	seedTracks(t, e, tr("t1", "Happy", 1), tr("t2", "Happy", 2), tr("t3", "Happy", 3))

	n, err := e.MaterializeSimilarityFromIndex(context.Background(), "t1", []float32{1, 0})
	if err != nil || n != 1 {
		t.Fatalf("materialize: n=%d err=%v", n, err)
	}
	if _, ok := g.edges[graph.EdgeSimilarTo][pair("t1", "t2")]; !ok {
		t.Fatalf("missing t1-t2 edge")
	}
}

func TestVectorOperationsWithoutIndex(t *testing.T) {
	e := newTestEngine(t, newMemGraph(), nil)
	if err := e.IndexTrackEmbedding(context.Background(), "t1", []float32{1}, nil); !errors.Is(err, vector.ErrNotInitialized) {
		t.Fatalf("IndexTrackEmbedding: want ErrNotInitialized got=%v", err)
	}
	if _, err := e.FindTracksByMoodProfile(context.Background(), []float32{1}, 5, nil); !errors.Is(err, vector.ErrNotInitialized) {
		t.Fatalf("FindTracksByMoodProfile: want ErrNotInitialized got=%v", err)
	}
}

func TestMoodProfileRecomputesAfterExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	ix := &fakeIndex{matches: []vector.Match{{ID: "t1", Score: 0.9}}}
	e, err := New(Deps{
		Graph:      newMemGraph(),
		Index:      ix,
		MoodCache:  cache.New[[]vector.Match](10, time.Minute, cache.WithClock[[]vector.Match](clock)),
		Similarity: config.Defaults().Similarity,
		Limits:     config.Defaults().Limits,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	profile := []float32{0.1, 0.2}
	filter := map[string]any{"mood": "Happy"}

	for i := 0; i < 2; i++ {
		got, err := e.FindTracksByMoodProfile(ctx, profile, 5, filter)
		if err != nil || len(got) != 1 {
			t.Fatalf("query %d: got=%v err=%v", i, got, err)
		}
	}
	if ix.queries != 1 {
		t.Fatalf("index queries before expiry: want=1 got=%d", ix.queries)
	}

	now = now.Add(2 * time.Minute)
	if _, err := e.FindTracksByMoodProfile(ctx, profile, 5, filter); err != nil {
		t.Fatalf("query after expiry: %v", err)
	}
	if ix.queries != 2 {
		t.Fatalf("index queries after expiry: want=2 got=%d", ix.queries)
	}

	if _, err := e.FindTracksByMoodProfile(ctx, profile, 5, map[string]any{"mood": "Sad"}); err != nil {
		t.Fatalf("query with other filter: %v", err)
	}
	if ix.queries != 3 {
		t.Fatalf("distinct filter should miss: want=3 got=%d", ix.queries)
	}
}

func overBudgetCount(t *testing.T, op string) float64 {
	t.Helper()
	var m dto.Metric
	if err := observability.EngineSlowOperations.WithLabelValues(op).Write(&m); err != nil {
		t.Fatalf("read counter %s: %v", op, err)
	}
	return m.GetCounter().GetValue()
}

func TestSlowQueriesAreCountedOverBudget(t *testing.T) {
	g := newMemGraph()
	reg := config.Defaults()
	reg.Performance.SimilarityQueryBudget = 20 * time.Millisecond
	reg.Performance.RecommendationBudget = 20 * time.Millisecond
	e, err := New(Deps{Graph: g, Similarity: reg.Similarity, Limits: reg.Limits, Performance: reg.Performance})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	seedTracks(t, e, tr("t1", "Happy", 50), tr("t2", "Happy", 60))
	ctx := context.Background()
	if _, err := e.CreateSimilarityRelationships(ctx, "t1", []music.Candidate{{TrackID: "t2", Score: 0.9}}, 0); err != nil {
		t.Fatalf("CreateSimilarityRelationships: %v", err)
	}

	simBefore := overBudgetCount(t, "find_similar_tracks")
	recBefore := overBudgetCount(t, "get_personalized_recommendations")

	// Under budget: nothing is counted.
	if _, err := e.FindSimilarTracks(ctx, "t1", SimilarOptions{}); err != nil {
		t.Fatalf("FindSimilarTracks: %v", err)
	}
	if got := overBudgetCount(t, "find_similar_tracks"); got != simBefore {
		t.Fatalf("fast query counted: want=%v got=%v", simBefore, got)
	}

	g.delay = 40 * time.Millisecond
	res, err := e.FindSimilarTracks(ctx, "t1", SimilarOptions{})
	if err != nil {
		t.Fatalf("FindSimilarTracks: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("slow query should still answer: want=1 got=%d", len(res))
	}
	if _, err := e.GetPersonalizedRecommendations(ctx, "u1", RecommendOptions{}); err != nil {
		t.Fatalf("GetPersonalizedRecommendations: %v", err)
	}
	if got := overBudgetCount(t, "find_similar_tracks"); got != simBefore+1 {
		t.Fatalf("similarity over budget: want=%v got=%v", simBefore+1, got)
	}
	if got := overBudgetCount(t, "get_personalized_recommendations"); got != recBefore+1 {
		t.Fatalf("recommendations over budget: want=%v got=%v", recBefore+1, got)
	}
}

func TestTrackIDsPagesInOrder(t *testing.T) {
	g := newMemGraph()
	e := newTestEngine(t, g, nil)
	seedTracks(t, e, tr("t3", "Calm", 10), tr("t1", "Calm", 20), tr("t2", "Calm", 30))

	var got []string
	after := ""
	for {
		page, err := e.TrackIDs(context.Background(), after, 2)
		if err != nil {
			t.Fatalf("TrackIDs: %v", err)
		}
		got = append(got, page...)
		if len(page) < 2 {
			break
		}
		after = page[len(page)-1]
	}
	if want := []string{"t1", "t2", "t3"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ids: want=%v got=%v", want, got)
	}
}
