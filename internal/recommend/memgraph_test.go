package recommend

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yungbote/tunegraph/internal/data/graph"
	"github.com/yungbote/tunegraph/internal/domain/music"
)

type pairKey [2]string

func pair(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// memGraph mirrors the graph store's semantics in memory.
type memGraph struct {
	mu       sync.Mutex
	tracks   map[string]music.Track
	edges    map[graph.EdgeKind]map[pairKey]float64
	likes    map[string]map[string]bool
	listens  map[string]map[string]int64
	prefG    map[string]map[string]bool
	prefM    map[string]map[string]bool
	failIDs  map[string]error
	upserts  int
	merges   int
	inFlight int
	maxSeen  int
	gate     chan struct{}
	delay    time.Duration // slows the read queries
}

func newMemGraph() *memGraph {
	return &memGraph{
		tracks:  map[string]music.Track{},
		edges:   map[graph.EdgeKind]map[pairKey]float64{graph.EdgeSimilarTo: {}, graph.EdgeMoodMatches: {}},
		likes:   map[string]map[string]bool{},
		listens: map[string]map[string]int64{},
		prefG:   map[string]map[string]bool{},
		prefM:   map[string]map[string]bool{},
		failIDs: map[string]error{},
	}
}

func (g *memGraph) UpsertTrack(_ context.Context, t music.Track) error {
	g.mu.Lock()
	g.upserts++
	g.inFlight++
	if g.inFlight > g.maxSeen {
		g.maxSeen = g.inFlight
	}
	gate := g.gate
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight--
	if err := g.failIDs[t.ID]; err != nil {
		return err
	}
	g.tracks[t.ID] = t
	return nil
}

func (g *memGraph) MergeEdges(_ context.Context, kind graph.EdgeKind, trackID string, cands []music.Candidate, threshold float64) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.merges++
	if _, ok := g.tracks[trackID]; !ok {
		return 0, nil
	}
	n := 0
	for _, c := range cands {
		if _, ok := g.tracks[c.TrackID]; !ok || c.TrackID == trackID || c.Score < threshold {
			continue
		}
		g.edges[kind][pair(trackID, c.TrackID)] = c.Score
		n++
	}
	return n, nil
}

func (g *memGraph) neighbours(id string, kinds ...graph.EdgeKind) map[string]float64 {
	out := map[string]float64{}
	for _, k := range kinds {
		for p, w := range g.edges[k] {
			var other string
			switch id {
			case p[0]:
				other = p[1]
			case p[1]:
				other = p[0]
			default:
				continue
			}
			if cur, ok := out[other]; !ok || w > cur {
				out[other] = w
			}
		}
	}
	return out
}

func (g *memGraph) SimilarPaths(_ context.Context, src string, q graph.PathQuery) ([]graph.Path, error) {
	time.Sleep(g.delay)
	g.mu.Lock()
	defer g.mu.Unlock()
	kinds := []graph.EdgeKind{graph.EdgeSimilarTo}
	if q.IncludeMood {
		kinds = append(kinds, graph.EdgeMoodMatches)
	}
	var out []graph.Path
	for mid, w1 := range g.neighbours(src, kinds...) {
		if w1 < q.MinSimilarity {
			continue
		}
		out = append(out, graph.Path{Track: g.tracks[mid], Weights: []float64{w1}, IDs: []string{src, mid}})
		for end, w2 := range g.neighbours(mid, kinds...) {
			if end == src || w2 < q.MinSimilarity {
				continue
			}
			out = append(out, graph.Path{Track: g.tracks[end], Weights: []float64{w1, w2}, IDs: []string{src, mid, end}})
		}
	}
	return out, nil
}

func (g *memGraph) TracksByMood(_ context.Context, q graph.MoodQuery) ([]music.Track, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []music.Track
	for _, t := range g.tracks {
		if t.Mood != q.Mood {
			continue
		}
		if q.VibeRange != nil && !q.VibeRange.Contains(t.Vibe) {
			continue
		}
		if !hasAll(t.Feelings, q.Feelings) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Vibe != out[j].Vibe {
			return out[i].Vibe > out[j].Vibe
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func hasAll(have, want []string) bool {
	set := map[string]bool{}
	for _, h := range have {
		set[h] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}

func (g *memGraph) RecordPreferences(_ context.Context, userID string, p music.UserPreferences) (graph.PreferenceCounts, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var c graph.PreferenceCounts
	ensure := func(m map[string]map[string]bool) map[string]bool {
		if m[userID] == nil {
			m[userID] = map[string]bool{}
		}
		return m[userID]
	}
	likes := ensure(g.likes)
	for _, id := range music.NormalizeLabels(p.LikedTracks) {
		if _, ok := g.tracks[id]; ok {
			likes[id] = true
			c.Likes++
		}
	}
	if g.listens[userID] == nil {
		g.listens[userID] = map[string]int64{}
	}
	for _, id := range music.NormalizeIDs(p.ListenedTracks) {
		if _, ok := g.tracks[id]; ok {
			g.listens[userID][id]++
			c.Listens++
		}
	}
	for _, name := range music.NormalizeLabels(p.FavoriteGenres) {
		ensure(g.prefG)[name] = true
		c.Genres++
	}
	for _, name := range music.NormalizeLabels(p.FavoriteMoods) {
		ensure(g.prefM)[name] = true
		c.Moods++
	}
	return c, nil
}

func (g *memGraph) known(userID string) map[string]bool {
	out := map[string]bool{}
	for id := range g.likes[userID] {
		out[id] = true
	}
	for id := range g.listens[userID] {
		out[id] = true
	}
	return out
}

func (g *memGraph) rank(support map[string]map[string]bool, limit int) []graph.Ranked {
	out := make([]graph.Ranked, 0, len(support))
	for id, srcs := range support {
		out = append(out, graph.Ranked{Track: g.tracks[id], Support: len(srcs)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Support != out[j].Support {
			return out[i].Support > out[j].Support
		}
		if out[i].Track.Vibe != out[j].Track.Vibe {
			return out[i].Track.Vibe > out[j].Track.Vibe
		}
		return out[i].Track.ID < out[j].Track.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (g *memGraph) ContentCandidates(_ context.Context, userID string, limit int) ([]graph.Ranked, error) {
	time.Sleep(g.delay)
	g.mu.Lock()
	defer g.mu.Unlock()
	known := g.known(userID)
	support := map[string]map[string]bool{}
	for k := range known {
		for rec := range g.neighbours(k, graph.EdgeSimilarTo, graph.EdgeMoodMatches) {
			if known[rec] {
				continue
			}
			if support[rec] == nil {
				support[rec] = map[string]bool{}
			}
			support[rec][k] = true
		}
	}
	return g.rank(support, limit), nil
}

func (g *memGraph) CollaborativeCandidates(_ context.Context, userID string, limit int) ([]graph.Ranked, error) {
	time.Sleep(g.delay)
	g.mu.Lock()
	defer g.mu.Unlock()
	known := g.known(userID)
	support := map[string]map[string]bool{}
	for peer, peerLikes := range g.likes {
		if peer == userID || !sharesAny(g.likes[userID], peerLikes) {
			continue
		}
		for rec := range peerLikes {
			if known[rec] {
				continue
			}
			if support[rec] == nil {
				support[rec] = map[string]bool{}
			}
			support[rec][peer] = true
		}
	}
	return g.rank(support, limit), nil
}

func sharesAny(a, b map[string]bool) bool {
	for id := range a {
		if b[id] {
			return true
		}
	}
	return false
}

func (g *memGraph) PairSignals(_ context.Context, a, b string) (graph.PairSignals, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ta, okA := g.tracks[a]
	tb, okB := g.tracks[b]
	if !okA || !okB {
		return graph.PairSignals{}, fmt.Errorf("pair %s/%s: %w", a, b, graph.ErrTrackNotFound)
	}
	shared := 0
	for _, x := range ta.Genres {
		for _, y := range tb.Genres {
			if x == y {
				shared++
			}
		}
	}
	return graph.PairSignals{
		Direct:       g.edges[graph.EdgeSimilarTo][pair(a, b)],
		SameMood:     ta.Mood != "" && ta.Mood == tb.Mood,
		SharedGenres: shared,
	}, nil
}

func (g *memGraph) TrackIDs(_ context.Context, after string, limit int) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.tracks))
	for id := range g.tracks {
		if id > after {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}
