package vector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/tunegraph/internal/config"
	"github.com/yungbote/tunegraph/internal/platform/logger"
	"github.com/yungbote/tunegraph/internal/resilience"
)

type fakeProvider struct {
	mu       sync.Mutex
	upserts  []Record
	matches  []Match
	stats    Stats
	queryErr []error
	calls    int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Upsert(_ context.Context, _ string, records []Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, records...)
	return nil
}

func (f *fakeProvider) Query(context.Context, string, []float32, int, map[string]any) ([]Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.queryErr) > 0 {
		err := f.queryErr[0]
		f.queryErr = f.queryErr[1:]
		return nil, err
	}
	return append([]Match(nil), f.matches...), nil
}


func (f *fakeProvider) Stats(context.Context) (Stats, error) { return f.stats, nil }

func newTestIndex(t *testing.T, p Provider) *Index {
	t.Helper()
	cfg := config.Defaults().Vector
	cfg.Dimension = 3
	ix, err := NewIndex(logger.NewNop(), p, cfg, resilience.Executor{
		Policy:  resilience.RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
		Timeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	return ix
}

func TestIndexRejectsDimensionMismatchWithoutRetry(t *testing.T) {
	p := &fakeProvider{}
	ix := newTestIndex(t, p)

	err := ix.Upsert(context.Background(), "trk-1", []float32{1, 2}, nil)
	var dm *DimensionMismatchError
	if !errors.As(err, &dm) {
		t.Fatalf("expected DimensionMismatchError, got=%v", err)
	}
	if !resilience.IsPermanent(err) {
		t.Fatalf("dimension mismatch must be fatal")
	}
	if _, err := ix.Query(context.Background(), []float32{1}, 5, nil); !errors.As(err, &dm) {
		t.Fatalf("query: expected DimensionMismatchError, got=%v", err)
	}
	if p.calls != 0 || len(p.upserts) != 0 {
		t.Fatalf("provider should not be called on mismatch")
	}
}

func TestIndexQueryClampsSortsAndTruncates(t *testing.T) {
	p := &fakeProvider{matches: []Match{
		{ID: "b", Score: 0.4},
		{ID: "a", Score: 1.3},
		{ID: "", Score: 0.9},
		{ID: "c", Score: -0.2},
		{ID: "d", Score: 0.4},
	}}
	ix := newTestIndex(t, p)

	got, err := ix.Query(context.Background(), []float32{1, 2, 3}, 3, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := []Match{{ID: "a", Score: 1}, {ID: "b", Score: 0.4}, {ID: "d", Score: 0.4}}
	if len(got) != len(want) {
		t.Fatalf("len: want=%d got=%d (%+v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Score != want[i].Score {
			t.Fatalf("match[%d]: want=%+v got=%+v", i, want[i], got[i])
		}
	}
}

func TestIndexQueryRetriesTransientErrors(t *testing.T) {
	p := &fakeProvider{
		queryErr: []error{errors.New("connection reset by peer")},
		matches:  []Match{{ID: "a", Score: 0.8}},
	}
	ix := newTestIndex(t, p)
	got, err := ix.Query(context.Background(), []float32{1, 2, 3}, 1, nil)
	if err != nil || len(got) != 1 {
		t.Fatalf("Query: got=%v err=%v", got, err)
	}
	if p.calls != 2 {
		t.Fatalf("calls: want=2 got=%d", p.calls)
	}
}

func TestIndexStats(t *testing.T) {
	ix := newTestIndex(t, &fakeProvider{stats: Stats{Dimension: 3, TotalCount: 10, FullnessRatio: 0.1}})
	st, err := ix.Stats(context.Background())
	if err != nil || st.TotalCount != 10 || st.Dimension != 3 {
		t.Fatalf("Stats: got=%+v err=%v", st, err)
	}

	bad := newTestIndex(t, &fakeProvider{stats: Stats{Dimension: 768}})
	if _, err := bad.Stats(context.Background()); err == nil {
		t.Fatalf("expected dimension mismatch from stats")
	}
}

func TestNilIndexNotInitialized(t *testing.T) {
	var ix *Index
	if err := ix.Upsert(context.Background(), "a", nil, nil); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("want ErrNotInitialized got=%v", err)
	}
	if _, err := NewIndex(logger.NewNop(), nil, config.Defaults().Vector, resilience.Executor{}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("want ErrNotInitialized got=%v", err)
	}
}
