// Package graph is the Neo4j adapter for the track relationship graph.
//
// Every logical operation opens its own session, runs one managed
// transaction and closes the session before returning. Driver records are
// decoded into the package's result types here and never escape.
package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/tunegraph/internal/observability"
	"github.com/yungbote/tunegraph/internal/platform/logger"
	"github.com/yungbote/tunegraph/internal/platform/neo4jdb"
	"github.com/yungbote/tunegraph/internal/resilience"
)

var (
	ErrNotInitialized = errors.New("graph store not initialized")
	ErrTrackNotFound  = errors.New("track not found")
)

// Row is one result record keyed by RETURN alias.
type Row map[string]any

// Tx runs statements inside one transaction.
type Tx interface {
	Run(ctx context.Context, st Statement, params map[string]any) ([]Row, error)
}

// Runner owns session lifecycle. Each Read or Write call is one session and
// one transaction; fn may run more than once only if the caller retries.
type Runner interface {
	Read(ctx context.Context, fn func(context.Context, Tx) error) error
	Write(ctx context.Context, fn func(context.Context, Tx) error) error
	Ping(ctx context.Context) error
}

type Store struct {
	log    *logger.Logger
	runner Runner
	exec   resilience.Executor
	now    func() time.Time
}

// New adapts a connected client. A nil client is a wiring bug and is
// reported as ErrNotInitialized.
func New(log *logger.Logger, client *neo4jdb.Client, exec resilience.Executor) (*Store, error) {
	if client == nil || client.Driver == nil {
		return nil, ErrNotInitialized
	}
	return NewWithRunner(log, &driverRunner{client: client}, exec), nil
}

func NewWithRunner(log *logger.Logger, r Runner, exec resilience.Executor) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	if exec.Store == "" {
		exec.Store = "graph"
	}
	if exec.Log == nil {
		exec.Log = log
	}
	return &Store{
		log:    log.With("service", "GraphStore"),
		runner: r,
		exec:   exec,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) stamp() string {
	return s.now().Format(time.RFC3339Nano)
}

func (s *Store) read(ctx context.Context, op string, fn func(context.Context, Tx) error) error {
	return s.run(ctx, op, false, fn)
}

func (s *Store) write(ctx context.Context, op string, fn func(context.Context, Tx) error) error {
	return s.run(ctx, op, true, fn)
}

func (s *Store) run(ctx context.Context, op string, write bool, fn func(context.Context, Tx) error) error {
	if s == nil || s.runner == nil {
		return ErrNotInitialized
	}
	ctx, span := observability.StartSpan(ctx, "graph."+op, attribute.Bool("graph.write", write))
	err := resilience.Exec(ctx, s.exec, op, func(ctx context.Context) error {
		if write {
			return s.runner.Write(ctx, fn)
		}
		return s.runner.Read(ctx, fn)
	})
	observability.EndSpan(span, err)
	return err
}

// Check pings the database unless the breaker is already open, then counts
// the graph so the entity gauges track the last healthy read.
func (s *Store) Check(ctx context.Context) error {
	if s == nil || s.runner == nil {
		return ErrNotInitialized
	}
	if s.exec.Breaker.Open() {
		return fmt.Errorf("graph: circuit %s open", s.exec.Breaker.Name())
	}
	if err := s.runner.Ping(ctx); err != nil {
		return err
	}
	st, err := s.Stats(ctx)
	if err != nil {
		return fmt.Errorf("graph stats: %w", err)
	}
	observability.GraphEntities.WithLabelValues("tracks").Set(float64(st.Tracks))
	observability.GraphEntities.WithLabelValues("users").Set(float64(st.Users))
	observability.GraphEntities.WithLabelValues("similar_edges").Set(float64(st.SimilarEdges))
	observability.GraphEntities.WithLabelValues("mood_edges").Set(float64(st.MoodEdges))
	return nil
}

type driverRunner struct {
	client *neo4jdb.Client
}

func (r *driverRunner) Read(ctx context.Context, fn func(context.Context, Tx) error) error {
	return r.execute(ctx, neo4j.AccessModeRead, fn)
}

func (r *driverRunner) Write(ctx context.Context, fn func(context.Context, Tx) error) error {
	return r.execute(ctx, neo4j.AccessModeWrite, fn)
}

func (r *driverRunner) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

func (r *driverRunner) execute(ctx context.Context, mode neo4j.AccessMode, fn func(context.Context, Tx) error) error {
	if r.client == nil || r.client.Driver == nil {
		return resilience.Permanent(ErrNotInitialized)
	}
	session := r.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: r.client.Database,
	})
	// Close must run even when ctx was cancelled by the attempt timeout.
	defer session.Close(context.WithoutCancel(ctx))

	work := func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(ctx, neoTx{tx: tx})
	}
	var err error
	if mode == neo4j.AccessModeWrite {
		_, err = session.ExecuteWrite(ctx, work)
	} else {
		_, err = session.ExecuteRead(ctx, work)
	}
	return classify(err)
}

type neoTx struct {
	tx neo4j.ManagedTransaction
}

func (t neoTx) Run(ctx context.Context, st Statement, params map[string]any) ([]Row, error) {
	res, err := t.tx.Run(ctx, st.Cypher(), params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", st, err)
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", st, err)
	}
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row(rec.AsMap()))
	}
	return rows, nil
}

// classify marks driver errors for the retry loop: retryable driver errors
// become transient, client errors (syntax, constraint, auth) permanent.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if neo4j.IsRetryable(err) {
		return resilience.Transient(err)
	}
	var ne *neo4j.Neo4jError
	if errors.As(err, &ne) && strings.HasPrefix(ne.Code, "Neo.ClientError.") {
		return resilience.Permanent(err)
	}
	return err
}

func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	var ne *neo4j.Neo4jError
	if errors.As(err, &ne) && strings.Contains(ne.Code, "AlreadyExists") {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}
