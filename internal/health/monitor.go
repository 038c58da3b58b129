// Package health probes the vector index, graph store and embedding cache
// and folds their results into one system report.
package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/tunegraph/internal/config"
	"github.com/yungbote/tunegraph/internal/observability"
	"github.com/yungbote/tunegraph/internal/platform/logger"
	"github.com/yungbote/tunegraph/internal/resilience"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Component is a named probe. Check returns nil when the dependency answered.
type Component struct {
	Name  string
	Check func(ctx context.Context) error
}

type ComponentHealth struct {
	Component string    `json:"component"`
	Status    Status    `json:"status"`
	LatencyMs *int64    `json:"latency_ms,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Report struct {
	Status     Status            `json:"status"`
	Components []ComponentHealth `json:"components"`
	ReportedAt time.Time         `json:"reported_at"`
}

type Monitor struct {
	log        *logger.Logger
	components []Component
	budget     time.Duration
	timeout    time.Duration
	now        func() time.Time

	mu     sync.RWMutex
	latest *Report
}

func NewMonitor(log *logger.Logger, cfg config.HealthConfig, components ...Component) *Monitor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Monitor{
		log:        log.With("service", "HealthMonitor"),
		components: components,
		budget:     cfg.LatencyBudget,
		timeout:    cfg.CheckTimeout,
		now:        time.Now,
	}
}

// CheckComponent runs one probe under the check timeout. An error (including
// the timeout) is unhealthy; a success slower than the latency budget is
// degraded.
func (m *Monitor) CheckComponent(ctx context.Context, c Component) ComponentHealth {
	out := ComponentHealth{Component: c.Name}
	if c.Check == nil {
		out.Status = StatusUnhealthy
		out.Error = "no check registered"
		out.Timestamp = m.now().UTC()
		return out
	}
	start := m.now()
	_, err := resilience.WithTimeout(ctx, m.timeout, "health check "+c.Name+" timed out", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.Check(ctx)
	})
	elapsed := m.now().Sub(start)
	out.Timestamp = m.now().UTC()

	switch {
	case err != nil:
		out.Status = StatusUnhealthy
		out.Error = err.Error()
	case m.budget > 0 && elapsed > m.budget:
		out.Status = StatusDegraded
	default:
		out.Status = StatusHealthy
	}
	if err == nil {
		ms := elapsed.Milliseconds()
		out.LatencyMs = &ms
	}

	observability.ComponentHealth.WithLabelValues(c.Name).Set(float64(out.Status.rank()))
	observability.ComponentLatency.WithLabelValues(c.Name).Set(elapsed.Seconds())
	return out
}

// GetSystemHealthReport checks the named components (all when names is
// empty) concurrently and aggregates them. Unknown names report unhealthy.
func (m *Monitor) GetSystemHealthReport(ctx context.Context, names ...string) Report {
	selected := m.pick(names)
	results := make([]ComponentHealth, len(selected))

	var g errgroup.Group
	for i, c := range selected {
		i, c := i, c
		g.Go(func() error {
			results[i] = m.CheckComponent(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	statuses := make([]Status, 0, len(results))
	for _, r := range results {
		statuses = append(statuses, r.Status)
	}
	return Report{
		Status:     Aggregate(statuses...),
		Components: results,
		ReportedAt: m.now().UTC(),
	}
}

func (m *Monitor) pick(names []string) []Component {
	if len(names) == 0 {
		return m.components
	}
	byName := make(map[string]Component, len(m.components))
	for _, c := range m.components {
		byName[c.Name] = c
	}
	out := make([]Component, 0, len(names))
	for _, n := range names {
		if c, ok := byName[n]; ok {
			out = append(out, c)
		} else {
			out = append(out, Component{Name: n})
		}
	}
	return out
}

// Aggregate returns the worst status: unhealthy over degraded over healthy.
// No statuses is healthy.
func Aggregate(statuses ...Status) Status {
	worst := StatusHealthy
	for _, s := range statuses {
		if s.rank() > worst.rank() {
			worst = s
		}
	}
	if worst.rank() == 2 {
		return StatusUnhealthy
	}
	return worst
}

// Refresh computes a full report and stores it as the latest.
func (m *Monitor) Refresh(ctx context.Context) Report {
	r := m.GetSystemHealthReport(ctx)
	m.mu.Lock()
	prev := m.latest
	m.latest = &r
	m.mu.Unlock()

	if prev == nil || prev.Status != r.Status {
		m.log.Info("system health changed", "status", string(r.Status))
	}
	for _, c := range r.Components {
		if c.Status != StatusHealthy {
			m.log.Warn("component not healthy", "component", c.Component, "status", string(c.Status), "error", c.Error)
		}
	}
	return r
}

// Latest returns the most recent report from Refresh or Run.
func (m *Monitor) Latest() (Report, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return Report{}, false
	}
	return *m.latest, true
}

// Run refreshes immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	m.Refresh(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Refresh(ctx)
		}
	}
}
