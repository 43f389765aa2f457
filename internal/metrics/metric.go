package metrics

import (
	"sort"
	"sync"
	"time"
)

// Metric accumulates observations. Implementations are safe for concurrent
// use.
type Metric interface {
	Name() string
	Observe(value float64, at time.Time)
	Value() float64
	Reset()
}

// Registry groups metrics by name for reporting.
type Registry struct {
	mu      sync.Mutex
	metrics map[string]Metric
}

func NewRegistry(ms ...Metric) *Registry {
	r := &Registry{metrics: make(map[string]Metric)}
	for _, m := range ms {
		r.Register(m)
	}
	return r
}

func (r *Registry) Register(m Metric) {
	r.mu.Lock()
	r.metrics[m.Name()] = m
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Metric, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.metrics[name]
	return m, ok
}

func (r *Registry) Snapshot() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]float64, len(r.metrics))
	for name, m := range r.metrics {
		out[name] = m.Value()
	}
	return out
}

func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.metrics {
		m.Reset()
	}
}
