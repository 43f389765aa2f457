package metrics

import (
	"sync"
	"time"
)

// Rate reports events per second between the first and last observation.
type Rate struct {
	name  string
	mu    sync.Mutex
	count int
	first time.Time
	last  time.Time
}

func NewRate(name string) *Rate {
	return &Rate{name: name}
}

func (r *Rate) Name() string { return r.name }

func (r *Rate) Observe(_ float64, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		r.first = at
	}
	r.last = at
	r.count++
}

func (r *Rate) Value() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count < 2 {
		return 0
	}
	span := r.last.Sub(r.first).Seconds()
	if span <= 0 {
		return 0
	}
	return float64(r.count-1) / span
}

func (r *Rate) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *Rate) Reset() {
	r.mu.Lock()
	r.count = 0
	r.first, r.last = time.Time{}, time.Time{}
	r.mu.Unlock()
}

// Counter sums observed values.
type Counter struct {
	name string
	mu   sync.Mutex
	sum  float64
}

func NewCounter(name string) *Counter {
	return &Counter{name: name}
}

func (c *Counter) Name() string { return c.name }

func (c *Counter) Observe(v float64, _ time.Time) {
	c.mu.Lock()
	c.sum += v
	c.mu.Unlock()
}

func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sum
}

func (c *Counter) Reset() {
	c.mu.Lock()
	c.sum = 0
	c.mu.Unlock()
}
