package metrics

import (
	"math"
	"sync"
	"time"
)

// Mean is the running mean of observed values.
type Mean struct {
	name    string
	mu      sync.Mutex
	sum     float64
	samples int
}

func NewMean(name string) *Mean {
	return &Mean{name: name}
}

func (m *Mean) Name() string { return m.name }

func (m *Mean) Observe(v float64, _ time.Time) {
	m.mu.Lock()
	m.sum += v
	m.samples++
	m.mu.Unlock()
}

func (m *Mean) Value() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *Mean) Reset() {
	m.mu.Lock()
	m.sum = 0
	m.samples = 0
	m.mu.Unlock()
}

// Peak tracks the largest observed value.
type Peak struct {
	name string
	mu   sync.Mutex
	max  float64
	seen bool
}

func NewPeak(name string) *Peak {
	return &Peak{name: name}
}

func (p *Peak) Name() string { return p.name }

func (p *Peak) Observe(v float64, _ time.Time) {
	p.mu.Lock()
	if !p.seen || v > p.max {
		p.max = v
		p.seen = true
	}
	p.mu.Unlock()
}

func (p *Peak) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.max
}

func (p *Peak) Reset() {
	p.mu.Lock()
	p.max = 0
	p.seen = false
	p.mu.Unlock()
}

// DelayStats summarises per-frame delays in milliseconds.
type DelayStats struct {
	Count  int     `json:"count"`
	Total  float64 `json:"total_ms"`
	Mean   float64 `json:"mean_ms"`
	Min    float64 `json:"min_ms"`
	Max    float64 `json:"max_ms"`
	StdDev float64 `json:"stddev_ms"`
}

func SummariseDelays(delays []time.Duration) DelayStats {
	if len(delays) == 0 {
		return DelayStats{}
	}
	s := DelayStats{Count: len(delays), Min: math.Inf(1), Max: math.Inf(-1)}
	for _, d := range delays {
		ms := float64(d) / float64(time.Millisecond)
		s.Total += ms
		s.Min = math.Min(s.Min, ms)
		s.Max = math.Max(s.Max, ms)
	}
	s.Mean = s.Total / float64(s.Count)
	for _, d := range delays {
		diff := float64(d)/float64(time.Millisecond) - s.Mean
		s.StdDev += diff * diff
	}
	s.StdDev = math.Sqrt(s.StdDev / float64(s.Count))
	return s
}
