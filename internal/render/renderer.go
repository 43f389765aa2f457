// Package render draws polyline sets onto an opaque raster surface with
// per-vertex jitter, redrawing at a throttled rate.
package render

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gg"

	"github.com/san-kum/ribbon/internal/lineart"
	"github.com/san-kum/ribbon/internal/metrics"
)

const (
	LineWidth       = 2.0
	DefaultHostRate = 60.0
)

// Renderer owns the drawing surface. SetPolylines may be called from any
// goroutine; redraws are serialised and each one uses a single complete set.
// Snapshot returns the last finished frame, which is never written again.
type Renderer struct {
	mu       sync.Mutex
	dc       *gg.Context
	params   lineart.RenderParams
	throttle Throttle
	rng      *rand.Rand

	set   atomic.Pointer[lineart.Set]
	frame atomic.Pointer[image.RGBA]

	hostRate float64
	logger   *slog.Logger
	metric   metrics.Metric
	redraws  atomic.Int64
}

type Option func(*Renderer)

func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetric observes every completed redraw.
func WithMetric(m metrics.Metric) Option {
	return func(r *Renderer) { r.metric = m }
}

func WithSeed(seed uint64) Option {
	return func(r *Renderer) { r.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithHostRate sets how often Run offers a tick to the throttle.
func WithHostRate(hz float64) Option {
	return func(r *Renderer) {
		if hz > 0 {
			r.hostRate = hz
		}
	}
}

func New(width, height int, params lineart.RenderParams, opts ...Option) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, lineart.Wrap("render", lineart.ErrParameterBounds, fmt.Errorf("surface %dx%d", width, height))
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	r := &Renderer{
		dc:       gg.NewContext(width, height),
		params:   params,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		hostRate: DefaultHostRate,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	empty := lineart.Set{}
	r.set.Store(&empty)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.redrawLocked(time.Now()); err != nil {
		return nil, err
	}
	return r, nil
}

// SetPolylines replaces the whole set drawn by subsequent redraws.
// Non-drawable polylines are dropped.
func (r *Renderer) SetPolylines(set lineart.Set) {
	s := set.Drawable()
	r.set.Store(&s)
}

func (r *Renderer) Polylines() lineart.Set { return *r.set.Load() }

func (r *Renderer) SetParams(p lineart.RenderParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.params = p
	r.mu.Unlock()
	return nil
}

func (r *Renderer) Params() lineart.RenderParams {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params
}

func (r *Renderer) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dc.Width(), r.dc.Height()
}

// Resize changes the surface dimensions and redraws immediately.
func (r *Renderer) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.dc.Resize(width, height); err != nil {
		return lineart.Wrap("render resize", lineart.ErrParameterBounds, err)
	}
	return r.redrawLocked(time.Now())
}

// Tick redraws when the throttle allows it at the current jitter speed and
// reports whether a redraw happened.
func (r *Renderer) Tick(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.throttle.Allow(now, r.params.JitterSpeed) {
		return false
	}
	if err := r.redrawLocked(now); err != nil {
		r.logger.Warn("redraw failed", "err", err)
		return false
	}
	return true
}

// Redraw draws the current set unconditionally.
func (r *Renderer) Redraw() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.redrawLocked(time.Now())
}

func (r *Renderer) redrawLocked(now time.Time) error {
	dc := r.dc
	dc.ClearWithColor(gg.Black)
	dc.SetRGB(1, 1, 1)
	dc.SetLineWidth(LineWidth)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)

	set := *r.set.Load()
	amount := r.params.JitterAmount
	drawn := false
	for _, line := range set {
		if len(line) < 2 {
			continue
		}
		for i, p := range line {
			x, y := p.X+r.offset(amount), p.Y+r.offset(amount)
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.ClosePath()
		drawn = true
	}
	if drawn {
		if err := dc.Stroke(); err != nil {
			dc.ClearPath()
			return fmt.Errorf("stroke: %w", err)
		}
	}

	r.frame.Store(toRGBA(dc.Image()))
	r.redraws.Add(1)
	if r.metric != nil {
		r.metric.Observe(1, now)
	}
	return nil
}

func (r *Renderer) offset(amount float64) float64 {
	if amount == 0 {
		return 0
	}
	return (r.rng.Float64() - 0.5) * amount
}

// Jittered returns a copy of the current set with one draw's worth of
// jitter applied, for vector export.
func (r *Renderer) Jittered() lineart.Set {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := *r.set.Load()
	out := make(lineart.Set, 0, len(set))
	for _, line := range set {
		c := line.Clone()
		for i := range c {
			c[i].X += r.offset(r.params.JitterAmount)
			c[i].Y += r.offset(r.params.JitterAmount)
		}
		out = append(out, c)
	}
	return out
}

// Snapshot returns the most recent complete frame.
func (r *Renderer) Snapshot() *image.RGBA { return r.frame.Load() }

func (r *Renderer) Redraws() int64 { return r.redraws.Load() }

// Run offers ticks at the host rate until ctx is cancelled.
func (r *Renderer) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / r.hostRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			r.Tick(now)
		}
	}
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
