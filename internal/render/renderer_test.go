package render

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"github.com/san-kum/ribbon/internal/lineart"
	"github.com/san-kum/ribbon/internal/metrics"
)

var square = lineart.Set{{{X: 10, Y: 10}, {X: 50, Y: 10}, {X: 50, Y: 50}, {X: 10, Y: 50}}}

func newRenderer(t *testing.T, amount, speed float64, opts ...Option) *Renderer {
	t.Helper()
	opts = append([]Option{WithSeed(7)}, opts...)
	r, err := New(64, 64, lineart.RenderParams{JitterAmount: amount, JitterSpeed: speed}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestZeroJitterIsStable(t *testing.T) {
	r := newRenderer(t, 0, 30)
	r.SetPolylines(square)

	if err := r.Redraw(); err != nil {
		t.Fatal(err)
	}
	first := r.Snapshot()
	if err := r.Redraw(); err != nil {
		t.Fatal(err)
	}
	second := r.Snapshot()

	if first == second {
		t.Fatal("snapshot was not replaced by the redraw")
	}
	if !bytes.Equal(first.Pix, second.Pix) {
		t.Error("zero jitter produced different frames")
	}
	if c := first.RGBAAt(30, 10); c.R < 128 {
		t.Errorf("expected a bright stroke at (30,10), got %v", c)
	}
}

func TestJitterChangesFrames(t *testing.T) {
	r := newRenderer(t, 5, 30)
	r.SetPolylines(square)

	if err := r.Redraw(); err != nil {
		t.Fatal(err)
	}
	first := r.Snapshot()
	if err := r.Redraw(); err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(first.Pix, r.Snapshot().Pix) {
		t.Error("jittered redraws produced identical frames")
	}
}

func TestEmptySetIsBlack(t *testing.T) {
	r := newRenderer(t, 2, 30)
	r.SetPolylines(lineart.Set{{{X: 5, Y: 5}}})
	if err := r.Redraw(); err != nil {
		t.Fatal(err)
	}
	img := r.Snapshot()
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := img.RGBAAt(x, y)
			if c.R != 0 || c.G != 0 || c.B != 0 || c.A != 255 {
				t.Fatalf("pixel (%d,%d) = %v, expected opaque black", x, y, c)
			}
		}
	}
}

func TestSnapshotIsImmutable(t *testing.T) {
	r := newRenderer(t, 0, 30)
	before := r.Snapshot()
	saved := bytes.Clone(before.Pix)

	r.SetPolylines(square)
	if err := r.Redraw(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before.Pix, saved) {
		t.Error("published frame was modified by a later redraw")
	}
}

func TestThrottleBound(t *testing.T) {
	tests := []struct {
		speed  float64
		window time.Duration
	}{
		{30, time.Second},
		{1, 3 * time.Second},
		{60, 500 * time.Millisecond},
		{7, 2 * time.Second},
	}
	for _, tt := range tests {
		var th Throttle
		start := time.Unix(100, 0)
		allowed := 0
		for at := time.Duration(0); at < tt.window; at += time.Millisecond {
			if th.Allow(start.Add(at), tt.speed) {
				allowed++
			}
		}
		bound := int(math.Ceil(tt.window.Seconds()*tt.speed)) + 1
		if allowed > bound {
			t.Errorf("speed %v over %v: %d redraws, bound %d", tt.speed, tt.window, allowed, bound)
		}
		if allowed < bound-2 {
			t.Errorf("speed %v over %v: only %d redraws", tt.speed, tt.window, allowed)
		}
	}
}

func TestTickUsesCurrentSpeed(t *testing.T) {
	rate := metrics.NewRate("redraw_rate")
	r := newRenderer(t, 1, 10, WithMetric(rate))
	rate.Reset()

	start := time.Unix(200, 0)
	count := func(from, to time.Duration) int {
		n := 0
		for at := from; at < to; at += 5 * time.Millisecond {
			if r.Tick(start.Add(at)) {
				n++
			}
		}
		return n
	}

	slow := count(0, time.Second)
	if err := r.SetParams(lineart.RenderParams{JitterAmount: 1, JitterSpeed: 50}); err != nil {
		t.Fatal(err)
	}
	fast := count(time.Second, 2*time.Second)

	if slow > 11 || fast > 51 || fast <= slow {
		t.Errorf("unexpected redraw counts: slow=%d fast=%d", slow, fast)
	}
	if rate.Count() != slow+fast {
		t.Errorf("metric saw %d redraws, expected %d", rate.Count(), slow+fast)
	}
}

func TestSetParamsRejectsOutOfRange(t *testing.T) {
	r := newRenderer(t, 2, 30)
	if err := r.SetParams(lineart.RenderParams{JitterAmount: 2, JitterSpeed: 0}); err == nil {
		t.Error("expected bounds error")
	}
	if got := r.Params().JitterSpeed; got != 30 {
		t.Errorf("params changed after rejected update: %v", got)
	}
}

func TestResize(t *testing.T) {
	r := newRenderer(t, 0, 30)
	if err := r.Resize(32, 16); err != nil {
		t.Fatal(err)
	}
	if b := r.Snapshot().Bounds(); b.Dx() != 32 || b.Dy() != 16 {
		t.Errorf("snapshot bounds %v after resize", b)
	}
	if err := r.Resize(0, 16); err == nil {
		t.Error("expected error for zero width")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	r := newRenderer(t, 1, 60, WithHostRate(200))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := r.Run(ctx); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if r.Redraws() < 2 {
		t.Errorf("expected redraws while running, got %d", r.Redraws())
	}
}
