package lineart

import (
	"fmt"
	"math"
)

// Parameter bounds accepted from callers.
const (
	MinThreshold     = 0.0
	MaxThreshold     = 255.0
	MinEpsilonFactor = 0.001
	MaxEpsilonFactor = 0.05
	MinJitterAmount  = 0.0
	MaxJitterAmount  = 20.0
	MinJitterSpeed   = 1.0
	MaxJitterSpeed   = 60.0
)

const (
	DefaultThreshold1    = 100.0
	DefaultThreshold2    = 200.0
	DefaultEpsilonFactor = 0.025
	DefaultJitterAmount  = 2.0
	DefaultJitterSpeed   = 30.0
)

type Point struct {
	X, Y float64
}

func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Polyline is an implicitly closed path; the last point connects back to the
// first when stroked.
type Polyline []Point

// Drawable reports whether the polyline has enough points to be stroked.
func (l Polyline) Drawable() bool { return len(l) >= 2 }

func (l Polyline) Clone() Polyline {
	c := make(Polyline, len(l))
	copy(c, l)
	return c
}

// Perimeter is the closed arc length of the polyline.
func (l Polyline) Perimeter() float64 {
	if len(l) < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < len(l); i++ {
		total += l[i-1].Dist(l[i])
	}
	return total + l[len(l)-1].Dist(l[0])
}

// Set is the output of one extraction. Order across polylines carries no
// meaning.
type Set []Polyline

// Drawable returns the polylines with at least two points. It is idempotent.
func (s Set) Drawable() Set {
	out := make(Set, 0, len(s))
	for _, l := range s {
		if l.Drawable() {
			out = append(out, l)
		}
	}
	return out
}

func (s Set) PointCount() int {
	n := 0
	for _, l := range s {
		n += len(l)
	}
	return n
}

type ExtractionParams struct {
	Threshold1    float64 `yaml:"threshold1" json:"threshold1"`
	Threshold2    float64 `yaml:"threshold2" json:"threshold2"`
	EpsilonFactor float64 `yaml:"epsilon_factor" json:"epsilon_factor"`
}

func DefaultExtractionParams() ExtractionParams {
	return ExtractionParams{
		Threshold1:    DefaultThreshold1,
		Threshold2:    DefaultThreshold2,
		EpsilonFactor: DefaultEpsilonFactor,
	}
}

// Validate checks the recognized ranges. Threshold1 <= Threshold2 is expected
// but deliberately not enforced.
func (p ExtractionParams) Validate() error {
	if !inRange(p.Threshold1, MinThreshold, MaxThreshold) {
		return boundsError("threshold1", p.Threshold1, MinThreshold, MaxThreshold)
	}
	if !inRange(p.Threshold2, MinThreshold, MaxThreshold) {
		return boundsError("threshold2", p.Threshold2, MinThreshold, MaxThreshold)
	}
	if !inRange(p.EpsilonFactor, MinEpsilonFactor, MaxEpsilonFactor) {
		return boundsError("epsilon_factor", p.EpsilonFactor, MinEpsilonFactor, MaxEpsilonFactor)
	}
	return nil
}

type RenderParams struct {
	JitterAmount float64 `yaml:"jitter_amount" json:"jitter_amount"`
	JitterSpeed  float64 `yaml:"jitter_speed" json:"jitter_speed"`
}

func DefaultRenderParams() RenderParams {
	return RenderParams{
		JitterAmount: DefaultJitterAmount,
		JitterSpeed:  DefaultJitterSpeed,
	}
}

func (p RenderParams) Validate() error {
	if !inRange(p.JitterAmount, MinJitterAmount, MaxJitterAmount) {
		return boundsError("jitter_amount", p.JitterAmount, MinJitterAmount, MaxJitterAmount)
	}
	if !inRange(p.JitterSpeed, MinJitterSpeed, MaxJitterSpeed) {
		return boundsError("jitter_speed", p.JitterSpeed, MinJitterSpeed, MaxJitterSpeed)
	}
	return nil
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}

func boundsError(name string, v, lo, hi float64) error {
	return fmt.Errorf("%w: %s=%g not in [%g, %g]", ErrParameterBounds, name, v, lo, hi)
}
