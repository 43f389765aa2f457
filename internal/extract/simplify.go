package extract

import (
	"image"
	"math"

	"github.com/san-kum/ribbon/internal/lineart"
)

// Simplify reduces a closed contour with Douglas-Peucker using a tolerance of
// factor times the contour perimeter.
func Simplify(contour lineart.Polyline, factor float64) lineart.Polyline {
	if len(contour) < 3 {
		return contour.Clone()
	}
	return SimplifyClosed(contour, factor*contour.Perimeter())
}

// SimplifyClosed splits the closed path at two mutually distant points and
// runs open Douglas-Peucker on each half. The result keeps the input
// orientation and starts at the first split point.
func SimplifyClosed(contour lineart.Polyline, epsilon float64) lineart.Polyline {
	n := len(contour)
	if n < 3 {
		return contour.Clone()
	}

	a := 0
	b := farthestFrom(contour, a)
	for iter := 0; iter < 2; iter++ {
		a, b = b, farthestFrom(contour, b)
	}
	if a == b {
		return lineart.Polyline{contour[a]}
	}
	if a > b {
		a, b = b, a
	}

	first := make(lineart.Polyline, 0, b-a+1)
	first = append(first, contour[a:b+1]...)
	second := make(lineart.Polyline, 0, n-b+a+1)
	second = append(second, contour[b:]...)
	second = append(second, contour[:a+1]...)

	left := simplifyOpen(first, epsilon)
	right := simplifyOpen(second, epsilon)

	out := make(lineart.Polyline, 0, len(left)+len(right)-2)
	out = append(out, left[:len(left)-1]...)
	out = append(out, right[:len(right)-1]...)
	return out
}

func farthestFrom(pts lineart.Polyline, i int) int {
	best, bestDist := i, -1.0
	for j, p := range pts {
		if d := p.Dist(pts[i]); d > bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

// simplifyOpen keeps both endpoints and every point farther than epsilon from
// the chord it would otherwise be merged into.
func simplifyOpen(pts lineart.Polyline, epsilon float64) lineart.Polyline {
	n := len(pts)
	if n <= 2 {
		return pts.Clone()
	}
	keep := make([]bool, n)
	keep[0], keep[n-1] = true, true

	type span struct{ lo, hi int }
	stack := []span{{0, n - 1}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.hi-s.lo < 2 {
			continue
		}
		idx, maxDist := -1, epsilon
		for i := s.lo + 1; i < s.hi; i++ {
			if d := lineDistance(pts[i], pts[s.lo], pts[s.hi]); d > maxDist {
				idx, maxDist = i, d
			}
		}
		if idx < 0 {
			continue
		}
		keep[idx] = true
		stack = append(stack, span{s.lo, idx}, span{idx, s.hi})
	}

	out := make(lineart.Polyline, 0, n)
	for i, k := range keep {
		if k {
			out = append(out, pts[i])
		}
	}
	return out
}

func lineDistance(p, a, b lineart.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return p.Dist(a)
	}
	return math.Abs(dx*(p.Y-a.Y)-dy*(p.X-a.X)) / length
}

// toPolyline converts a backend contour, offsetting it by origin.
func toPolyline(pts []image.Point, origin image.Point) lineart.Polyline {
	out := make(lineart.Polyline, len(pts))
	for i, p := range pts {
		p = p.Add(origin)
		out[i] = lineart.Point{X: float64(p.X), Y: float64(p.Y)}
	}
	return out
}
