package extract

import "math"

const (
	tan22 = 0.4142135623730951
	tan67 = 2.414213562373095
)

const (
	edgeNone uint8 = iota
	edgeWeak
	edgeStrong
)

// canny writes a binary edge map (0 or 255) of src into dst using a 3x3
// Sobel operator, L1 gradient magnitude, non-maximum suppression and
// hysteresis between the two thresholds. The thresholds are swapped when
// given in descending order.
func canny(src, dst *gray, threshold1, threshold2 float64) {
	w, h := src.w, src.h
	low, high := math.Floor(threshold1), math.Floor(threshold2)
	if low > high {
		low, high = high, low
	}

	gx := make([]int32, w*h)
	gy := make([]int32, w*h)
	mag := make([]int32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := func(dx, dy int) int32 { return int32(src.at(x+dx, y+dy)) }
			sx := p(1, -1) + 2*p(1, 0) + p(1, 1) - p(-1, -1) - 2*p(-1, 0) - p(-1, 1)
			sy := p(-1, 1) + 2*p(0, 1) + p(1, 1) - p(-1, -1) - 2*p(0, -1) - p(1, -1)
			i := y*w + x
			gx[i], gy[i] = sx, sy
			mag[i] = abs32(sx) + abs32(sy)
		}
	}

	magAt := func(x, y int) int32 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	class := make([]uint8, w*h)
	stack := make([]int, 0, 64)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := mag[i]
			if float64(m) <= low {
				continue
			}
			ax, ay := float64(abs32(gx[i])), float64(abs32(gy[i]))

			// prev is the neighbour earlier in scan order and must be
			// strictly smaller; next may tie.
			var prev, next int32
			switch {
			case ay < ax*tan22:
				prev, next = magAt(x-1, y), magAt(x+1, y)
			case ay > ax*tan67:
				prev, next = magAt(x, y-1), magAt(x, y+1)
			case (gx[i] < 0) != (gy[i] < 0):
				prev, next = magAt(x+1, y-1), magAt(x-1, y+1)
			default:
				prev, next = magAt(x-1, y-1), magAt(x+1, y+1)
			}
			if m <= prev || m < next {
				continue
			}

			if float64(m) > high {
				class[i] = edgeStrong
				stack = append(stack, i)
			} else {
				class[i] = edgeWeak
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if class[j] == edgeWeak {
					class[j] = edgeStrong
					stack = append(stack, j)
				}
			}
		}
	}

	for i, c := range class {
		if c == edgeStrong {
			dst.pix[i] = 255
		} else {
			dst.pix[i] = 0
		}
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
