package extract

import "image"

// neighbours in clockwise screen order starting east.
var neighbours = [8]image.Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

func neighbourIndex(d image.Point) int {
	for i, n := range neighbours {
		if n == d {
			return i
		}
	}
	return -1
}

// externalContours returns the outer border of every 8-connected edge
// component that is not enclosed by another component, as a chain-compressed
// pixel path.
func externalContours(edges *gray) [][]image.Point {
	w, h := edges.w, edges.h
	outside := floodOutside(edges)

	seen := make([]bool, w*h)
	var contours [][]image.Point
	queue := make([]int, 0, 64)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if seen[i] || edges.pix[i] == 0 {
				continue
			}

			external := false
			seen[i] = true
			queue = append(queue[:0], i)
			for len(queue) > 0 {
				j := queue[len(queue)-1]
				queue = queue[:len(queue)-1]
				cx, cy := j%w, j/w
				if !external && touchesOutside(outside, w, h, cx, cy) {
					external = true
				}
				for _, n := range neighbours {
					nx, ny := cx+n.X, cy+n.Y
					if !edges.on(nx, ny) {
						continue
					}
					k := ny*w + nx
					if !seen[k] {
						seen[k] = true
						queue = append(queue, k)
					}
				}
			}

			if external {
				path := traceBorder(edges, image.Pt(x, y))
				contours = append(contours, compressChain(path))
			}
		}
	}
	return contours
}

// floodOutside marks background pixels 4-connected to the image frame.
func floodOutside(edges *gray) []bool {
	w, h := edges.w, edges.h
	outside := make([]bool, w*h)
	stack := make([]int, 0, 2*(w+h))
	push := func(x, y int) {
		if x < 0 || y < 0 || x >= w || y >= h {
			return
		}
		i := y*w + x
		if outside[i] || edges.pix[i] != 0 {
			return
		}
		outside[i] = true
		stack = append(stack, i)
	}
	for x := 0; x < w; x++ {
		push(x, 0)
		push(x, h-1)
	}
	for y := 0; y < h; y++ {
		push(0, y)
		push(w-1, y)
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		push(x+1, y)
		push(x-1, y)
		push(x, y+1)
		push(x, y-1)
	}
	return outside
}

func touchesOutside(outside []bool, w, h, x, y int) bool {
	if x == 0 || y == 0 || x == w-1 || y == h-1 {
		return true
	}
	return outside[y*w+x-1] || outside[y*w+x+1] || outside[(y-1)*w+x] || outside[(y+1)*w+x]
}

// traceBorder follows the outer border of the component containing start,
// which must be its first pixel in raster order.
func traceBorder(edges *gray, start image.Point) []image.Point {
	first := -1
	for k := 0; k < 8; k++ {
		d := (4 + k) % 8
		if edges.onPt(start.Add(neighbours[d])) {
			first = d
			break
		}
	}
	if first < 0 {
		return []image.Point{start}
	}

	p1 := start.Add(neighbours[first])
	prev, cur := p1, start
	path := []image.Point{start}
	for {
		back := neighbourIndex(prev.Sub(cur))
		next := prev
		for k := 1; k <= 8; k++ {
			q := cur.Add(neighbours[(back-k+16)%8])
			if edges.onPt(q) {
				next = q
				break
			}
		}
		if next == start && cur == p1 {
			break
		}
		prev, cur = cur, next
		path = append(path, cur)
	}
	return path
}

// compressChain keeps only the points where a closed path changes direction.
func compressChain(path []image.Point) []image.Point {
	n := len(path)
	if n < 3 {
		return path
	}
	out := make([]image.Point, 0, n/2+1)
	for i, p := range path {
		prev := path[(i-1+n)%n]
		next := path[(i+1)%n]
		if p.Sub(prev) != next.Sub(p) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return path[:1]
	}
	return out
}
