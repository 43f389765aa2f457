package extract

import (
	"image"
	"sync"
)

// gray is a single-channel 8-bit raster. Instances come from grayPool and
// must be handed back with releaseGray once the call that acquired them
// returns.
type gray struct {
	w, h int
	pix  []uint8
}

var grayPool sync.Pool // stores *gray

func acquireGray(w, h int) *gray {
	needed := w * h
	var g *gray
	if v := grayPool.Get(); v != nil {
		g = v.(*gray)
	}
	if g == nil || cap(g.pix) < needed {
		g = &gray{pix: make([]uint8, needed)}
	}
	g.w, g.h = w, h
	g.pix = g.pix[:needed]
	clear(g.pix)
	return g
}

func releaseGray(g *gray) {
	if g == nil || g.pix == nil {
		return
	}
	grayPool.Put(g)
}

func (g *gray) at(x, y int) uint8 {
	if x < 0 {
		x = 0
	} else if x >= g.w {
		x = g.w - 1
	}
	if y < 0 {
		y = 0
	} else if y >= g.h {
		y = g.h - 1
	}
	return g.pix[y*g.w+x]
}

func (g *gray) set(x, y int, v uint8) { g.pix[y*g.w+x] = v }

// on reports whether (x, y) is a foreground pixel; outside the raster is
// background.
func (g *gray) on(x, y int) bool {
	if x < 0 || y < 0 || x >= g.w || y >= g.h {
		return false
	}
	return g.pix[y*g.w+x] != 0
}

func (g *gray) onPt(p image.Point) bool { return g.on(p.X, p.Y) }

// loadRed copies the red channel of an NRGBA image whose origin is (0, 0).
func (g *gray) loadRed(img *image.NRGBA) {
	for y := 0; y < g.h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < g.w; x++ {
			g.pix[y*g.w+x] = row[x*4]
		}
	}
}
