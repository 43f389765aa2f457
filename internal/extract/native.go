package extract

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// gaussian5x5 is the separable binomial kernel OpenCV uses for a 5x5
// Gaussian when sigma is derived from the kernel size.
var gaussian5x5 = func() [25]float64 {
	row := [5]float64{1, 4, 6, 4, 1}
	var k [25]float64
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			k[y*5+x] = row[y] * row[x] / 256
		}
	}
	return k
}()

// Native is the pure Go backend.
type Native struct{}

func NewNative() *Native { return &Native{} }

func (n *Native) Name() string { return "native" }

func (n *Native) Init(ctx context.Context) error { return ctx.Err() }

func (n *Native) Outlines(img image.Image, threshold1, threshold2 float64) ([][]image.Point, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("empty frame %v", b)
	}

	luma := imaging.Grayscale(img)
	blurred := imaging.Convolve5x5(luma, gaussian5x5, nil)

	src := acquireGray(b.Dx(), b.Dy())
	defer releaseGray(src)
	src.loadRed(blurred)

	edges := acquireGray(b.Dx(), b.Dy())
	defer releaseGray(edges)
	canny(src, edges, threshold1, threshold2)

	return externalContours(edges), nil
}
