//go:build gocv

package extract

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

const openCVBuilt = true

// OpenCV runs the raster stages through gocv.
type OpenCV struct{}

func NewOpenCV() *OpenCV { return &OpenCV{} }

func (o *OpenCV) Name() string { return "gocv (opencv " + gocv.OpenCVVersion() + ")" }

func (o *OpenCV) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Allocating a Mat forces the shared library to load.
	probe := gocv.NewMatWithSize(1, 1, gocv.MatTypeCV8U)
	defer probe.Close()
	if probe.Empty() {
		return fmt.Errorf("opencv %s: cannot allocate", gocv.OpenCVVersion())
	}
	return nil
}

func (o *OpenCV) Outlines(img image.Image, threshold1, threshold2 float64) ([][]image.Point, error) {
	src, err := gocv.ImageToMatRGBA(img)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer src.Close()
	if src.Empty() {
		return nil, fmt.Errorf("empty frame %v", img.Bounds())
	}

	grayMat := gocv.NewMat()
	defer grayMat.Close()
	gocv.CvtColor(src, &grayMat, gocv.ColorRGBAToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(grayMat, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, float32(threshold1), float32(threshold2))

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	out := make([][]image.Point, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		out = append(out, contours.At(i).ToPoints())
	}
	return out, nil
}
