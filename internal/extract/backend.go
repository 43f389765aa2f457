package extract

import (
	"context"
	"fmt"
	"image"
)

// Backend provides grayscale conversion, blur, edge detection and external
// contour extraction. Returned contours are chain-approximated pixel paths in
// traversal order, relative to img.Bounds().Min.
type Backend interface {
	Name() string
	Init(ctx context.Context) error
	Outlines(img image.Image, threshold1, threshold2 float64) ([][]image.Point, error)
}

// Lookup resolves a backend by name. "auto" prefers OpenCV when the binary was
// built with it.
func Lookup(name string) (Backend, error) {
	switch name {
	case "", "auto":
		return AutoSelectBackend(), nil
	case "native":
		return NewNative(), nil
	case "gocv", "opencv":
		return NewOpenCV(), nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", name)
	}
}

func AutoSelectBackend() Backend {
	if openCVBuilt {
		return NewOpenCV()
	}
	return NewNative()
}
