//go:build !gocv

package extract

import (
	"context"
	"errors"
	"image"

	"github.com/san-kum/ribbon/internal/lineart"
)

const openCVBuilt = false

var errNoOpenCV = errors.New("built without the gocv tag")

type OpenCV struct{}

func NewOpenCV() *OpenCV { return &OpenCV{} }

func (o *OpenCV) Name() string { return "gocv (not available)" }

func (o *OpenCV) Init(ctx context.Context) error {
	return lineart.Wrap("opencv init", lineart.ErrNotReady, errNoOpenCV)
}

func (o *OpenCV) Outlines(img image.Image, threshold1, threshold2 float64) ([][]image.Point, error) {
	return nil, lineart.Wrap("opencv outlines", lineart.ErrNotReady, errNoOpenCV)
}
