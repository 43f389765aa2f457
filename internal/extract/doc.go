// Package extract turns raster frames into closed polylines.
//
// The pipeline is fixed: grayscale, a 5x5 Gaussian blur, two-threshold Canny
// edge detection, external contour following with simple chain
// approximation, and Douglas-Peucker simplification with a tolerance
// proportional to each contour's perimeter.
//
// Stages one to four are provided by a Backend:
//
//   - native: pure Go, always available
//   - gocv: OpenCV through gocv, built with the gocv tag
//
// An Extractor is opened once and shared by every consumer. Backend
// initialisation runs in the background; Extract fails with
// lineart.ErrNotReady until it has finished:
//
//	ex := extract.Open(ctx, extract.NewNative())
//	if err := ex.WaitReady(ctx); err != nil {
//		return err
//	}
//	set, err := ex.Extract(ctx, frame, params)
package extract
