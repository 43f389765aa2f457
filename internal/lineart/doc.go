// Package lineart holds the data model shared by the extraction, rendering
// and capture stages: points, polylines, polyline sets and their parameters.
//
// A Set is produced wholesale by one extraction call and is never mutated
// after it has been handed to a renderer:
//
//	set, err := extractor.Extract(ctx, frame, lineart.DefaultExtractionParams())
//	renderer.SetPolylines(set)
package lineart
