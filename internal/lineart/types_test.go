package lineart

import (
	"errors"
	"io"
	"math"
	"testing"
)

func TestSetDrawable(t *testing.T) {
	set := Set{
		{},
		{{X: 1, Y: 1}},
		{{X: 0, Y: 0}, {X: 1, Y: 0}},
		{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}},
	}

	got := set.Drawable()
	if len(got) != 2 {
		t.Fatalf("expected 2 drawable polylines, got %d", len(got))
	}
	if again := got.Drawable(); len(again) != len(got) {
		t.Errorf("filtering is not idempotent: %d then %d", len(got), len(again))
	}
	if got.PointCount() != 5 {
		t.Errorf("expected 5 points, got %d", got.PointCount())
	}
}

func TestPerimeter(t *testing.T) {
	square := Polyline{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	if p := square.Perimeter(); math.Abs(p-40) > 1e-9 {
		t.Errorf("expected perimeter 40, got %f", p)
	}
	if p := (Polyline{{3, 3}}).Perimeter(); p != 0 {
		t.Errorf("expected 0 for single point, got %f", p)
	}
}

func TestExtractionParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  ExtractionParams
		wantErr bool
	}{
		{"defaults", DefaultExtractionParams(), false},
		{"inverted thresholds allowed", ExtractionParams{200, 100, 0.01}, false},
		{"threshold above range", ExtractionParams{100, 300, 0.01}, true},
		{"negative threshold", ExtractionParams{-1, 100, 0.01}, true},
		{"epsilon too small", ExtractionParams{100, 200, 0.0001}, true},
		{"epsilon too large", ExtractionParams{100, 200, 0.5}, true},
		{"nan epsilon", ExtractionParams{100, 200, math.NaN()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("wantErr=%v, got %v", tt.wantErr, err)
			}
			if err != nil && !errors.Is(err, ErrParameterBounds) {
				t.Errorf("expected ErrParameterBounds, got %v", err)
			}
		})
	}
}

func TestRenderParamsValidate(t *testing.T) {
	if err := DefaultRenderParams().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if err := (RenderParams{JitterAmount: 2, JitterSpeed: 0}).Validate(); err == nil {
		t.Error("expected error for zero jitter speed")
	}
	if err := (RenderParams{JitterAmount: 25, JitterSpeed: 30}).Validate(); err == nil {
		t.Error("expected error for jitter amount above 20")
	}
}

func TestOpErrorMatchesKindAndCause(t *testing.T) {
	err := Wrap("extract", ErrExtraction, io.ErrUnexpectedEOF)
	if !errors.Is(err, ErrExtraction) {
		t.Error("expected kind to match")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("expected cause to match")
	}
	if errors.Is(err, ErrEncoding) {
		t.Error("unexpected match on unrelated kind")
	}
	if Wrap("still", ErrEmptyCapture, nil).Error() != "still: "+ErrEmptyCapture.Error() {
		t.Error("unexpected message for nil cause")
	}
}
