package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/san-kum/ribbon/internal/lineart"
)

var errEmptyFrame = errors.New("frame has no pixels")

// Extractor is the shared line-art service. It is safe for concurrent use
// once ready; each call works on its own buffers.
type Extractor struct {
	backend Backend
	logger  *slog.Logger

	ready atomic.Bool
	done  chan struct{}
	err   error
}

type Option func(*Extractor)

func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// Open starts backend initialisation in the background and returns
// immediately.
func Open(ctx context.Context, backend Backend, opts ...Option) *Extractor {
	e := &Extractor{
		backend: backend,
		logger:  slog.Default(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	go e.init(ctx)
	return e
}

func (e *Extractor) init(ctx context.Context) {
	defer close(e.done)
	start := time.Now()
	if err := e.backend.Init(ctx); err != nil {
		e.err = lineart.Wrap("extract init", lineart.ErrNotReady, err)
		e.logger.Error("extractor init failed", "backend", e.backend.Name(), "err", err)
		return
	}
	e.ready.Store(true)
	e.logger.Info("extractor ready", "backend", e.backend.Name(), "took", time.Since(start))
}

func (e *Extractor) Ready() bool { return e.ready.Load() }

func (e *Extractor) Backend() string { return e.backend.Name() }

// WaitReady blocks until initialisation finishes and returns its error.
func (e *Extractor) WaitReady(ctx context.Context) error {
	select {
	case <-e.done:
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Extract converts one frame into a set of closed, drawable polylines in the
// frame's pixel space, so a frame whose bounds do not start at the origin
// keeps its own coordinates. It never touches renderer or capture state.
func (e *Extractor) Extract(ctx context.Context, frame image.Image, params lineart.ExtractionParams) (lineart.Set, error) {
	if !e.ready.Load() {
		return nil, lineart.Wrap("extract", lineart.ErrNotReady, nil)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	if frame == nil || frame.Bounds().Empty() {
		return nil, lineart.Wrap("extract", lineart.ErrExtraction, errEmptyFrame)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outlines, err := e.backend.Outlines(frame, params.Threshold1, params.Threshold2)
	if err != nil {
		return nil, lineart.Wrap("extract", lineart.ErrExtraction, err)
	}

	origin := frame.Bounds().Min
	set := make(lineart.Set, 0, len(outlines))
	for _, c := range outlines {
		line := Simplify(toPolyline(c, origin), params.EpsilonFactor)
		if line.Drawable() {
			set = append(set, line)
		}
	}
	return set, nil
}
