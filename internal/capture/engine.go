package capture

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/san-kum/ribbon/internal/lineart"
	"github.com/san-kum/ribbon/internal/metrics"
)

var ErrBusy = errors.New("capture: session already active")

// Engine owns capture sessions for one surface. It only ever reads the
// surface.
type Engine struct {
	surface     Surface
	clock       Clock
	logger      *slog.Logger
	delayMetric metrics.Metric

	mu     sync.Mutex
	active *Session
}

type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithDelayMetric observes every recorded animation delay in milliseconds.
func WithDelayMetric(m metrics.Metric) Option {
	return func(e *Engine) { e.delayMetric = m }
}

func NewEngine(surface Surface, opts ...Option) *Engine {
	e := &Engine{
		surface: surface,
		clock:   realClock{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State reports the active session's state, or Idle. A finished session
// keeps the engine in Completed or Failed until its result is observed
// through Wait or Result.
func (e *Engine) State() State {
	e.mu.Lock()
	s := e.active
	e.mu.Unlock()
	if s == nil {
		return Idle
	}
	return s.State()
}

func (e *Engine) Active() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Engine) acquire(kind Kind, duration time.Duration) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		return nil, ErrBusy
	}
	s := newSession(e, kind, duration)
	e.active = s
	return s, nil
}

func (e *Engine) release(s *Session) {
	e.mu.Lock()
	if e.active == s {
		e.active = nil
	}
	e.mu.Unlock()
}

// Still encodes the current surface as a PNG.
func (e *Engine) Still() (*Artifact, error) {
	s, err := e.acquire(KindStill, 0)
	if err != nil {
		return nil, err
	}

	img := e.surface.Snapshot()
	if img == nil {
		return nil, s.fail(lineart.Wrap("capture still", lineart.ErrEmptyCapture, nil))
	}
	s.addFrame()
	s.setState(Encoding)

	b := img.Bounds()
	if b.Empty() {
		return nil, s.fail(lineart.Wrap("capture still", lineart.ErrEncoding, errZeroSize))
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, s.fail(lineart.Wrap("capture still", lineart.ErrEncoding, err))
	}

	a := &Artifact{
		SessionID: s.ID,
		Kind:      KindStill,
		MIME:      "image/png",
		Data:      buf.Bytes(),
		Width:     b.Dx(),
		Height:    b.Dy(),
		Frames:    1,
		Created:   e.clock.Now(),
	}
	s.finish(a, nil)
	e.logger.Info("still captured", "session", s.ID, "bytes", len(a.Data))
	return s.observe()
}
