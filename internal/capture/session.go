package capture

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
)

type State int

const (
	Idle State = iota
	Capturing
	Encoding
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Capturing:
		return "capturing"
	case Encoding:
		return "encoding"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

type Kind string

const (
	KindStill     Kind = "still"
	KindAnimation Kind = "animation"
	KindRecording Kind = "recording"
)

// Surface is the read side of the renderer. Snapshot returns nil until the
// first frame exists.
type Surface interface {
	Snapshot() *image.RGBA
}

// Artifact is the output of a finished session.
type Artifact struct {
	SessionID string
	Kind      Kind
	MIME      string
	Data      []byte
	Width     int
	Height    int
	Frames    int
	Delays    []time.Duration
	Duration  time.Duration
	Truncated bool
	Created   time.Time
}

// Ext returns the conventional file extension for the artifact.
func (a *Artifact) Ext() string {
	switch a.MIME {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "video/webm":
		return ".webm"
	case "video/mp4":
		return ".mp4"
	default:
		return ".bin"
	}
}

// Session is one capture in progress or finished.
type Session struct {
	ID       string
	Kind     Kind
	Duration time.Duration

	engine *Engine
	stop   chan struct{}
	once   sync.Once
	done   chan struct{}

	mu       sync.Mutex
	state    State
	cursor   time.Duration
	frames   int
	artifact *Artifact
	err      error
}

func newSession(e *Engine, kind Kind, duration time.Duration) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Kind:     kind,
		Duration: duration,
		engine:   e,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		state:    Capturing,
	}
}

// Stop ends sampling early. The session still encodes what it has.
func (s *Session) Stop() {
	s.once.Do(func() { close(s.stop) })
}

func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session finishes and returns its artifact.
func (s *Session) Wait(ctx context.Context) (*Artifact, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.observe()
}

// Result returns the artifact and error of a finished session without
// blocking; both are nil while it is still running.
func (s *Session) Result() (*Artifact, error) {
	if !s.Finished() {
		return nil, nil
	}
	return s.observe()
}

// Finished reports whether the session reached Completed or Failed.
func (s *Session) Finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// observe hands the result to the caller and returns the engine to Idle.
func (s *Session) observe() (*Artifact, error) {
	s.engine.release(s)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artifact, s.err
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Progress is elapsed over duration, clamped to [0, 1].
func (s *Session) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return progress(s.cursor, s.Duration)
}

func progress(elapsed, duration time.Duration) float64 {
	if duration <= 0 {
		return 1
	}
	p := float64(elapsed) / float64(duration)
	return min(max(p, 0), 1)
}

// advance moves the cursor forward; it never goes back.
func (s *Session) advance(elapsed time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if elapsed > s.cursor {
		s.cursor = elapsed
	}
	return s.cursor
}

func (s *Session) addFrame() {
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) finish(a *Artifact, err error) {
	s.mu.Lock()
	s.artifact, s.err = a, err
	if err != nil {
		s.state = Failed
	} else {
		s.state = Completed
	}
	s.mu.Unlock()
	close(s.done)
}

// fail finishes a session whose error goes straight back to the caller.
func (s *Session) fail(err error) error {
	s.finish(nil, err)
	s.engine.release(s)
	return err
}

func (s *Session) stopping() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}
