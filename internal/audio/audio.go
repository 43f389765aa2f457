// Package audio routes a media soundtrack to the recording tap and the
// monitor output, optionally through a fixed two-stage filter chain.
package audio

import (
	"errors"
	"sync"
)

const (
	SampleRate = 44100
	Channels   = 2
	BufferSize = 1024
)

var (
	errNoSource   = errors.New("no audio source")
	errNilSource  = errors.New("nil audio source")
	errOddSamples = errors.New("sample count is not a multiple of the channel count")
)

// Source yields interleaved stereo float32 samples at SampleRate. Read
// returns io.EOF once the soundtrack is exhausted. ID identifies the
// underlying media element; attaching the same ID twice is a no-op.
type Source interface {
	ID() string
	Read(buf []float32) (int, error)
}

// Seeker is a Source that can jump to a stereo frame.
type Seeker interface {
	Seek(frame int)
}

// Sink consumes interleaved stereo samples.
type Sink interface {
	Write(samples []float32) error
}

type discard struct{}

func (discard) Write([]float32) error { return nil }

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type tee []Sink

func (t tee) Write(samples []float32) error {
	var errs []error
	for _, s := range t {
		if err := s.Write(samples); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Tee fans samples out to every sink.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

// Tap is the recording destination. It buffers samples only while armed.
type Tap struct {
	mu    sync.Mutex
	armed bool
	buf   []float32
}

func (t *Tap) Arm() {
	t.mu.Lock()
	t.armed = true
	t.buf = t.buf[:0]
	t.mu.Unlock()
}

// Disarm stops buffering and returns whatever was not drained.
func (t *Tap) Disarm() []float32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armed = false
	out := t.buf
	t.buf = nil
	return out
}

func (t *Tap) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

func (t *Tap) Write(samples []float32) error {
	t.mu.Lock()
	if t.armed {
		t.buf = append(t.buf, samples...)
	}
	t.mu.Unlock()
	return nil
}

// Drain returns and clears the buffered samples.
func (t *Tap) Drain() []float32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.buf
	t.buf = nil
	return out
}
