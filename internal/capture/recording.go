package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"time"

	"github.com/san-kum/ribbon/internal/audio"
	"github.com/san-kum/ribbon/internal/lineart"
)

const (
	DefaultStreamFPS        = 30.0
	DefaultFallbackDuration = 5 * time.Second
	DefaultProgressInterval = 100 * time.Millisecond
)

// StreamEncoder assembles an audio/video container from frames sampled at a
// fixed rate and interleaved stereo audio at audio.SampleRate.
type StreamEncoder interface {
	Begin(width, height int, fps float64, withAudio bool) error
	EncodeFrame(img image.Image, ts time.Duration) error
	EncodeAudio(samples []float32) error
	End(ctx context.Context) ([]byte, error)
	Abort() error
	MIME() string
}

// Playback is the media element driving a recording.
type Playback interface {
	Play()
	Pause()
	Rewind()
	Playing() bool
	Position() time.Duration
	Duration() time.Duration
	AudioSource() audio.Source
}

type RecordOptions struct {
	Encoder  StreamEncoder
	Playback Playback
	// Router mixes the playback soundtrack into the recording when set.
	Router *audio.Router
	Effect bool

	FPS              float64
	FallbackDuration time.Duration
	ProgressInterval time.Duration
	OnProgress       func(float64)
}

func (o *RecordOptions) defaults() error {
	if o.Encoder == nil {
		return lineart.Wrap("capture record", lineart.ErrEncoding, errors.New("no encoder"))
	}
	if o.FPS <= 0 {
		o.FPS = DefaultStreamFPS
	}
	if o.FallbackDuration <= 0 {
		o.FallbackDuration = DefaultFallbackDuration
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = DefaultProgressInterval
	}
	return nil
}

// BeginRecording starts playback if needed and streams the surface, plus
// the routed soundtrack, into the encoder for the media's full duration or
// FallbackDuration when it has none. The soundtrack is aligned to the
// playback position before sampling starts. Playback is paused and rewound
// when the session ends, however it ends.
func (e *Engine) BeginRecording(ctx context.Context, opts RecordOptions) (*Session, error) {
	if err := opts.defaults(); err != nil {
		return nil, err
	}
	duration := opts.FallbackDuration
	if opts.Playback != nil && opts.Playback.Duration() > 0 {
		duration = opts.Playback.Duration()
	}

	s, err := e.acquire(KindRecording, duration)
	if err != nil {
		return nil, err
	}

	if opts.Playback != nil && !opts.Playback.Playing() {
		opts.Playback.Play()
	}

	var src audio.Source
	if opts.Router != nil && opts.Playback != nil {
		src = opts.Playback.AudioSource()
	}
	if src != nil {
		if sk, ok := src.(audio.Seeker); ok {
			sk.Seek(int(math.Round(opts.Playback.Position().Seconds() * audio.SampleRate)))
		}
		if err := opts.Router.Attach(src); err != nil {
			return nil, s.fail(err)
		}
		if err := opts.Router.SetEffect(opts.Effect); err != nil {
			return nil, s.fail(err)
		}
		opts.Router.Tap().Arm()
	}

	e.logger.Info("recording started", "session", s.ID, "duration", duration, "fps", opts.FPS, "audio", src != nil)
	go e.runRecording(ctx, s, opts, src != nil)
	return s, nil
}

type recorder struct {
	enc       StreamEncoder
	router    *audio.Router
	withAudio bool
	fps       float64
	began     bool
	width     int
	height    int
	pumped    int
	eof       bool
}

func (r *recorder) frame(img *image.RGBA, ts time.Duration) error {
	if !r.began {
		b := img.Bounds()
		if b.Empty() {
			return errZeroSize
		}
		if err := r.enc.Begin(b.Dx(), b.Dy(), r.fps, r.withAudio); err != nil {
			return err
		}
		r.began = true
		r.width, r.height = b.Dx(), b.Dy()
	}
	return r.enc.EncodeFrame(img, ts)
}

// audioUntil pumps the soundtrack up to the given media time.
func (r *recorder) audioUntil(ts time.Duration) error {
	if !r.withAudio || !r.began {
		return nil
	}
	due := int(math.Round(ts.Seconds()*audio.SampleRate)) * audio.Channels
	if n := due - r.pumped; n > 0 && !r.eof {
		read, err := r.router.Pump(n)
		r.pumped += read
		switch {
		case errors.Is(err, io.EOF):
			r.eof = true
		case err != nil:
			return err
		}
		if read < n {
			r.eof = true
		}
	}
	if samples := r.router.Tap().Drain(); len(samples) > 0 {
		return r.enc.EncodeAudio(samples)
	}
	return nil
}

func (e *Engine) runRecording(ctx context.Context, s *Session, opts RecordOptions, withAudio bool) {
	frameTicker := e.clock.NewTicker(time.Duration(float64(time.Second) / opts.FPS))
	progressTicker := e.clock.NewTicker(opts.ProgressInterval)
	start := e.clock.Now()

	rec := &recorder{enc: opts.Encoder, router: opts.Router, withAudio: withAudio, fps: opts.FPS}
	report := func() {
		if opts.OnProgress != nil {
			opts.OnProgress(s.Progress())
		}
	}

	var (
		stopped bool
		failure error
	)

loop:
	for {
		select {
		case <-ctx.Done():
			stopped = true
			break loop
		case <-s.stop:
			stopped = true
			break loop
		case now := <-progressTicker.C():
			if s.advance(now.Sub(start)) >= s.Duration {
				break loop
			}
			report()
		case now := <-frameTicker.C():
			elapsed := s.advance(now.Sub(start))
			if img := e.surface.Snapshot(); img != nil {
				if err := rec.frame(img, elapsed); err != nil {
					failure = lineart.Wrap("capture record", lineart.ErrEncoding, err)
					break loop
				}
				s.addFrame()
			}
			if err := rec.audioUntil(elapsed); err != nil {
				failure = lineart.Wrap("capture record", lineart.ErrEncoding, err)
				break loop
			}
			if elapsed >= s.Duration {
				break loop
			}
		}
	}
	frameTicker.Stop()
	progressTicker.Stop()

	if withAudio {
		opts.Router.Tap().Disarm()
	}
	if opts.Playback != nil {
		opts.Playback.Pause()
		opts.Playback.Rewind()
	}
	report()

	if failure == nil && s.Frames() == 0 {
		failure = lineart.Wrap("capture record", lineart.ErrEmptyCapture, nil)
	}
	if failure != nil {
		if rec.began {
			if err := opts.Encoder.Abort(); err != nil {
				e.logger.Warn("encoder abort failed", "session", s.ID, "err", err)
			}
		}
		e.logger.Error("recording failed", "session", s.ID, "err", failure)
		s.finish(nil, failure)
		return
	}

	s.setState(Encoding)
	data, err := opts.Encoder.End(context.WithoutCancel(ctx))
	if err != nil {
		err = lineart.Wrap("capture record", lineart.ErrEncoding, fmt.Errorf("finalise: %w", err))
		s.finish(nil, err)
		return
	}

	a := &Artifact{
		SessionID: s.ID,
		Kind:      KindRecording,
		MIME:      opts.Encoder.MIME(),
		Data:      data,
		Width:     rec.width,
		Height:    rec.height,
		Frames:    s.Frames(),
		Duration:  s.Elapsed(),
		Truncated: stopped,
		Created:   e.clock.Now(),
	}
	s.finish(a, nil)
	e.logger.Info("recording finished", "session", s.ID, "frames", a.Frames, "bytes", len(a.Data), "truncated", stopped)
}
