package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/ribbon/internal/lineart"
)

const (
	MinDelay            = 10 * time.Millisecond
	DefaultInterval     = 50 * time.Millisecond
	DefaultClosingDelay = 100 * time.Millisecond
)

var errZeroSize = errors.New("zero-sized frame")

type AnimationOptions struct {
	Duration     time.Duration
	Interval     time.Duration
	ClosingDelay time.Duration
}

func (o *AnimationOptions) defaults() error {
	if o.Duration <= 0 {
		return lineart.Wrap("capture animation", lineart.ErrParameterBounds, fmt.Errorf("duration %v", o.Duration))
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.ClosingDelay <= 0 {
		o.ClosingDelay = DefaultClosingDelay
	}
	o.ClosingDelay = max(o.ClosingDelay, MinDelay)
	return nil
}

// BeginAnimation starts sampling the surface every Interval. Each frame is
// recorded with the wall-clock time it stayed current, measured at the next
// tick, so a frame is committed one tick after it was sampled. Sampling
// ends once the cursor plus the closing delay reaches Duration; the last
// sampled frame gets the closing delay.
func (e *Engine) BeginAnimation(ctx context.Context, opts AnimationOptions) (*Session, error) {
	if err := opts.defaults(); err != nil {
		return nil, err
	}
	s, err := e.acquire(KindAnimation, opts.Duration)
	if err != nil {
		return nil, err
	}
	e.logger.Info("animation capture started", "session", s.ID, "duration", opts.Duration, "interval", opts.Interval)
	go e.runAnimation(ctx, s, opts)
	return s, nil
}

func (e *Engine) runAnimation(ctx context.Context, s *Session, opts AnimationOptions) {
	ticker := e.clock.NewTicker(opts.Interval)

	var (
		frames  []*image.RGBA
		delays  []time.Duration
		start   = e.clock.Now()
		pending = e.surface.Snapshot()
		since   = start
		cursor  time.Duration
		stopped bool
	)

	record := func(img *image.RGBA, d time.Duration) {
		d = max(d, MinDelay)
		frames = append(frames, img)
		delays = append(delays, d)
		s.addFrame()
		if e.delayMetric != nil {
			e.delayMetric.Observe(float64(d)/float64(time.Millisecond), since)
		}
	}

loop:
	for {
		select {
		case <-ctx.Done():
			stopped = true
			break loop
		case <-s.stop:
			stopped = true
			break loop
		case now := <-ticker.C():
			if now.Before(since) {
				now = since
			}
			cursor = s.advance(now.Sub(start))

			if snap := e.surface.Snapshot(); snap != nil {
				if pending != nil {
					record(pending, now.Sub(since))
				}
				pending, since = snap, now
			}
			if cursor+opts.ClosingDelay >= opts.Duration {
				break loop
			}
		}
	}
	ticker.Stop()

	if pending != nil {
		record(pending, opts.ClosingDelay)
	}
	if !stopped {
		s.advance(cursor + opts.ClosingDelay)
	}
	s.setState(Encoding)

	if len(frames) == 0 {
		s.finish(nil, lineart.Wrap("capture animation", lineart.ErrEmptyCapture, nil))
		return
	}

	data, err := EncodeGIF(context.WithoutCancel(ctx), frames, delays)
	if err != nil {
		e.logger.Error("animation encoding failed", "session", s.ID, "frames", len(frames), "err", err)
		frames = nil
		s.finish(nil, err)
		return
	}

	var total time.Duration
	for _, d := range delays {
		total += d
	}
	b := frames[0].Bounds()
	a := &Artifact{
		SessionID: s.ID,
		Kind:      KindAnimation,
		MIME:      "image/gif",
		Data:      data,
		Width:     b.Dx(),
		Height:    b.Dy(),
		Frames:    len(frames),
		Delays:    delays,
		Duration:  total,
		Truncated: stopped,
		Created:   e.clock.Now(),
	}
	s.finish(a, nil)
	e.logger.Info("animation captured", "session", s.ID, "frames", a.Frames, "duration", total, "truncated", stopped)
}

var grayPalette = func() color.Palette {
	p := make(color.Palette, 256)
	for i := range p {
		p[i] = color.Gray{Y: uint8(i)}
	}
	return p
}()

// EncodeGIF palettises frames in parallel and encodes them with the given
// delays. Delays are converted to centiseconds against the running total so
// rounding does not accumulate.
func EncodeGIF(ctx context.Context, frames []*image.RGBA, delays []time.Duration) ([]byte, error) {
	if len(frames) == 0 {
		return nil, lineart.Wrap("encode gif", lineart.ErrEmptyCapture, nil)
	}
	if len(frames) != len(delays) {
		return nil, lineart.Wrap("encode gif", lineart.ErrEncoding, fmt.Errorf("%d frames, %d delays", len(frames), len(delays)))
	}
	bounds := frames[0].Bounds()
	if bounds.Empty() {
		return nil, lineart.Wrap("encode gif", lineart.ErrEncoding, errZeroSize)
	}

	paletted := make([]*image.Paletted, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range frames {
		g.Go(func() error {
			if f == nil || f.Bounds() != bounds {
				return fmt.Errorf("frame %d: bounds differ from %v", i, bounds)
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			paletted[i] = toGray(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, lineart.Wrap("encode gif", lineart.ErrEncoding, err)
	}

	anim := &gif.GIF{
		Image: paletted,
		Delay: Centiseconds(delays),
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, lineart.Wrap("encode gif", lineart.ErrEncoding, err)
	}
	return buf.Bytes(), nil
}

func Centiseconds(delays []time.Duration) []int {
	out := make([]int, len(delays))
	var total time.Duration
	emitted := 0
	for i, d := range delays {
		total += d
		cs := int(math.Round(float64(total) / float64(10*time.Millisecond)))
		out[i] = cs - emitted
		emitted = cs
	}
	return out
}

func toGray(src *image.RGBA) *image.Paletted {
	b := src.Bounds()
	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), grayPalette)
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride:]
		out := dst.Pix[y*dst.Stride:]
		for x := 0; x < b.Dx(); x++ {
			r, g, bl := uint32(row[x*4]), uint32(row[x*4+1]), uint32(row[x*4+2])
			out[x] = uint8((19595*r + 38470*g + 7471*bl + 1<<15) >> 16)
		}
	}
	return dst
}
