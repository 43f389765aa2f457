package media

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/san-kum/ribbon/internal/audio"
	"github.com/san-kum/ribbon/internal/ffmpeg"
	"github.com/san-kum/ribbon/internal/lineart"
)

type LoadOptions struct {
	// FFmpeg is the binary used for video files.
	FFmpeg string
	// FPS is the sampling rate for video files.
	FPS float64
	// MaxFrames caps decoded video frames; zero means no cap.
	MaxFrames int
	// Audio is an optional WAV soundtrack that overrides the file's own.
	Audio string
	Loop  bool
}

var videoExts = map[string]bool{
	".mp4": true, ".webm": true, ".mov": true, ".mkv": true, ".avi": true, ".m4v": true,
}

// Load decodes path into a clip according to its extension.
func Load(ctx context.Context, path string, opts LoadOptions) (*Clip, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var (
		clip *Clip
		err  error
	)
	switch {
	case ext == ".gif":
		clip, err = loadGIF(path)
	case videoExts[ext]:
		clip, err = loadVideo(ctx, path, opts)
	default:
		clip, err = loadStill(path)
	}
	if err != nil {
		return nil, lineart.Wrap("load "+filepath.Base(path), lineart.ErrExtraction, err)
	}

	if opts.Audio != "" {
		samples, err := audio.LoadWAV(opts.Audio)
		if err != nil {
			return nil, lineart.Wrap("load "+filepath.Base(opts.Audio), lineart.ErrRouting, err)
		}
		clip.Audio = samples
	}
	clip.ID = uuid.NewString()
	clip.Source = path
	clip.Loop = opts.Loop
	return clip, nil
}

func loadStill(path string) (*Clip, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	return &Clip{Frames: []Frame{{Image: img}}}, nil
}

// loadGIF composes every frame onto a full canvas, honouring disposal.
func loadGIF(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g, err := gif.DecodeAll(f)
	if err != nil {
		return nil, err
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("gif has no frames")
	}
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		bounds = g.Image[0].Bounds()
	}

	canvas := image.NewRGBA(bounds)
	frames := make([]Frame, 0, len(g.Image))
	for i, src := range g.Image {
		var restore *image.RGBA
		disposal := byte(0)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			restore = image.NewRGBA(bounds)
			copy(restore.Pix, canvas.Pix)
		}

		draw.Draw(canvas, src.Bounds(), src, src.Bounds().Min, draw.Over)
		frame := image.NewRGBA(bounds)
		copy(frame.Pix, canvas.Pix)

		delay := DefaultGIFDelay
		if i < len(g.Delay) && g.Delay[i] > 0 {
			delay = time.Duration(g.Delay[i]) * 10 * time.Millisecond
		}
		frames = append(frames, Frame{Image: frame, Delay: delay})

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, src.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			copy(canvas.Pix, restore.Pix)
		}
	}

	if len(frames) == 1 {
		frames[0].Delay = 0
	}
	return &Clip{Frames: frames}, nil
}

func loadVideo(ctx context.Context, path string, opts LoadOptions) (*Clip, error) {
	fps := opts.FPS
	if fps <= 0 {
		fps = 30
	}
	dec, err := ffmpeg.Decode(ctx, opts.FFmpeg, path, fps, opts.MaxFrames)
	if err != nil {
		return nil, err
	}
	delay := time.Duration(float64(time.Second) / dec.FPS)
	frames := make([]Frame, len(dec.Frames))
	for i, img := range dec.Frames {
		frames[i] = Frame{Image: img, Delay: delay}
	}
	return &Clip{Frames: frames, Audio: dec.Audio}, nil
}
