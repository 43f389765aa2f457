// Package ffmpeg muxes sampled frames and audio into a video container and
// decodes video files into frames, by running the ffmpeg binary.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/ribbon/internal/audio"
)

const DefaultBinary = "ffmpeg"

var errNotStarted = errors.New("ffmpeg: encoder not started")

type Options struct {
	Binary     string `yaml:"binary" json:"binary"`
	VideoCodec string `yaml:"video_codec" json:"video_codec"`
	AudioCodec string `yaml:"audio_codec" json:"audio_codec"`
	Format     string `yaml:"format" json:"format"`
	// CRF of zero takes the default; a negative value omits -crf.
	CRF        int    `yaml:"crf" json:"crf"`
	TempDir    string `yaml:"temp_dir,omitempty" json:"temp_dir,omitempty"`
}

func DefaultOptions() Options {
	return Options{
		Binary:     DefaultBinary,
		VideoCodec: "libvpx-vp9",
		AudioCodec: "libopus",
		Format:     "webm",
		CRF:        32,
	}
}

// Available resolves the ffmpeg binary on PATH.
func Available(bin string) (string, error) {
	if bin == "" {
		bin = DefaultBinary
	}
	return exec.LookPath(bin)
}

// Encoder spools raw RGBA frames and f32le audio to a temporary directory
// and muxes them when End is called.
type Encoder struct {
	opts   Options
	logger *slog.Logger

	dir       string
	video     *os.File
	audio     *os.File
	vw        *bufio.Writer
	aw        *bufio.Writer
	width     int
	height    int
	fps       float64
	withAudio bool
	frames    int
	samples   int
	scratch   *image.RGBA
	last      []byte
}

func NewEncoder(opts Options, logger *slog.Logger) *Encoder {
	def := DefaultOptions()
	if opts.Binary == "" {
		opts.Binary = def.Binary
	}
	if opts.VideoCodec == "" {
		opts.VideoCodec = def.VideoCodec
	}
	if opts.Format == "" {
		opts.Format = def.Format
	}
	if opts.AudioCodec == "" {
		opts.AudioCodec = def.AudioCodec
	}
	if opts.CRF == 0 {
		opts.CRF = def.CRF
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Encoder{opts: opts, logger: logger}
}

func (e *Encoder) MIME() string {
	switch e.opts.Format {
	case "mp4":
		return "video/mp4"
	case "matroska", "mkv":
		return "video/x-matroska"
	default:
		return "video/webm"
	}
}

func (e *Encoder) Begin(width, height int, fps float64, withAudio bool) error {
	if width <= 0 || height <= 0 || fps <= 0 {
		return fmt.Errorf("ffmpeg: invalid stream %dx%d at %v fps", width, height, fps)
	}
	if e.dir != "" {
		return errors.New("ffmpeg: encoder already started")
	}
	dir, err := os.MkdirTemp(e.opts.TempDir, "ribbon-*")
	if err != nil {
		return fmt.Errorf("ffmpeg: spool dir: %w", err)
	}
	e.dir = dir
	e.width, e.height, e.fps, e.withAudio = width, height, fps, withAudio
	e.frames, e.samples = 0, 0
	e.last = nil

	if e.video, err = os.Create(filepath.Join(dir, "video.raw")); err != nil {
		e.cleanup()
		return fmt.Errorf("ffmpeg: spool video: %w", err)
	}
	e.vw = bufio.NewWriterSize(e.video, width*height*4)
	if withAudio {
		if e.audio, err = os.Create(filepath.Join(dir, "audio.raw")); err != nil {
			e.cleanup()
			return fmt.Errorf("ffmpeg: spool audio: %w", err)
		}
		e.aw = bufio.NewWriter(e.audio)
	}
	return nil
}

func (e *Encoder) EncodeFrame(img image.Image, ts time.Duration) error {
	if e.vw == nil {
		return errNotStarted
	}
	b := img.Bounds()
	if b.Dx() != e.width || b.Dy() != e.height {
		return fmt.Errorf("ffmpeg: frame %dx%d in a %dx%d stream", b.Dx(), b.Dy(), e.width, e.height)
	}
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*e.width {
		if e.scratch == nil {
			e.scratch = image.NewRGBA(image.Rect(0, 0, e.width, e.height))
		}
		draw.Draw(e.scratch, e.scratch.Bounds(), img, b.Min, draw.Src)
		rgba = e.scratch
	}
	// The stream has a fixed rate, so ts picks the frame slot. Slots skipped
	// since the previous call repeat the previous frame; a frame landing on
	// an already written slot is dropped.
	slot := int(math.Round(ts.Seconds() * e.fps))
	if slot < e.frames {
		return nil
	}
	pix := rgba.Pix[:e.width*e.height*4]
	fill := e.last
	if fill == nil {
		fill = pix
	}
	for e.frames < slot {
		if err := e.spool(fill); err != nil {
			return err
		}
	}
	if err := e.spool(pix); err != nil {
		return err
	}
	e.last = append(e.last[:0], pix...)
	return nil
}

func (e *Encoder) spool(pix []byte) error {
	if _, err := e.vw.Write(pix); err != nil {
		return fmt.Errorf("ffmpeg: spool frame %d: %w", e.frames, err)
	}
	e.frames++
	return nil
}

func (e *Encoder) EncodeAudio(samples []float32) error {
	if e.aw == nil {
		if e.vw == nil {
			return errNotStarted
		}
		return nil
	}
	if err := binary.Write(e.aw, binary.LittleEndian, samples); err != nil {
		return fmt.Errorf("ffmpeg: spool audio: %w", err)
	}
	e.samples += len(samples)
	return nil
}

// End runs ffmpeg over the spooled streams and returns the container bytes.
// The spool directory is removed either way.
func (e *Encoder) End(ctx context.Context) ([]byte, error) {
	if e.vw == nil {
		return nil, errNotStarted
	}
	defer e.cleanup()
	if err := e.flush(); err != nil {
		return nil, err
	}
	if e.frames == 0 {
		return nil, errors.New("ffmpeg: no frames")
	}

	out := filepath.Join(e.dir, "out."+e.ext())
	args := e.args(out)
	cmd := exec.CommandContext(ctx, e.opts.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, tail(stderr.String(), 512))
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: read output: %w", err)
	}
	e.logger.Info("ffmpeg muxed",
		"frames", e.frames,
		"audio_samples", e.samples,
		"bytes", len(data),
		"took", time.Since(start),
	)
	return data, nil
}

func (e *Encoder) Abort() error {
	if e.dir == "" {
		return nil
	}
	e.cleanup()
	return nil
}

func (e *Encoder) ext() string {
	switch e.opts.Format {
	case "matroska":
		return "mkv"
	default:
		return e.opts.Format
	}
}

func (e *Encoder) args(out string) []string {
	fps := strconv.FormatFloat(e.fps, 'f', -1, 64)
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", e.width, e.height),
		"-r", fps,
		"-i", filepath.Join(e.dir, "video.raw"),
	}
	if e.withAudio {
		args = append(args,
			"-f", "f32le",
			"-ar", strconv.Itoa(audio.SampleRate),
			"-ac", strconv.Itoa(audio.Channels),
			"-i", filepath.Join(e.dir, "audio.raw"),
		)
	}
	args = append(args, "-c:v", e.opts.VideoCodec, "-pix_fmt", "yuv420p")
	if e.opts.VideoCodec == "libvpx-vp9" {
		args = append(args, "-b:v", "0")
	}
	if e.opts.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(e.opts.CRF))
	}
	if e.withAudio {
		args = append(args, "-c:a", e.opts.AudioCodec)
	}
	return append(args, "-f", e.opts.Format, out)
}

func (e *Encoder) flush() error {
	var errs []error
	if e.vw != nil {
		errs = append(errs, e.vw.Flush(), e.video.Close())
	}
	if e.aw != nil {
		errs = append(errs, e.aw.Flush(), e.audio.Close())
	}
	e.vw, e.aw = nil, nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("ffmpeg: flush spool: %w", err)
	}
	return nil
}

func (e *Encoder) cleanup() {
	if e.video != nil {
		e.video.Close()
	}
	if e.audio != nil {
		e.audio.Close()
	}
	if e.dir != "" {
		if err := os.RemoveAll(e.dir); err != nil {
			e.logger.Warn("ffmpeg spool cleanup failed", "dir", e.dir, "err", err)
		}
	}
	e.video, e.audio, e.vw, e.aw = nil, nil, nil, nil
	e.dir = ""
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
