package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"

	"github.com/disintegration/imaging"

	"github.com/san-kum/ribbon/internal/audio"
)

// Decoded is a video file sampled at a fixed frame rate.
type Decoded struct {
	Frames []image.Image
	FPS    float64
	Audio  []float32
}

// Decode samples the video at fps and extracts its soundtrack as
// interleaved stereo at audio.SampleRate. A file without an audio stream
// yields nil Audio. maxFrames of zero means no limit.
func Decode(ctx context.Context, bin, path string, fps float64, maxFrames int) (*Decoded, error) {
	if bin == "" {
		bin = DefaultBinary
	}
	if fps <= 0 {
		return nil, fmt.Errorf("ffmpeg: invalid sampling rate %v", fps)
	}
	frames, err := decodeFrames(ctx, bin, path, fps, maxFrames)
	if err != nil {
		return nil, err
	}
	samples, err := DecodeAudio(ctx, bin, path)
	if err != nil {
		samples = nil
	}
	return &Decoded{Frames: frames, FPS: fps, Audio: samples}, nil
}

func decodeFrames(ctx context.Context, bin, path string, fps float64, maxFrames int) ([]image.Image, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-vf", "fps=" + strconv.FormatFloat(fps, 'f', -1, 64),
	}
	if maxFrames > 0 {
		args = append(args, "-frames:v", strconv.Itoa(maxFrames))
	}
	args = append(args, "-f", "image2pipe", "-vcodec", "png", "-")

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg: start decoder: %w", err)
	}

	var frames []image.Image
	br := bufio.NewReaderSize(stdout, 1<<16)
	for {
		if _, err := br.Peek(1); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			cmd.Wait()
			return nil, fmt.Errorf("ffmpeg: read frames: %w", err)
		}
		img, err := imaging.Decode(br)
		if err != nil {
			cmd.Wait()
			return nil, fmt.Errorf("ffmpeg: decode frame %d: %w", len(frames), err)
		}
		frames = append(frames, img)
	}
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, tail(stderr.String(), 512))
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("ffmpeg: %s has no video frames", path)
	}
	return frames, nil
}

// DecodeAudio extracts the soundtrack of a media file.
func DecodeAudio(ctx context.Context, bin, path string) ([]float32, error) {
	if bin == "" {
		bin = DefaultBinary
	}
	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-vn",
		"-f", "f32le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	raw, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, tail(stderr.String(), 512))
	}
	samples := make([]float32, len(raw)/4)
	if err := binary.Read(bytes.NewReader(raw[:len(samples)*4]), binary.LittleEndian, samples); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}
	return samples, nil
}
