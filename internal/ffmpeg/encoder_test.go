package ffmpeg

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestArgs(t *testing.T) {
	e := NewEncoder(Options{}, nil)
	e.dir = "/spool"
	e.width, e.height, e.fps = 320, 240, 30

	got := e.args("/spool/out.webm")
	for _, want := range [][]string{
		{"-f", "rawvideo"},
		{"-s", "320x240"},
		{"-r", "30"},
		{"-c:v", "libvpx-vp9"},
		{"-crf", "32"},
		{"-f", "webm", "/spool/out.webm"},
	} {
		if !containsRun(got, want) {
			t.Errorf("args %v missing %v", got, want)
		}
	}
	if slices.Contains(got, "-c:a") {
		t.Error("audio codec set without audio")
	}

	e.withAudio = true
	got = e.args("/spool/out.webm")
	for _, want := range [][]string{
		{"-f", "f32le", "-ar", "44100", "-ac", "2"},
		{"-c:a", "libopus"},
	} {
		if !containsRun(got, want) {
			t.Errorf("args %v missing %v", got, want)
		}
	}
}

func TestArgsWithoutCRF(t *testing.T) {
	e := NewEncoder(Options{CRF: -1}, nil)
	e.dir = "/spool"
	e.width, e.height, e.fps = 320, 240, 30

	if got := e.args("/spool/out.webm"); slices.Contains(got, "-crf") {
		t.Errorf("args %v should not set -crf", got)
	}
}

func containsRun(args, run []string) bool {
	for i := 0; i+len(run) <= len(args); i++ {
		if slices.Equal(args[i:i+len(run)], run) {
			return true
		}
	}
	return false
}

func TestSpool(t *testing.T) {
	e := NewEncoder(Options{TempDir: t.TempDir()}, nil)
	if err := e.Begin(4, 3, 30, true); err != nil {
		t.Fatal(err)
	}
	dir := e.dir

	if err := e.EncodeFrame(image.NewRGBA(image.Rect(0, 0, 4, 3)), 0); err != nil {
		t.Fatal(err)
	}
	if err := e.EncodeFrame(image.NewNRGBA(image.Rect(0, 0, 4, 3)), 33*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := e.EncodeFrame(image.NewRGBA(image.Rect(0, 0, 5, 3)), 66*time.Millisecond); err == nil {
		t.Error("expected size mismatch error")
	}
	if err := e.EncodeAudio([]float32{0.1, -0.1, 0.2, -0.2}); err != nil {
		t.Fatal(err)
	}
	if err := e.flush(); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(filepath.Join(dir, "video.raw"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 2*4*3*4 {
		t.Errorf("video spool is %d bytes", info.Size())
	}
	info, err = os.Stat(filepath.Join(dir, "audio.raw"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 16 {
		t.Errorf("audio spool is %d bytes", info.Size())
	}

	if err := e.Abort(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("spool dir survived Abort")
	}
}

func TestSpoolFillsTimestampGaps(t *testing.T) {
	e := NewEncoder(Options{TempDir: t.TempDir()}, nil)
	if err := e.Begin(2, 1, 30, false); err != nil {
		t.Fatal(err)
	}
	defer e.Abort()

	shade := func(v uint8) *image.RGBA {
		img := image.NewRGBA(image.Rect(0, 0, 2, 1))
		for i := range img.Pix {
			img.Pix[i] = v
		}
		return img
	}
	for i, ts := range []time.Duration{0, 500 * time.Millisecond, time.Second} {
		if err := e.EncodeFrame(shade(uint8(10*(i+1))), ts); err != nil {
			t.Fatal(err)
		}
	}
	if e.frames != 31 {
		t.Fatalf("expected 31 frames for 1s at 30fps, got %d", e.frames)
	}
	if err := e.EncodeFrame(shade(99), time.Second+5*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if e.frames != 31 {
		t.Errorf("frame on a written slot should be dropped, have %d", e.frames)
	}

	dir := e.dir
	if err := e.flush(); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "video.raw"))
	if err != nil {
		t.Fatal(err)
	}
	const size = 2 * 1 * 4
	if len(raw) != 31*size {
		t.Fatalf("video spool is %d bytes", len(raw))
	}
	for slot, want := range map[int]byte{0: 10, 14: 10, 15: 20, 29: 20, 30: 30} {
		if got := raw[slot*size]; got != want {
			t.Errorf("slot %d holds %d, expected %d", slot, got, want)
		}
	}
}

func TestBeginValidation(t *testing.T) {
	e := NewEncoder(Options{TempDir: t.TempDir()}, nil)
	if err := e.Begin(0, 10, 30, false); err == nil {
		t.Error("expected error for zero width")
	}
	if err := e.EncodeFrame(image.NewRGBA(image.Rect(0, 0, 1, 1)), 0); err == nil {
		t.Error("expected error before Begin")
	}
	if _, err := e.End(context.Background()); err == nil {
		t.Error("expected error ending an unstarted encoder")
	}
}

func TestMissingBinary(t *testing.T) {
	e := NewEncoder(Options{Binary: "ribbon-no-such-ffmpeg", TempDir: t.TempDir()}, nil)
	if err := e.Begin(2, 2, 10, false); err != nil {
		t.Fatal(err)
	}
	dir := e.dir
	if err := e.EncodeFrame(image.NewRGBA(image.Rect(0, 0, 2, 2)), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := e.End(context.Background()); err == nil {
		t.Error("expected error from missing binary")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("spool dir survived End")
	}
}

func TestMIME(t *testing.T) {
	tests := map[string]string{"webm": "video/webm", "mp4": "video/mp4", "matroska": "video/x-matroska"}
	for format, want := range tests {
		if got := NewEncoder(Options{Format: format}, nil).MIME(); got != want {
			t.Errorf("%s: got %s, expected %s", format, got, want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	bin, err := Available("")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}

	e := NewEncoder(Options{Binary: bin, TempDir: t.TempDir()}, nil)
	if err := e.Begin(64, 48, 10, true); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 64, 48))
		for x := 0; x < 64; x++ {
			img.Set(x, i*4, color.White)
		}
		if err := e.EncodeFrame(img, time.Duration(i)*100*time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.EncodeAudio(make([]float32, 44100*2)); err != nil {
		t.Fatal(err)
	}
	data, err := e.End(context.Background())
	if err != nil {
		t.Skipf("ffmpeg could not encode webm here: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0x1a, 0x45, 0xdf, 0xa3}) {
		t.Fatalf("output is not an EBML container: % x", data[:min(8, len(data))])
	}

	path := filepath.Join(t.TempDir(), "clip.webm")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	dec, err := Decode(context.Background(), bin, path, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(dec.Frames) < 5 {
		t.Errorf("decoded %d frames", len(dec.Frames))
	}
	if b := dec.Frames[0].Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("decoded frame bounds %v", b)
	}
}
