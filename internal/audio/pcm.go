package audio

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mjibson/go-dsp/wav"
)

// PCM is a Source over an in-memory interleaved stereo soundtrack.
type PCM struct {
	id      string
	mu      sync.Mutex
	samples []float32
	pos     int
}

func NewPCM(id string, samples []float32) *PCM {
	return &PCM{id: id, samples: samples}
}

func (p *PCM) ID() string { return p.id }

func (p *PCM) Read(buf []float32) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos >= len(p.samples) {
		return 0, io.EOF
	}
	n := copy(buf, p.samples[p.pos:])
	p.pos += n
	return n, nil
}

// Seek positions the source at the given stereo frame.
func (p *PCM) Seek(frame int) {
	p.mu.Lock()
	p.pos = min(max(frame*Channels, 0), len(p.samples))
	p.mu.Unlock()
}

func (p *PCM) Len() int { return len(p.samples) }

// LoadWAV reads a WAV file and returns interleaved stereo samples at
// SampleRate.
func LoadWAV(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeWAV(f)
}

func DecodeWAV(r io.Reader) ([]float32, error) {
	w, err := wav.New(r)
	if err != nil {
		return nil, fmt.Errorf("read wav header: %w", err)
	}
	if w.NumChannels == 0 || w.SampleRate == 0 {
		return nil, fmt.Errorf("wav: %d channels at %d Hz", w.NumChannels, w.SampleRate)
	}
	raw, err := w.ReadFloats(w.Samples)
	if err != nil {
		return nil, fmt.Errorf("read wav samples: %w", err)
	}
	// The reported count rounds down to a multiple of eight; pick up the
	// remainder one sample at a time.
	for {
		tail, err := w.ReadFloats(1)
		if err != nil {
			break
		}
		raw = append(raw, tail...)
	}
	// Integer PCM comes back in [0, 1].
	if w.AudioFormat == 1 {
		for i, v := range raw {
			raw[i] = v*2 - 1
		}
	}
	return resample(toStereo(raw, int(w.NumChannels)), int(w.SampleRate), SampleRate), nil
}

func toStereo(in []float32, channels int) []float32 {
	if channels == Channels {
		return in
	}
	frames := len(in) / channels
	out := make([]float32, frames*Channels)
	for i := 0; i < frames; i++ {
		l := in[i*channels]
		r := l
		if channels > 1 {
			r = in[i*channels+1]
		}
		out[i*2], out[i*2+1] = l, r
	}
	return out
}

// resample converts interleaved stereo with linear interpolation.
func resample(in []float32, from, to int) []float32 {
	if from == to || len(in) == 0 {
		return in
	}
	frames := len(in) / Channels
	outFrames := int(int64(frames) * int64(to) / int64(from))
	out := make([]float32, outFrames*Channels)
	step := float64(from) / float64(to)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * step
		j := int(pos)
		frac := float32(pos - float64(j))
		k := min(j+1, frames-1)
		for c := 0; c < Channels; c++ {
			a, b := in[j*Channels+c], in[k*Channels+c]
			out[i*Channels+c] = a + (b-a)*frac
		}
	}
	return out
}
