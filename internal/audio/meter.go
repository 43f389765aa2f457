package audio

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Levels are smoothed band energies normalised to [0, 1].
type Levels struct {
	Bass, Mid, High float64
}

// Meter is a Sink that analyses the monitor signal one BufferSize block at a
// time with a Hann-windowed FFT and automatic gain control.
type Meter struct {
	mu       sync.Mutex
	hann     []float64
	block    []float64
	fill     int
	maxLevel float64
	levels   Levels
}

func NewMeter() *Meter {
	return &Meter{
		hann:     window.Hann(BufferSize),
		block:    make([]float64, BufferSize),
		maxLevel: 0.1,
	}
}

func (m *Meter) Write(samples []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i+Channels <= len(samples); i += Channels {
		var sum float64
		for c := 0; c < Channels; c++ {
			sum += float64(samples[i+c])
		}
		m.block[m.fill] = sum / Channels * m.hann[m.fill]
		m.fill++
		if m.fill == BufferSize {
			m.analyse()
			m.fill = 0
		}
	}
	return nil
}

func (m *Meter) analyse() {
	spectrum := fft.FFTReal(m.block)

	bassSum, midSum, highSum := 0.0, 0.0, 0.0
	for i := 0; i < BufferSize/2; i++ {
		mag := cmplx.Abs(spectrum[i])
		switch {
		case i < 5:
			bassSum += mag
		case i < 46:
			midSum += mag
		case i < 460:
			highSum += mag
		}
	}

	peak := math.Max(bassSum/100, math.Max(midSum/500, highSum/1000))
	if peak > m.maxLevel {
		m.maxLevel = peak
	} else {
		m.maxLevel *= 0.999
	}
	gain := 1.0
	if m.maxLevel > 0.001 {
		gain = math.Min(1/m.maxLevel, 50)
	}

	m.levels.Bass = m.levels.Bass*0.9 + math.Min(bassSum/100*gain, 1)*0.1
	m.levels.Mid = m.levels.Mid*0.9 + math.Min(midSum/500*gain, 1)*0.1
	m.levels.High = m.levels.High*0.9 + math.Min(highSum/1000*gain, 1)*0.1
}

func (m *Meter) Levels() Levels {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels
}
