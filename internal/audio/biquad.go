package audio

import (
	"math"
	"math/cmplx"
)

const (
	HighpassFreq = 800.0
	// HighpassQ is a resonance of 1 dB expressed as a linear Q.
	HighpassQ   = 1.1220184543019633
	PeakingFreq = 2000.0
	PeakingQ    = 1.0
	PeakingGain = 15.0
)

// Biquad is a second-order IIR filter in transposed direct form II with
// independent state per channel. Coefficients are normalised by a0.
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z          [Channels][2]float64
}

func NewHighpass(freq, q, rate float64) *Biquad {
	w0 := 2 * math.Pi * freq / rate
	cos, alpha := math.Cos(w0), math.Sin(w0)/(2*q)
	a0 := 1 + alpha
	return &Biquad{
		b0: (1 + cos) / 2 / a0,
		b1: -(1 + cos) / a0,
		b2: (1 + cos) / 2 / a0,
		a1: -2 * cos / a0,
		a2: (1 - alpha) / a0,
	}
}

func NewPeaking(freq, q, gainDB, rate float64) *Biquad {
	w0 := 2 * math.Pi * freq / rate
	cos, alpha := math.Cos(w0), math.Sin(w0)/(2*q)
	a := math.Pow(10, gainDB/40)
	a0 := 1 + alpha/a
	return &Biquad{
		b0: (1 + alpha*a) / a0,
		b1: -2 * cos / a0,
		b2: (1 - alpha*a) / a0,
		a1: -2 * cos / a0,
		a2: (1 - alpha/a) / a0,
	}
}

// Process filters interleaved samples in place.
func (f *Biquad) Process(buf []float32) {
	for i, s := range buf {
		ch := i % Channels
		x := float64(s)
		y := f.b0*x + f.z[ch][0]
		f.z[ch][0] = f.b1*x - f.a1*y + f.z[ch][1]
		f.z[ch][1] = f.b2*x - f.a2*y
		buf[i] = float32(y)
	}
}

func (f *Biquad) Reset() { f.z = [Channels][2]float64{} }

// Response returns the magnitude of the transfer function at freq.
func (f *Biquad) Response(freq, rate float64) float64 {
	z1 := cmplx.Exp(complex(0, -2*math.Pi*freq/rate))
	z2 := z1 * z1
	num := complex(f.b0, 0) + complex(f.b1, 0)*z1 + complex(f.b2, 0)*z2
	den := 1 + complex(f.a1, 0)*z1 + complex(f.a2, 0)*z2
	return cmplx.Abs(num / den)
}
