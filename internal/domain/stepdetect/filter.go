package stepdetect

import (
	"fmt"
	"math"
)

// biquad is a second-order IIR low-pass section (RBJ cookbook coefficients,
// direct form I). Coefficients are derived once from the sampling rate.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	x1, x2     float64
	y1, y2     float64
}

// newLowPass derives Butterworth low-pass coefficients for the given cutoff
// and sampling rate. A non-positive or sub-Nyquist-violating rate is the one
// construction-time invariant that fails loudly.
func newLowPass(cutoffHz, sampleRateHz float64) (*biquad, error) {
	if sampleRateHz <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %v", sampleRateHz)
	}
	if cutoffHz <= 0 || cutoffHz >= sampleRateHz/2 {
		return nil, fmt.Errorf("cutoff %v Hz outside (0, Nyquist) for rate %v Hz", cutoffHz, sampleRateHz)
	}

	const q = math.Sqrt2 / 2 // Butterworth
	omega := 2 * math.Pi * cutoffHz / sampleRateHz
	sin, cos := math.Sincos(omega)
	alpha := sin / (2 * q)

	a0 := 1 + alpha
	return &biquad{
		b0: (1 - cos) / 2 / a0,
		b1: (1 - cos) / a0,
		b2: (1 - cos) / 2 / a0,
		a1: -2 * cos / a0,
		a2: (1 - alpha) / a0,
	}, nil
}

// process filters one sample.
func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// reset clears the delay line.
func (f *biquad) reset() {
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
}
