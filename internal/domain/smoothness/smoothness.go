// Package smoothness quantifies movement quality from accumulated tri-axis
// acceleration traces: spectral arc length, harmonic ratios, and normalized
// jerk.
package smoothness

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/motionlab/stride/internal/domain/model"
)

// Analysis configuration constants.
const (
	minSamples           = 128
	minSpanSec           = 0.5
	sparcMaxFreqHz       = 20.0
	harmonicCount        = 20
	defaultFundamentalHz = 1.0
	epsilon              = 1e-9
)

// Metrics is the per-analysis smoothness summary. All-zero when the buffer
// is too short.
type Metrics struct {
	SPARCScore      float64 `json:"sparc_score"`
	HarmonicRatioAP float64 `json:"harmonic_ratio_ap"`
	HarmonicRatioML float64 `json:"harmonic_ratio_ml"`
	NormalizedJerk  float64 `json:"normalized_jerk"`
}

// Option applies a configuration option to the Analyzer.
type Option func(*Analyzer)

// WithFundamental overrides the assumed stride fundamental frequency used for
// the harmonic-ratio decomposition. The 1 Hz default under- or overestimates
// harmonic bins at atypical cadences.
func WithFundamental(hz float64) Option {
	return func(a *Analyzer) {
		if hz > 0 {
			a.fundamentalHz = hz
		}
	}
}

// Analyzer buffers raw acceleration for a whole analysis period; there is no
// windowing, the caller resets between periods. Single-writer.
type Analyzer struct {
	fundamentalHz float64
	timestamps    []float64
	accel         []model.Vec3
}

// NewAnalyzer creates a smoothness analyzer.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{fundamentalHz: defaultFundamentalHz}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Record appends one acceleration sample (g).
func (a *Analyzer) Record(accel model.Vec3, timestamp float64) {
	a.timestamps = append(a.timestamps, timestamp)
	a.accel = append(a.accel, accel)
}

// SampleCount returns the number of buffered samples.
func (a *Analyzer) SampleCount() int {
	return len(a.accel)
}

// Analyze computes smoothness metrics over everything recorded since the last
// Reset. Requires at least 128 samples spanning 0.5 s, else returns zeros.
// The sampling frequency is re-derived from the buffer each call.
func (a *Analyzer) Analyze() Metrics {
	n := len(a.accel)
	if n < minSamples {
		return Metrics{}
	}
	duration := a.timestamps[n-1] - a.timestamps[0]
	if duration < minSpanSec {
		return Metrics{}
	}
	fs := float64(n) / duration

	mag := make([]float64, n)
	ap := make([]float64, n)
	ml := make([]float64, n)
	for i, v := range a.accel {
		mag[i] = v.Magnitude()
		ap[i] = v.Z
		ml[i] = v.X
	}

	return Metrics{
		SPARCScore:      sparc(mag, fs),
		HarmonicRatioAP: harmonicRatio(ap, fs, a.fundamentalHz),
		HarmonicRatioML: harmonicRatio(ml, fs, a.fundamentalHz),
		NormalizedJerk:  normalizedJerk(mag, fs, duration),
	}
}

// Reset drops the buffered trace.
func (a *Analyzer) Reset() {
	a.timestamps = a.timestamps[:0]
	a.accel = a.accel[:0]
}

// sparc is the spectral arc length: the negative arc length of the
// peak-normalized magnitude spectrum up to 20 Hz (or Nyquist), with the
// frequency axis normalized to [0, 1]. More negative means less smooth.
func sparc(signal []float64, fs float64) float64 {
	n := len(signal)
	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, signal)

	maxFreq := math.Min(sparcMaxFreqHz, fs/2)
	binWidth := fs / float64(n)
	bins := int(maxFreq/binWidth) + 1
	if bins > len(coeffs) {
		bins = len(coeffs)
	}
	if bins < 2 {
		return 0
	}

	mags := make([]float64, bins)
	peak := 0.0
	for i := 0; i < bins; i++ {
		mags[i] = cmplx.Abs(coeffs[i])
		if mags[i] > peak {
			peak = mags[i]
		}
	}
	if peak < epsilon {
		return 0
	}

	var arc float64
	df := 1.0 / float64(bins-1)
	for i := 1; i < bins; i++ {
		dm := (mags[i] - mags[i-1]) / peak
		arc += math.Sqrt(df*df + dm*dm)
	}
	return -arc
}

// harmonicRatio sums estimated magnitudes at even vs odd integer multiples of
// the stride fundamental via direct per-bin DFT. Returns even/odd, 0 when the
// odd sum vanishes.
func harmonicRatio(signal []float64, fs, fundamentalHz float64) float64 {
	n := len(signal)
	var evenSum, oddSum float64
	for k := 1; k <= harmonicCount; k++ {
		freq := float64(k) * fundamentalHz
		if freq >= fs/2 {
			break
		}
		var re, im float64
		for i, v := range signal {
			phase := 2 * math.Pi * freq * float64(i) / fs
			re += v * math.Cos(phase)
			im -= v * math.Sin(phase)
		}
		m := math.Hypot(re, im) / float64(n)
		if k%2 == 0 {
			evenSum += m
		} else {
			oddSum += m
		}
	}
	if oddSum < epsilon {
		return 0
	}
	return evenSum / oddSum
}

// normalizedJerk is the mean-square central-difference jerk of the magnitude
// signal, scaled by duration^1.5 over the peak-to-peak amplitude.
func normalizedJerk(signal []float64, fs, duration float64) float64 {
	n := len(signal)
	if n < 3 {
		return 0
	}
	dt := 1.0 / fs
	var sumSq float64
	for i := 1; i < n-1; i++ {
		j := (signal[i+1] - signal[i-1]) / (2 * dt)
		sumSq += j * j
	}
	meanSq := sumSq / float64(n-2)

	minV, maxV := signal[0], signal[0]
	for _, v := range signal {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	amplitude := maxV - minV
	if amplitude < epsilon {
		return 0
	}
	return meanSq * math.Pow(duration, 1.5) / amplitude
}
