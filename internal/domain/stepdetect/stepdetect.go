// Package stepdetect detects heel-strike steps in vertical acceleration and
// cross-validates steps reported by external detectors.
package stepdetect

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/motionlab/stride/internal/domain/window"
)

// Detector tuning constants.
const (
	defaultCutoffHz    = 5.0
	bufferWindowSec    = 5.0
	minPeakFloorG      = 0.08
	adaptiveDeviationK = 1.2
	peakHistorySize    = 50
	refractorySec      = 0.250
	cadenceWindowSec   = 10.0
	minCadenceSteps    = 2
	minCadenceSpanSec  = 0.3
	stepHistoryCap     = 256
	validateWindowSec  = 0.100
)

// StepEvent is emitted once per accepted step.
type StepEvent struct {
	Timestamp         float64 `json:"timestamp"`
	InstantCadenceSPM float64 `json:"instant_cadence_spm"`
	ImpactMagnitudeG  float64 `json:"impact_magnitude_g"`
}

// Detector runs a Butterworth low-pass over vertical acceleration magnitude
// and an adaptive local-maximum test over the filtered trace. Single-writer.
type Detector struct {
	filter   *biquad
	buffer   *window.Store[float64] // filtered samples, ~5 s
	peakMags *window.Ring           // magnitudes of the last accepted peaks

	stepCount      int
	stepTimestamps []float64
	lastStepTime   float64
	haveStep       bool
}

// NewDetector derives filter coefficients from the sampling rate. The rate
// must be positive and above twice the 5 Hz cutoff.
func NewDetector(sampleRateHz float64) (*Detector, error) {
	f, err := newLowPass(defaultCutoffHz, sampleRateHz)
	if err != nil {
		return nil, err
	}
	return &Detector{
		filter:   f,
		buffer:   window.NewStore[float64](bufferWindowSec),
		peakMags: window.NewRing(peakHistorySize),
	}, nil
}

// Process filters one vertical-acceleration sample (g) and reports a step
// event when the sample two positions back is an accepted local maximum.
func (d *Detector) Process(verticalAccelG, timestamp float64) (StepEvent, bool) {
	filtered := d.filter.process(math.Abs(verticalAccelG))
	d.buffer.Push(timestamp, filtered)

	samples := d.buffer.Samples()
	n := len(samples)
	if n < 3 {
		return StepEvent{}, false
	}

	// Candidate is the sample two back so both neighbours exist.
	candidate := samples[n-2]
	if !(candidate.Payload > samples[n-3].Payload && candidate.Payload > samples[n-1].Payload) {
		return StepEvent{}, false
	}
	if candidate.Payload < minPeakFloorG {
		return StepEvent{}, false
	}
	if candidate.Payload < d.threshold() {
		return StepEvent{}, false
	}
	if d.haveStep && candidate.Timestamp-d.lastStepTime < refractorySec {
		return StepEvent{}, false
	}

	d.stepCount++
	d.lastStepTime = candidate.Timestamp
	d.haveStep = true
	d.peakMags.Push(candidate.Payload)
	d.stepTimestamps = append(d.stepTimestamps, candidate.Timestamp)
	if len(d.stepTimestamps) > stepHistoryCap {
		d.stepTimestamps = d.stepTimestamps[len(d.stepTimestamps)-stepHistoryCap:]
	}

	return StepEvent{
		Timestamp:         candidate.Timestamp,
		InstantCadenceSPM: d.CurrentCadenceSPM(),
		ImpactMagnitudeG:  candidate.Payload,
	}, true
}

// threshold is the adaptive acceptance level: mean - k·sd over the recent
// accepted peak magnitudes, never below the fixed floor.
func (d *Detector) threshold() float64 {
	mags := d.peakMags.Slice()
	if len(mags) == 0 {
		return minPeakFloorG
	}
	mean, sd := stat.MeanStdDev(mags, nil)
	if math.IsNaN(sd) {
		sd = 0
	}
	return math.Max(minPeakFloorG, mean-adaptiveDeviationK*sd)
}

// StepCount returns the number of accepted steps since construction or Reset.
func (d *Detector) StepCount() int {
	return d.stepCount
}

// CurrentCadenceSPM computes cadence from the steps accepted in the last
// 10 s: (steps-1)/duration·60, requiring at least 2 steps spanning 0.3 s.
func (d *Detector) CurrentCadenceSPM() float64 {
	if !d.haveStep {
		return 0
	}
	cutoff := d.lastStepTime - cadenceWindowSec
	first := len(d.stepTimestamps)
	for i, ts := range d.stepTimestamps {
		if ts >= cutoff {
			first = i
			break
		}
	}
	recent := d.stepTimestamps[first:]
	if len(recent) < minCadenceSteps {
		return 0
	}
	span := recent[len(recent)-1] - recent[0]
	if span < minCadenceSpanSec {
		return 0
	}
	return float64(len(recent)-1) / span * 60
}

// ValidateExternalStep scores an externally-detected step against the
// filtered trace: the best peak within ±100 ms of the claimed timestamp is
// compared to the adaptive threshold and the ratio range [0.5, 1.0] is mapped
// onto a [0, 1] confidence. Returns 0 when no buffered sample falls in the
// search window.
func (d *Detector) ValidateExternalStep(timestamp float64) float64 {
	var best float64
	found := false
	for _, s := range d.buffer.Samples() {
		if math.Abs(s.Timestamp-timestamp) <= validateWindowSec {
			found = true
			if s.Payload > best {
				best = s.Payload
			}
		}
	}
	if !found {
		return 0
	}
	thr := d.threshold()
	if thr <= 0 {
		return 0
	}
	conf := (best/thr - 0.5) * 2
	return math.Max(0, math.Min(1, conf))
}

// Reset returns the detector to its construction-time state.
func (d *Detector) Reset() {
	d.filter.reset()
	d.buffer.Reset()
	d.peakMags.Reset()
	d.stepCount = 0
	d.stepTimestamps = d.stepTimestamps[:0]
	d.lastStepTime = 0
	d.haveStep = false
}
