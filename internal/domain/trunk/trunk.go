// Package trunk analyzes trunk orientation and rotation-rate traces: turn
// detection, rotation asymmetry, lateral flexion, and a movement-regularity
// index.
package trunk

import (
	"math"

	"github.com/motionlab/stride/internal/domain/model"
	"github.com/motionlab/stride/internal/domain/window"
)

// Analyzer tuning constants.
const (
	bufferWindowSec       = 60.0
	turnLookbackSec       = 3.0
	turnYawThreshold      = math.Pi / 4
	turnSeparationSec     = 1.0
	minAnalyzeSamples     = 30
	yawRangeWindowSec     = 1.0
	activityFloorRadS     = 0.1
	minRegularitySamples  = 120
	minRegularityVariance = 1e-4
	strideLagMinSec       = 0.8
	strideLagMaxSec       = 1.2
	radToDeg              = 180.0 / math.Pi
)

// orientationSample is the per-frame payload kept in the 60 s ring.
type orientationSample struct {
	yaw     float64
	roll    float64
	yawRate float64 // rotation rate about the vertical axis, rad/s
}

// Turn is one detected trunk turn.
type Turn struct {
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	DurationSec float64 `json:"duration_sec"`
	AngleRad    float64 `json:"angle_rad"`
}

// Metrics summarizes trunk motion over the buffered minute.
type Metrics struct {
	PeakYawRateDPS        float64 `json:"peak_yaw_rate_dps"`
	AvgYawRangeDeg        float64 `json:"avg_yaw_range_deg"`
	TurnCount             int     `json:"turn_count"`
	AvgTurnDurationSec    float64 `json:"avg_turn_duration_sec"`
	RotationAsymmetryPct  float64 `json:"rotation_asymmetry_pct"`
	MeanLateralFlexionDeg float64 `json:"mean_lateral_flexion_deg"`
	RegularityIndex       float64 `json:"regularity_index"`
}

// Analyzer buffers orientation/rotation-rate samples and detects turns as
// frames arrive. Single-writer.
type Analyzer struct {
	store       *window.Store[orientationSample]
	turns       []Turn
	lastTurnEnd float64
	hasTurn     bool
}

// NewAnalyzer creates a trunk motion analyzer with a 60 s buffer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		store: window.NewStore[orientationSample](bufferWindowSec),
	}
}

// Record buffers one inertial sample and runs turn detection against the
// most recent 3 s lookback.
func (a *Analyzer) Record(sample model.IMUSample) {
	a.store.Push(sample.Timestamp, orientationSample{
		yaw:     sample.Yaw,
		roll:    sample.Roll,
		yawRate: sample.RotationRate.Y,
	})
	a.detectTurn()
}

// detectTurn fires when the yaw delta across the ≤3 s lookback reaches π/4
// and the lookback start is more than 1 s past the previous turn's end.
func (a *Analyzer) detectTurn() {
	samples := a.store.Samples()
	n := len(samples)
	if n < 2 {
		return
	}
	now := samples[n-1]
	start := 0
	for start < n && now.Timestamp-samples[start].Timestamp > turnLookbackSec {
		start++
	}
	if start >= n-1 {
		return
	}
	first := samples[start]
	delta := normalizeAngle(now.Payload.yaw - first.Payload.yaw)
	if math.Abs(delta) < turnYawThreshold {
		return
	}
	if a.hasTurn && first.Timestamp-a.lastTurnEnd <= turnSeparationSec {
		return
	}
	a.turns = append(a.turns, Turn{
		StartTime:   first.Timestamp,
		EndTime:     now.Timestamp,
		DurationSec: now.Timestamp - first.Timestamp,
		AngleRad:    delta,
	})
	a.lastTurnEnd = now.Timestamp
	a.hasTurn = true
}

// Turns returns the turns detected so far.
func (a *Analyzer) Turns() []Turn {
	return a.turns
}

// Analyze summarizes the buffered trace. Fewer than 30 samples yields zeros.
func (a *Analyzer) Analyze() Metrics {
	samples := a.store.Samples()
	if len(samples) < minAnalyzeSamples {
		return Metrics{}
	}

	var peakRate, rollSum float64
	var leftSum, rightSum float64
	var leftN, rightN int
	for _, s := range samples {
		r := math.Abs(s.Payload.yawRate)
		if r > peakRate {
			peakRate = r
		}
		rollSum += math.Abs(s.Payload.roll)
		switch {
		case s.Payload.yawRate > activityFloorRadS:
			leftSum += s.Payload.yawRate
			leftN++
		case s.Payload.yawRate < -activityFloorRadS:
			rightSum += -s.Payload.yawRate
			rightN++
		}
	}

	asymmetry := 0.0
	if leftN > 0 && rightN > 0 {
		meanLeft := leftSum / float64(leftN)
		meanRight := rightSum / float64(rightN)
		if peak := math.Max(meanLeft, meanRight); peak > 0 {
			asymmetry = math.Abs(meanLeft-meanRight) / peak * 100
		}
	}

	var avgTurn float64
	if len(a.turns) > 0 {
		for _, t := range a.turns {
			avgTurn += t.DurationSec
		}
		avgTurn /= float64(len(a.turns))
	}

	return Metrics{
		PeakYawRateDPS:        peakRate * radToDeg,
		AvgYawRangeDeg:        averageYawRange(samples) * radToDeg,
		TurnCount:             len(a.turns),
		AvgTurnDurationSec:    avgTurn,
		RotationAsymmetryPct:  asymmetry,
		MeanLateralFlexionDeg: rollSum / float64(len(samples)) * radToDeg,
		RegularityIndex:       regularityIndex(samples),
	}
}

// Reset returns the analyzer to its construction-time state.
func (a *Analyzer) Reset() {
	a.store.Reset()
	a.turns = a.turns[:0]
	a.lastTurnEnd = 0
	a.hasTurn = false
}

// averageYawRange splits the trace into 1 s windows and averages the
// wrap-corrected yaw range of each.
func averageYawRange(samples []window.TimedSample[orientationSample]) float64 {
	var ranges []float64
	winStart := 0
	for i := range samples {
		if samples[i].Timestamp-samples[winStart].Timestamp >= yawRangeWindowSec {
			ranges = append(ranges, yawRange(samples[winStart:i+1]))
			winStart = i
		}
	}
	if len(ranges) == 0 {
		return yawRange(samples)
	}
	var sum float64
	for _, r := range ranges {
		sum += r
	}
	return sum / float64(len(ranges))
}

// yawRange accumulates wrap-corrected yaw travel bounds inside one window.
func yawRange(samples []window.TimedSample[orientationSample]) float64 {
	if len(samples) < 2 {
		return 0
	}
	unwrapped := samples[0].Payload.yaw
	minY, maxY := unwrapped, unwrapped
	for i := 1; i < len(samples); i++ {
		unwrapped += normalizeAngle(samples[i].Payload.yaw - samples[i-1].Payload.yaw)
		minY = math.Min(minY, unwrapped)
		maxY = math.Max(maxY, unwrapped)
	}
	return maxY - minY
}

// regularityIndex is the normalized autocorrelation of the centered yaw-rate
// signal, maximized over lags corresponding to the 0.8-1.2 s stride period
// and clamped to [0, 1]. Needs ≥120 samples and non-degenerate variance.
func regularityIndex(samples []window.TimedSample[orientationSample]) float64 {
	n := len(samples)
	if n < minRegularitySamples {
		return 0
	}
	span := samples[n-1].Timestamp - samples[0].Timestamp
	if span <= 0 {
		return 0
	}
	rate := float64(n) / span

	signal := make([]float64, n)
	var mean float64
	for i, s := range samples {
		signal[i] = s.Payload.yawRate
		mean += s.Payload.yawRate
	}
	mean /= float64(n)
	var variance float64
	for i := range signal {
		signal[i] -= mean
		variance += signal[i] * signal[i]
	}
	variance /= float64(n)
	if variance <= minRegularityVariance {
		return 0
	}

	minLag := int(strideLagMinSec * rate)
	maxLag := int(strideLagMaxSec * rate)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= n {
		maxLag = n - 1
	}
	var best float64
	for lag := minLag; lag <= maxLag; lag++ {
		var acc float64
		for i := 0; i+lag < n; i++ {
			acc += signal[i] * signal[i+lag]
		}
		acc /= float64(n-lag) * variance
		if acc > best {
			best = acc
		}
	}
	return math.Max(0, math.Min(1, best))
}

// normalizeAngle wraps an angle difference to [-π, π].
func normalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
