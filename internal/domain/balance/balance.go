// Package balance computes postural sway metrics from root-joint positions
// and owns the two-phase Romberg test state machine.
package balance

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/motionlab/stride/internal/domain/model"
	"github.com/motionlab/stride/internal/domain/window"
)

// Default analyzer configuration constants.
const (
	defaultSwayWindowSec = 5.0
	minSwaySamples       = 15
	minMLRangeMM         = 0.1
	chiSquare95TwoDOF    = 5.991

	standingLookback    = 45
	minStandingSamples  = 10
	minStandingSpanSec  = 0.5
	standingSpeedMS     = 0.15
	minRombergVelocity  = 0.1
	minRombergArea      = 0.01
	metersToMillimeters = 1000.0
)

// Metrics is the per-frame sway summary. Derived and immutable; recomputed
// from scratch on every ProcessFrame call.
type Metrics struct {
	SwayVelocityMMS    float64 `json:"sway_velocity_mms"`
	SwayAreaCm2        float64 `json:"sway_area_cm2"`
	APRangeMM          float64 `json:"ap_range_mm"`
	MLRangeMM          float64 `json:"ml_range_mm"`
	APMLRatio          float64 `json:"ap_ml_ratio"`
	MeanSwayDistanceMM float64 `json:"mean_sway_distance_mm"`
}

// neutralMetrics is returned while the window is underfilled. The AP/ML ratio
// defaults to 1 rather than 0 so a cold start does not imply asymmetry.
func neutralMetrics() Metrics {
	return Metrics{APMLRatio: 1.0}
}

// RombergPhase identifies the active phase of a Romberg test.
type RombergPhase int

const (
	RombergNone RombergPhase = iota
	RombergEyesOpen
	RombergEyesClosed
)

// RombergResult compares eyes-closed against eyes-open sway. Ratios above 1
// indicate increased reliance on vision for balance.
type RombergResult struct {
	VelocityRatio     float64 `json:"velocity_ratio"`
	AreaRatio         float64 `json:"area_ratio"`
	OpenVelocityMMS   float64 `json:"open_velocity_mms"`
	ClosedVelocityMMS float64 `json:"closed_velocity_mms"`
	OpenAreaCm2       float64 `json:"open_area_cm2"`
	ClosedAreaCm2     float64 `json:"closed_area_cm2"`
}

// planarPoint is a ground-plane projection in millimeters: X lateral (ML),
// Y anterior-posterior (AP).
type planarPoint struct {
	x, y float64
}

// Option applies a configuration option to the Analyzer.
type Option func(*Analyzer)

// WithWindow overrides the sway window length in seconds.
func WithWindow(seconds float64) Option {
	return func(a *Analyzer) {
		if seconds > 0 {
			a.store = window.NewStore[model.Vec3](seconds)
		}
	}
}

// Analyzer derives sway metrics from a sliding window of root positions.
// Single-writer: not safe for concurrent use.
type Analyzer struct {
	store *window.Store[model.Vec3]

	phase       RombergPhase
	openPhase   []window.TimedSample[model.Vec3]
	closedPhase []window.TimedSample[model.Vec3]
}

// NewAnalyzer creates a balance analyzer with a 5 s sway window.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		store: window.NewStore[model.Vec3](defaultSwayWindowSec),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ProcessFrame records a root position (meters) and returns the current sway
// metrics, or a neutral struct while fewer than 15 samples are windowed.
func (a *Analyzer) ProcessFrame(position model.Vec3, timestamp float64) Metrics {
	a.store.Push(timestamp, position)

	switch a.phase {
	case RombergEyesOpen:
		a.openPhase = append(a.openPhase, window.TimedSample[model.Vec3]{Timestamp: timestamp, Payload: position})
	case RombergEyesClosed:
		a.closedPhase = append(a.closedPhase, window.TimedSample[model.Vec3]{Timestamp: timestamp, Payload: position})
	case RombergNone:
	}

	return computeMetrics(a.store.Samples())
}

// IsStanding classifies the subject as standing when the planar speed across
// the last ~1.5 s of samples stays below 0.15 m/s. Returns false until at
// least 10 samples spanning 0.5 s are available.
func (a *Analyzer) IsStanding() bool {
	samples := a.store.Samples()
	if len(samples) > standingLookback {
		samples = samples[len(samples)-standingLookback:]
	}
	if len(samples) < minStandingSamples {
		return false
	}
	first, last := samples[0], samples[len(samples)-1]
	elapsed := last.Timestamp - first.Timestamp
	if elapsed < minStandingSpanSec {
		return false
	}
	dx := last.Payload.X - first.Payload.X
	dz := last.Payload.Z - first.Payload.Z
	speed := math.Sqrt(dx*dx+dz*dz) / elapsed
	return speed < standingSpeedMS
}

// StartEyesOpen begins a Romberg test. Both phase buffers are cleared so a
// restarted test never mixes data from a previous run.
func (a *Analyzer) StartEyesOpen() {
	a.phase = RombergEyesOpen
	a.openPhase = a.openPhase[:0]
	a.closedPhase = a.closedPhase[:0]
}

// StartEyesClosed transitions to the eyes-closed phase, clearing only the
// closed-phase buffer.
func (a *Analyzer) StartEyesClosed() {
	a.phase = RombergEyesClosed
	a.closedPhase = a.closedPhase[:0]
}

// Phase returns the active Romberg phase.
func (a *Analyzer) Phase() RombergPhase {
	return a.phase
}

// CompleteRomberg finishes the test and compares the two phases. Returns
// false when either phase holds fewer than 15 samples.
func (a *Analyzer) CompleteRomberg() (RombergResult, bool) {
	a.phase = RombergNone
	if len(a.openPhase) < minSwaySamples || len(a.closedPhase) < minSwaySamples {
		return RombergResult{}, false
	}

	openVel, openArea := phaseSway(a.openPhase)
	closedVel, closedArea := phaseSway(a.closedPhase)

	res := RombergResult{
		VelocityRatio:     1.0,
		AreaRatio:         1.0,
		OpenVelocityMMS:   openVel,
		ClosedVelocityMMS: closedVel,
		OpenAreaCm2:       openArea,
		ClosedAreaCm2:     closedArea,
	}
	if openVel > minRombergVelocity {
		res.VelocityRatio = closedVel / openVel
	}
	if openArea > minRombergArea {
		res.AreaRatio = closedArea / openArea
	}
	return res, true
}

// Reset returns the analyzer to its construction-time state.
func (a *Analyzer) Reset() {
	a.store.Reset()
	a.phase = RombergNone
	a.openPhase = a.openPhase[:0]
	a.closedPhase = a.closedPhase[:0]
}

func phaseSway(samples []window.TimedSample[model.Vec3]) (velocity, area float64) {
	m := computeMetrics(samples)
	return m.SwayVelocityMMS, m.SwayAreaCm2
}

func computeMetrics(samples []window.TimedSample[model.Vec3]) Metrics {
	if len(samples) < minSwaySamples {
		return neutralMetrics()
	}

	// Ground-plane projection in millimeters: X is ML, Z is AP.
	pts := make([]planarPoint, len(samples))
	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		pts[i] = planarPoint{
			x: s.Payload.X * metersToMillimeters,
			y: s.Payload.Z * metersToMillimeters,
		}
		xs[i] = pts[i].x
		ys[i] = pts[i].y
	}

	cx := stat.Mean(xs, nil)
	cy := stat.Mean(ys, nil)

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	var meanDist float64
	for i := range pts {
		pts[i].x -= cx
		pts[i].y -= cy
		minX = math.Min(minX, pts[i].x)
		maxX = math.Max(maxX, pts[i].x)
		minY = math.Min(minY, pts[i].y)
		maxY = math.Max(maxY, pts[i].y)
		meanDist += math.Hypot(pts[i].x, pts[i].y)
	}
	meanDist /= float64(len(pts))

	mlRange := maxX - minX
	apRange := maxY - minY
	ratio := 1.0
	if mlRange >= minMLRangeMM {
		ratio = apRange / mlRange
	}

	// Cumulative path length over elapsed time.
	var path float64
	for i := 1; i < len(pts); i++ {
		path += math.Hypot(pts[i].x-pts[i-1].x, pts[i].y-pts[i-1].y)
	}
	elapsed := samples[len(samples)-1].Timestamp - samples[0].Timestamp
	var velocity float64
	if elapsed > 0 {
		velocity = path / elapsed
	}

	return Metrics{
		SwayVelocityMMS:    velocity,
		SwayAreaCm2:        ellipseArea(pts),
		APRangeMM:          apRange,
		MLRangeMM:          mlRange,
		APMLRatio:          ratio,
		MeanSwayDistanceMM: meanDist,
	}
}

// ellipseArea returns the 95%-confidence ellipse area in cm² from centered
// planar points, via the closed-form eigenvalues of the 2x2 covariance
// matrix. A negative discriminant is clamped to zero and non-positive
// eigenvalues collapse the area to zero.
func ellipseArea(pts []planarPoint) float64 {
	n := float64(len(pts))
	if n < 2 {
		return 0
	}
	var sxx, syy, sxy float64
	for _, p := range pts {
		sxx += p.x * p.x
		syy += p.y * p.y
		sxy += p.x * p.y
	}
	sxx /= n - 1
	syy /= n - 1
	sxy /= n - 1

	trace := sxx + syy
	det := sxx*syy - sxy*sxy
	disc := trace*trace/4 - det
	if disc < 0 {
		disc = 0
	}
	root := math.Sqrt(disc)
	l1 := trace/2 + root
	l2 := trace/2 - root
	if l1 <= 0 || l2 <= 0 {
		return 0
	}
	areaMM2 := math.Pi * chiSquare95TwoDOF * math.Sqrt(l1*l2)
	return areaMM2 / 100.0
}
