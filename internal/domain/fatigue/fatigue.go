// Package fatigue detects fatigue onset from slow trends across parallel
// session time series: posture score, trunk lean, lateral sway, cadence, and
// walking speed.
package fatigue

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Recorder and composite-index constants.
const (
	minRecordIntervalSec = 2.0
	minAssessPoints      = 20

	postureDropWeight = 4.0
	postureDropCap    = 40.0
	sdIncreaseWeight  = 10.0
	sdIncreaseCap     = 20.0
	leanSlopeWeight   = 50.0
	leanSlopeCap      = 15.0
	speedSlopeWeight  = 100.0
	speedSlopeCap     = 10.0
	cadenceWeight     = 1.5
	cadenceCap        = 10.0
	cadenceChangePct  = 5.0
	swaySlopeWeight   = 25.0
	swaySlopeCap      = 5.0
	maxIndex          = 100.0

	fatiguedIndexThreshold = 25.0
	fatiguedDropThreshold  = 5.0
	fatiguedR2Threshold    = 0.3
)

// Point is one throttled observation of the tracked series.
type Point struct {
	Timestamp    float64
	PostureScore float64
	TrunkLeanDeg float64
	LateralSway  float64
	CadenceSPM   float64
	SpeedMS      float64
}

// Trend is an ordinary-least-squares fit over one series.
type Trend struct {
	Slope    float64 `json:"slope"`
	RSquared float64 `json:"r_squared"`
}

// Assessment aggregates the five trends and the weighted composite index.
type Assessment struct {
	PostureTrend Trend `json:"posture_trend"`
	LeanTrend    Trend `json:"lean_trend"`
	SwayTrend    Trend `json:"sway_trend"`
	CadenceTrend Trend `json:"cadence_trend"`
	SpeedTrend   Trend `json:"speed_trend"`

	PostureDrop  float64 `json:"posture_drop"`
	FatigueIndex float64 `json:"fatigue_index"`
	IsFatigued   bool    `json:"is_fatigued"`
}

// Analyzer accumulates throttled points and fits trends on demand.
// Single-writer.
type Analyzer struct {
	points    []Point
	lastTime  float64
	havePoint bool
}

// NewAnalyzer creates a fatigue analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Record accepts a point only when at least 2 s have elapsed since the last
// accepted one. Returns whether the point was kept.
func (a *Analyzer) Record(p Point) bool {
	if a.havePoint && p.Timestamp-a.lastTime < minRecordIntervalSec {
		return false
	}
	a.points = append(a.points, p)
	a.lastTime = p.Timestamp
	a.havePoint = true
	return true
}

// PointCount returns the number of accepted points.
func (a *Analyzer) PointCount() int {
	return len(a.points)
}

// Assess fits the five trends and composes the fatigue index. Fewer than 20
// accepted points yields a zero assessment.
func (a *Analyzer) Assess() Assessment {
	n := len(a.points)
	if n < minAssessPoints {
		return Assessment{}
	}

	times := make([]float64, n)
	posture := make([]float64, n)
	lean := make([]float64, n)
	sway := make([]float64, n)
	cadence := make([]float64, n)
	speed := make([]float64, n)
	for i, p := range a.points {
		times[i] = p.Timestamp - a.points[0].Timestamp
		posture[i] = p.PostureScore
		lean[i] = p.TrunkLeanDeg
		sway[i] = p.LateralSway
		cadence[i] = p.CadenceSPM
		speed[i] = p.SpeedMS
	}

	res := Assessment{
		PostureTrend: fitTrend(times, posture),
		LeanTrend:    fitTrend(times, lean),
		SwayTrend:    fitTrend(times, sway),
		CadenceTrend: fitTrend(times, cadence),
		SpeedTrend:   fitTrend(times, speed),
	}

	third := n / 3
	firstPosture := posture[:third]
	lastPosture := posture[n-third:]
	drop := stat.Mean(firstPosture, nil) - stat.Mean(lastPosture, nil)
	res.PostureDrop = drop

	var index float64
	if drop > 0 {
		index += math.Min(drop*postureDropWeight, postureDropCap)
	}
	if sdRise := stdDev(lastPosture) - stdDev(firstPosture); sdRise > 0 {
		index += math.Min(sdRise*sdIncreaseWeight, sdIncreaseCap)
	}
	if res.LeanTrend.Slope > 0 {
		index += math.Min(res.LeanTrend.Slope*leanSlopeWeight, leanSlopeCap)
	}
	if res.SpeedTrend.Slope < 0 {
		index += math.Min(-res.SpeedTrend.Slope*speedSlopeWeight, speedSlopeCap)
	}
	if firstCadence := stat.Mean(cadence[:third], nil); firstCadence > 0 {
		changePct := math.Abs(stat.Mean(cadence[n-third:], nil)-firstCadence) / firstCadence * 100
		if changePct > cadenceChangePct {
			index += math.Min(changePct*cadenceWeight, cadenceCap)
		}
	}
	if res.SwayTrend.Slope > 0 {
		index += math.Min(res.SwayTrend.Slope*swaySlopeWeight, swaySlopeCap)
	}

	res.FatigueIndex = math.Max(0, math.Min(maxIndex, index))
	res.IsFatigued = res.FatigueIndex > fatiguedIndexThreshold ||
		(drop > fatiguedDropThreshold && res.PostureTrend.RSquared > fatiguedR2Threshold)
	return res
}

// Reset returns the analyzer to its construction-time state.
func (a *Analyzer) Reset() {
	a.points = a.points[:0]
	a.lastTime = 0
	a.havePoint = false
}

func fitTrend(x, y []float64) Trend {
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	r2 := stat.RSquared(x, y, nil, alpha, beta)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return Trend{}
	}
	if math.IsNaN(r2) || r2 < 0 {
		r2 = 0
	}
	return Trend{Slope: beta, RSquared: r2}
}

func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	sd := stat.StdDev(xs, nil)
	if math.IsNaN(sd) {
		return 0
	}
	return sd
}
