// Package fallrisk composes a weighted, rule-based fall-risk score from
// pre-computed gait and posture summary statistics.
package fallrisk

import "math"

// Scoring constants.
const (
	midScore     = 50.0
	maxScore     = 100.0
	fullCoverage = 3.0 // factors needed before the coverage discount lifts
)

// Factor thresholds and weights. Values at the threshold score 50; twice the
// threshold saturates at 100.
const (
	swayVelocityThreshold  = 15.0 // mm/s
	swayVelocityWeight     = 1.5
	swayAreaThreshold      = 5.0 // cm²
	swayAreaWeight         = 1.2
	slowGaitThreshold      = 0.35 // m/s below the 1.0 m/s reference
	slowGaitWeight         = 1.4
	gaitSpeedReferenceMS   = 1.0
	cadenceCVThreshold     = 4.0 // %
	cadenceCVWeight        = 1.0
	stepAsymmetryThreshold = 8.0 // %
	stepAsymmetryWeight    = 1.3
	turnDurationThreshold  = 2.5 // s
	turnDurationWeight     = 1.0
	fatigueThreshold       = 40.0
	fatigueWeight          = 0.8
)

// RiskLevel buckets the composite score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// Inputs are the optional summary statistics; nil fields are excluded from
// the weighted sum rather than defaulted.
type Inputs struct {
	SwayVelocityMMS      *float64
	SwayAreaCm2          *float64
	GaitSpeedMS          *float64
	CadenceCVPct         *float64
	StepTimeAsymmetryPct *float64
	AvgTurnDurationSec   *float64
	FatigueIndex         *float64
}

// Factor is one contributing risk factor with its normalized sub-score.
type Factor struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Weight    float64 `json:"weight"`
	Score     float64 `json:"score"` // 0-100
}

// Assessment is the composite result.
type Assessment struct {
	CompositeScore  float64   `json:"composite_score"` // 0-100
	RiskLevel       RiskLevel `json:"risk_level"`
	Factors         []Factor  `json:"factors"`
	RiskFactorCount int       `json:"risk_factor_count"` // factors at or past threshold
}

// Assess computes the weighted composite. The weighted mean over present
// factors is attenuated by min(1, presentCount/3): a composite built from one
// or two factors is deliberately discounted for sparse coverage.
func Assess(in Inputs) Assessment {
	var factors []Factor
	add := func(name string, value *float64, threshold, weight float64) {
		if value == nil {
			return
		}
		factors = append(factors, Factor{
			Name:      name,
			Value:     *value,
			Threshold: threshold,
			Weight:    weight,
			Score:     subScore(*value, threshold),
		})
	}

	add("sway_velocity", in.SwayVelocityMMS, swayVelocityThreshold, swayVelocityWeight)
	add("sway_area", in.SwayAreaCm2, swayAreaThreshold, swayAreaWeight)
	if in.GaitSpeedMS != nil {
		deficit := math.Max(0, gaitSpeedReferenceMS-*in.GaitSpeedMS)
		add("slow_gait", &deficit, slowGaitThreshold, slowGaitWeight)
	}
	add("cadence_variability", in.CadenceCVPct, cadenceCVThreshold, cadenceCVWeight)
	add("step_time_asymmetry", in.StepTimeAsymmetryPct, stepAsymmetryThreshold, stepAsymmetryWeight)
	add("turn_duration", in.AvgTurnDurationSec, turnDurationThreshold, turnDurationWeight)
	add("fatigue", in.FatigueIndex, fatigueThreshold, fatigueWeight)

	if len(factors) == 0 {
		return Assessment{RiskLevel: RiskLow, Factors: []Factor{}}
	}

	var weighted, totalWeight float64
	riskCount := 0
	for _, f := range factors {
		weighted += f.Score * f.Weight
		totalWeight += f.Weight
		if f.Value >= f.Threshold {
			riskCount++
		}
	}
	composite := weighted / totalWeight
	composite *= math.Min(1, float64(len(factors))/fullCoverage)
	composite = math.Max(0, math.Min(maxScore, composite))

	return Assessment{
		CompositeScore:  composite,
		RiskLevel:       bucket(composite),
		Factors:         factors,
		RiskFactorCount: riskCount,
	}
}

// subScore maps a raw value against its threshold: below-threshold values get
// linear partial credit toward 50, above-threshold values add linear excess
// up to the 100 cap.
func subScore(value, threshold float64) float64 {
	if threshold <= 0 {
		return 0
	}
	if value < 0 {
		value = 0
	}
	if value < threshold {
		return value / threshold * midScore
	}
	excess := (value - threshold) / threshold * midScore
	return math.Min(maxScore, midScore+excess)
}

func bucket(score float64) RiskLevel {
	switch {
	case score < 25:
		return RiskLow
	case score < 50:
		return RiskModerate
	case score < 75:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}
