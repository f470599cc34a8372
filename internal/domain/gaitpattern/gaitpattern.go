// Package gaitpattern classifies gait into clinical patterns by scoring
// seven pathological signatures against optional summary statistics.
package gaitpattern

import "math"

// Pattern identifies a gait classification.
type Pattern string

// Patterns in declaration order; this order breaks score ties so primary
// selection is reproducible.
const (
	PatternNormal        Pattern = "normal"
	PatternAntalgic      Pattern = "antalgic"
	PatternHemiplegic    Pattern = "hemiplegic"
	PatternParkinsonian  Pattern = "parkinsonian"
	PatternAtaxic        Pattern = "ataxic"
	PatternTrendelenburg Pattern = "trendelenburg"
	PatternSteppage      Pattern = "steppage"
	PatternShuffling     Pattern = "shuffling"
)

// pathological lists the non-normal patterns in tie-break order.
var pathological = []Pattern{
	PatternAntalgic,
	PatternHemiplegic,
	PatternParkinsonian,
	PatternAtaxic,
	PatternTrendelenburg,
	PatternSteppage,
	PatternShuffling,
}

// Inputs are the optional gait summary statistics. Nil fields exclude the
// corresponding rules rather than defaulting them.
type Inputs struct {
	StanceTimeAsymmetryPct *float64
	StepLengthAsymmetryPct *float64
	StepLengthCVPct        *float64
	StepLengthM            *float64
	ArmSwingAsymmetryPct   *float64
	ArmSwingRangeDeg       *float64
	CadenceSPM             *float64
	GaitSpeedMS            *float64
	SwayVelocityMMS        *float64
	PelvicObliquityDeg     *float64
	HipFlexionRangeDeg     *float64
	KneeFlexionRangeDeg    *float64
}

// Result is the classification outcome.
type Result struct {
	PrimaryPattern Pattern             `json:"primary_pattern"`
	Confidence     float64             `json:"confidence"` // 0-1
	PatternScores  map[Pattern]float64 `json:"pattern_scores"`
	Flags          []string            `json:"flags"`
}

// rule scores one statistic against a threshold with a weight.
type rule struct {
	value     *float64
	threshold float64
	weight    float64
}

const flagThreshold = 0.5

// Classify scores every pattern and selects the highest as primary, with its
// score as confidence. The normal score is 1 - max(pathological).
func Classify(in Inputs) Result {
	stepDeficit := deficit(in.StepLengthM, 0.4)
	speedDeficit := deficit(in.GaitSpeedMS, 1.0)
	armSwingDeficit := deficit(in.ArmSwingRangeDeg, 20.0)

	scores := map[Pattern]float64{
		PatternAntalgic: patternScore(
			rule{in.StanceTimeAsymmetryPct, 10, 2},
			rule{in.StepLengthAsymmetryPct, 10, 1},
		),
		PatternHemiplegic: patternScore(
			rule{in.ArmSwingAsymmetryPct, 30, 2},
			rule{in.StepLengthAsymmetryPct, 12, 1},
		),
		PatternParkinsonian: patternScore(
			rule{armSwingDeficit, 10, 2},
			rule{speedDeficit, 0.3, 1},
			rule{in.CadenceSPM, 115, 1},
		),
		PatternAtaxic: patternScore(
			rule{in.StepLengthCVPct, 10, 2},
			rule{in.SwayVelocityMMS, 20, 1},
		),
		PatternTrendelenburg: patternScore(
			rule{in.PelvicObliquityDeg, 5, 2},
			rule{in.StanceTimeAsymmetryPct, 3, 1},
		),
		PatternSteppage: patternScore(
			rule{in.HipFlexionRangeDeg, 45, 2},
			rule{in.KneeFlexionRangeDeg, 70, 1},
		),
		PatternShuffling: patternScore(
			rule{stepDeficit, 0.15, 2},
			rule{in.CadenceSPM, 115, 1},
		),
	}

	var maxPath float64
	for _, p := range pathological {
		maxPath = math.Max(maxPath, scores[p])
	}
	scores[PatternNormal] = 1 - maxPath

	// Deterministic selection: score descending, declaration order on ties.
	primary := PatternNormal
	best := scores[PatternNormal]
	for _, p := range pathological {
		if scores[p] > best {
			primary = p
			best = scores[p]
		}
	}

	var flags []string
	for _, p := range pathological {
		if scores[p] >= flagThreshold {
			flags = append(flags, string(p))
		}
	}

	return Result{
		PrimaryPattern: primary,
		Confidence:     best,
		PatternScores:  scores,
		Flags:          flags,
	}
}

// patternScore is the weighted mean of the present rules' sub-scores; rules
// with absent inputs are excluded. Empty coverage scores 0.
func patternScore(rules ...rule) float64 {
	var weighted, totalWeight float64
	for _, r := range rules {
		if r.value == nil {
			continue
		}
		weighted += subScore(*r.value, r.threshold) * r.weight
		totalWeight += r.weight
	}
	if totalWeight == 0 {
		return 0
	}
	return weighted / totalWeight
}

// subScore maps value-vs-threshold to [0, 1]: linear partial credit toward
// 0.5 below the threshold, 0.5 plus capped linear excess above it.
func subScore(value, threshold float64) float64 {
	if threshold <= 0 {
		return 0
	}
	if value < 0 {
		value = 0
	}
	if value < threshold {
		return value / threshold * 0.5
	}
	excess := (value - threshold) / threshold * 0.5
	return math.Min(1, 0.5+excess)
}

// deficit converts a "lower is worse" statistic into a positive shortfall
// from a reference, nil in → nil out.
func deficit(value *float64, reference float64) *float64 {
	if value == nil {
		return nil
	}
	d := math.Max(0, reference-*value)
	return &d
}
