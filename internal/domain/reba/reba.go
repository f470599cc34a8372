// Package reba implements the Rapid Entire Body Assessment ergonomic risk
// score: six segment scores combined through the published lookup tables.
package reba

import "math"

// Score bounds and bucket thresholds.
const (
	minScore          = 1
	maxScore          = 15
	activityIncrement = 1
)

// RiskLevel buckets the final REBA score.
type RiskLevel string

const (
	RiskNegligible RiskLevel = "negligible"
	RiskLow        RiskLevel = "low"
	RiskMedium     RiskLevel = "medium"
	RiskHigh       RiskLevel = "high"
	RiskVeryHigh   RiskLevel = "very_high"
)

// Input carries the joint-vector angles for one posture. Nil angle fields
// mean the joint was not tracked; the affected segment defaults to its most
// benign score of 1.
type Input struct {
	TrunkFlexionDeg  *float64
	TrunkTwistDeg    *float64
	NeckFlexionDeg   *float64
	KneeFlexionDeg   *float64
	BilateralStance  bool
	UpperArmAngleDeg *float64
	ShoulderRaised   bool
	ArmAbducted      bool
	LowerArmAngleDeg *float64
	WristAngleDeg    *float64
	WristTwisted     bool
}

// Result is the complete assessment: the final score, its bucket, the
// recommended action, and the six component sub-scores.
type Result struct {
	Score     int       `json:"score"`
	RiskLevel RiskLevel `json:"risk_level"`
	Action    string    `json:"action"`

	TrunkScore    int `json:"trunk_score"`
	NeckScore     int `json:"neck_score"`
	LegScore      int `json:"leg_score"`
	UpperArmScore int `json:"upper_arm_score"`
	LowerArmScore int `json:"lower_arm_score"`
	WristScore    int `json:"wrist_score"`
}

// tableA combines trunk (1-5) × neck (1-3) × legs (1-4).
var tableA = [5][3][4]int{
	{{1, 2, 3, 4}, {1, 2, 3, 4}, {3, 3, 5, 6}},
	{{2, 3, 4, 5}, {3, 4, 5, 6}, {4, 5, 6, 7}},
	{{2, 4, 5, 6}, {4, 5, 6, 7}, {5, 6, 7, 8}},
	{{3, 5, 6, 7}, {5, 6, 7, 8}, {6, 7, 8, 9}},
	{{4, 6, 7, 8}, {6, 7, 8, 9}, {7, 8, 9, 9}},
}

// tableB combines upper arm (1-6) × lower arm (1-2) × wrist (1-3).
var tableB = [6][2][3]int{
	{{1, 2, 2}, {1, 2, 3}},
	{{1, 2, 3}, {2, 3, 4}},
	{{3, 4, 5}, {4, 5, 5}},
	{{4, 5, 5}, {5, 6, 7}},
	{{6, 7, 8}, {7, 8, 8}},
	{{7, 8, 8}, {8, 9, 9}},
}

// tableC combines score A (1-12) × score B (1-12).
var tableC = [12][12]int{
	{1, 1, 1, 2, 3, 3, 4, 5, 6, 7, 7, 7},
	{1, 2, 2, 3, 4, 4, 5, 6, 6, 7, 7, 8},
	{2, 3, 3, 3, 4, 5, 6, 7, 7, 8, 8, 8},
	{3, 4, 4, 4, 5, 6, 7, 8, 8, 9, 9, 9},
	{4, 4, 4, 5, 6, 7, 8, 8, 9, 9, 9, 9},
	{6, 6, 6, 7, 8, 8, 9, 9, 10, 10, 10, 10},
	{7, 7, 7, 8, 9, 9, 9, 10, 10, 11, 11, 11},
	{8, 8, 8, 9, 10, 10, 10, 10, 10, 11, 11, 11},
	{9, 9, 9, 10, 10, 10, 11, 11, 11, 12, 12, 12},
	{10, 10, 10, 11, 11, 11, 11, 12, 12, 12, 12, 12},
	{11, 11, 11, 11, 12, 12, 12, 12, 12, 12, 12, 12},
	{12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12},
}

// Score runs the full REBA pipeline for one posture. It is a pure function
// of the input; there is no temporal state.
func Score(in Input) Result {
	trunk := trunkScore(in)
	neck := neckScore(in)
	legs := legScore(in)
	upper := upperArmScore(in)
	lower := lowerArmScore(in)
	wrist := wristScore(in)

	scoreA := tableA[trunk-1][neck-1][legs-1]
	scoreB := tableB[upper-1][lower-1][wrist-1]
	scoreC := tableC[clampInt(scoreA, 1, 12)-1][clampInt(scoreB, 1, 12)-1]

	final := clampInt(scoreC+activityIncrement, minScore, maxScore)
	level, action := bucket(final)
	return Result{
		Score:         final,
		RiskLevel:     level,
		Action:        action,
		TrunkScore:    trunk,
		NeckScore:     neck,
		LegScore:      legs,
		UpperArmScore: upper,
		LowerArmScore: lower,
		WristScore:    wrist,
	}
}

func trunkScore(in Input) int {
	if in.TrunkFlexionDeg == nil {
		return 1
	}
	angle := math.Abs(*in.TrunkFlexionDeg)
	score := 1
	switch {
	case angle <= 5:
		score = 1
	case angle <= 20:
		score = 2
	case angle <= 60:
		score = 3
	default:
		score = 4
	}
	if in.TrunkTwistDeg != nil && math.Abs(*in.TrunkTwistDeg) > 10 {
		score++
	}
	return clampInt(score, 1, 5)
}

func neckScore(in Input) int {
	if in.NeckFlexionDeg == nil {
		return 1
	}
	score := 1
	if math.Abs(*in.NeckFlexionDeg) > 20 {
		score = 2
	}
	if in.TrunkTwistDeg != nil && math.Abs(*in.TrunkTwistDeg) > 10 {
		score++
	}
	return clampInt(score, 1, 3)
}

func legScore(in Input) int {
	score := 1
	if !in.BilateralStance {
		score = 2
	}
	if in.KneeFlexionDeg != nil {
		knee := math.Abs(*in.KneeFlexionDeg)
		switch {
		case knee > 60:
			score += 2
		case knee > 30:
			score++
		}
	}
	return clampInt(score, 1, 4)
}

func upperArmScore(in Input) int {
	if in.UpperArmAngleDeg == nil {
		return 1
	}
	angle := math.Abs(*in.UpperArmAngleDeg)
	score := 1
	switch {
	case angle <= 20:
		score = 1
	case angle <= 45:
		score = 2
	case angle <= 90:
		score = 3
	default:
		score = 4
	}
	if in.ShoulderRaised {
		score++
	}
	if in.ArmAbducted {
		score++
	}
	return clampInt(score, 1, 6)
}

func lowerArmScore(in Input) int {
	if in.LowerArmAngleDeg == nil {
		return 1
	}
	angle := math.Abs(*in.LowerArmAngleDeg)
	if angle >= 60 && angle <= 100 {
		return 1
	}
	return 2
}

func wristScore(in Input) int {
	if in.WristAngleDeg == nil {
		return 1
	}
	score := 1
	if math.Abs(*in.WristAngleDeg) > 15 {
		score = 2
	}
	if in.WristTwisted {
		score++
	}
	return clampInt(score, 1, 3)
}

func bucket(score int) (RiskLevel, string) {
	switch {
	case score <= 1:
		return RiskNegligible, "no action necessary"
	case score <= 3:
		return RiskLow, "change may be needed"
	case score <= 7:
		return RiskMedium, "further investigation, change soon"
	case score <= 10:
		return RiskHigh, "investigate and implement change"
	default:
		return RiskVeryHigh, "implement change immediately"
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
