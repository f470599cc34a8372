// Package rom extracts per-frame joint angles and accumulates session-wide
// range-of-motion summaries.
package rom

import (
	"math"

	"github.com/motionlab/stride/internal/domain/model"
)

const (
	radToDeg          = 180.0 / math.Pi
	asymmetryFloorDeg = 0.1
)

// FrameAngles are the joint angles extracted from a single frame, in degrees.
// Any angle whose required joints are absent defaults to 0.
type FrameAngles struct {
	HipFlexionLeftDeg   float64 `json:"hip_flexion_left_deg"`
	HipFlexionRightDeg  float64 `json:"hip_flexion_right_deg"`
	KneeFlexionLeftDeg  float64 `json:"knee_flexion_left_deg"`
	KneeFlexionRightDeg float64 `json:"knee_flexion_right_deg"`
	PelvicTiltDeg       float64 `json:"pelvic_tilt_deg"`
	TrunkRotationDeg    float64 `json:"trunk_rotation_deg"`
	ArmSwingLeftDeg     float64 `json:"arm_swing_left_deg"`
	ArmSwingRightDeg    float64 `json:"arm_swing_right_deg"`
}

// SessionSummary reports the observed motion range per angle series plus the
// arm-swing asymmetry percentage.
type SessionSummary struct {
	HipFlexionLeftRangeDeg   float64 `json:"hip_flexion_left_range_deg"`
	HipFlexionRightRangeDeg  float64 `json:"hip_flexion_right_range_deg"`
	KneeFlexionLeftRangeDeg  float64 `json:"knee_flexion_left_range_deg"`
	KneeFlexionRightRangeDeg float64 `json:"knee_flexion_right_range_deg"`
	PelvicTiltRangeDeg       float64 `json:"pelvic_tilt_range_deg"`
	TrunkRotationRangeDeg    float64 `json:"trunk_rotation_range_deg"`
	ArmSwingLeftRangeDeg     float64 `json:"arm_swing_left_range_deg"`
	ArmSwingRightRangeDeg    float64 `json:"arm_swing_right_range_deg"`
	ArmSwingAsymmetryPct     float64 `json:"arm_swing_asymmetry_pct"`
}

// Analyzer accumulates eight parallel angle histories. Angle extraction
// itself is stateless; only the session accumulation carries state.
type Analyzer struct {
	hipL, hipR   []float64
	kneeL, kneeR []float64
	pelvic       []float64
	trunkRot     []float64
	armL, armR   []float64
}

// NewAnalyzer creates a range-of-motion analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// ExtractAngles computes the per-frame joint angles without mutating state.
func ExtractAngles(frame model.JointFrame) FrameAngles {
	return FrameAngles{
		HipFlexionLeftDeg:   hipFlexion(frame, model.JointLeftHip, model.JointLeftKnee),
		HipFlexionRightDeg:  hipFlexion(frame, model.JointRightHip, model.JointRightKnee),
		KneeFlexionLeftDeg:  kneeFlexion(frame, model.JointLeftHip, model.JointLeftKnee, model.JointLeftAnkle),
		KneeFlexionRightDeg: kneeFlexion(frame, model.JointRightHip, model.JointRightKnee, model.JointRightAnkle),
		PelvicTiltDeg:       pelvicTilt(frame),
		TrunkRotationDeg:    trunkRotation(frame),
		ArmSwingLeftDeg:     armSwing(frame, model.JointLeftShoulder, model.JointLeftWrist),
		ArmSwingRightDeg:    armSwing(frame, model.JointRightShoulder, model.JointRightWrist),
	}
}

// RecordFrame extracts angles and appends them to the session histories.
func (a *Analyzer) RecordFrame(frame model.JointFrame) FrameAngles {
	angles := ExtractAngles(frame)
	a.hipL = append(a.hipL, angles.HipFlexionLeftDeg)
	a.hipR = append(a.hipR, angles.HipFlexionRightDeg)
	a.kneeL = append(a.kneeL, angles.KneeFlexionLeftDeg)
	a.kneeR = append(a.kneeR, angles.KneeFlexionRightDeg)
	a.pelvic = append(a.pelvic, angles.PelvicTiltDeg)
	a.trunkRot = append(a.trunkRot, angles.TrunkRotationDeg)
	a.armL = append(a.armL, angles.ArmSwingLeftDeg)
	a.armR = append(a.armR, angles.ArmSwingRightDeg)
	return angles
}

// FrameCount returns the number of recorded frames.
func (a *Analyzer) FrameCount() int {
	return len(a.hipL)
}

// Summary reports max-min range per series and arm-swing asymmetry. The
// asymmetry compares averaged per-side swing magnitudes, not per-stride
// peak-to-peak values.
func (a *Analyzer) Summary() SessionSummary {
	s := SessionSummary{
		HipFlexionLeftRangeDeg:   valueRange(a.hipL),
		HipFlexionRightRangeDeg:  valueRange(a.hipR),
		KneeFlexionLeftRangeDeg:  valueRange(a.kneeL),
		KneeFlexionRightRangeDeg: valueRange(a.kneeR),
		PelvicTiltRangeDeg:       valueRange(a.pelvic),
		TrunkRotationRangeDeg:    valueRange(a.trunkRot),
		ArmSwingLeftRangeDeg:     valueRange(a.armL),
		ArmSwingRightRangeDeg:    valueRange(a.armR),
	}

	left := meanAbs(a.armL)
	right := meanAbs(a.armR)
	if mean := (left + right) / 2; mean >= asymmetryFloorDeg {
		s.ArmSwingAsymmetryPct = math.Abs(left-right) / mean * 100
	}
	return s
}

// Reset returns the analyzer to its construction-time state.
func (a *Analyzer) Reset() {
	a.hipL, a.hipR = a.hipL[:0], a.hipR[:0]
	a.kneeL, a.kneeR = a.kneeL[:0], a.kneeR[:0]
	a.pelvic = a.pelvic[:0]
	a.trunkRot = a.trunkRot[:0]
	a.armL, a.armR = a.armL[:0], a.armR[:0]
}

// hipFlexion is the sagittal-plane angle of the thigh vector against
// vertical: positive when the knee travels anterior of the hip.
func hipFlexion(frame model.JointFrame, hip, knee model.Joint) float64 {
	h, ok := frame.Position(hip)
	if !ok {
		return 0
	}
	k, ok := frame.Position(knee)
	if !ok {
		return 0
	}
	thigh := k.Sub(h)
	return math.Atan2(thigh.Z, -thigh.Y) * radToDeg
}

// kneeFlexion is 180° minus the thigh/shank inter-segment angle.
func kneeFlexion(frame model.JointFrame, hip, knee, ankle model.Joint) float64 {
	h, ok := frame.Position(hip)
	if !ok {
		return 0
	}
	k, ok := frame.Position(knee)
	if !ok {
		return 0
	}
	an, ok := frame.Position(ankle)
	if !ok {
		return 0
	}
	return 180 - vectorAngleDeg(h.Sub(k), an.Sub(k))
}

// pelvicTilt is the frontal-plane inclination of the inter-hip line.
func pelvicTilt(frame model.JointFrame) float64 {
	l, ok := frame.Position(model.JointLeftHip)
	if !ok {
		return 0
	}
	r, ok := frame.Position(model.JointRightHip)
	if !ok {
		return 0
	}
	line := r.Sub(l)
	if math.Abs(line.X) < 1e-9 && math.Abs(line.Y) < 1e-9 {
		return 0
	}
	return math.Atan2(line.Y, math.Abs(line.X)) * radToDeg
}

// trunkRotation is the transverse-plane angle between the shoulder line and
// the hip line.
func trunkRotation(frame model.JointFrame) float64 {
	ls, ok := frame.Position(model.JointLeftShoulder)
	if !ok {
		return 0
	}
	rs, ok := frame.Position(model.JointRightShoulder)
	if !ok {
		return 0
	}
	lh, ok := frame.Position(model.JointLeftHip)
	if !ok {
		return 0
	}
	rh, ok := frame.Position(model.JointRightHip)
	if !ok {
		return 0
	}
	shoulderLine := rs.Sub(ls)
	hipLine := rh.Sub(lh)
	shoulderYaw := math.Atan2(shoulderLine.Z, shoulderLine.X)
	hipYaw := math.Atan2(hipLine.Z, hipLine.X)
	diff := shoulderYaw - hipYaw
	for diff > math.Pi {
		diff -= 2 * math.Pi
	}
	for diff < -math.Pi {
		diff += 2 * math.Pi
	}
	return diff * radToDeg
}

// armSwing is the sagittal-plane angle of the arm vector against vertical.
func armSwing(frame model.JointFrame, shoulder, wrist model.Joint) float64 {
	s, ok := frame.Position(shoulder)
	if !ok {
		return 0
	}
	w, ok := frame.Position(wrist)
	if !ok {
		return 0
	}
	arm := w.Sub(s)
	return math.Atan2(arm.Z, -arm.Y) * radToDeg
}

// vectorAngleDeg is the angle between two vectors in degrees, 0 for
// degenerate inputs.
func vectorAngleDeg(a, b model.Vec3) float64 {
	ma, mb := a.Magnitude(), b.Magnitude()
	if ma < 1e-9 || mb < 1e-9 {
		return 0
	}
	cos := a.Dot(b) / (ma * mb)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * radToDeg
}

func valueRange(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	minV, maxV := xs[0], xs[0]
	for _, v := range xs {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	return maxV - minV
}

func meanAbs(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range xs {
		sum += math.Abs(v)
	}
	return sum / float64(len(xs))
}
