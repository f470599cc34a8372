package reba

import (
	"math"

	"github.com/motionlab/stride/internal/domain/model"
)

const (
	radToDeg              = 180.0 / math.Pi
	stanceLevelToleranceM = 0.1
	abductionThresholdDeg = 45.0
)

// FromFrame derives a scoring input from one body-tracking frame. Angles
// whose joints are missing stay nil so the affected segments default to
// their most benign score. The wrist is never tracked by this skeleton, so
// its fields always stay nil.
func FromFrame(frame model.JointFrame) Input {
	var in Input

	if trunk, ok := trunkFlexion(frame); ok {
		in.TrunkFlexionDeg = &trunk
	}
	if twist, ok := trunkTwist(frame); ok {
		in.TrunkTwistDeg = &twist
	}
	if neck, ok := neckFlexion(frame); ok {
		in.NeckFlexionDeg = &neck
	}
	if knee, ok := worstKneeFlexion(frame); ok {
		in.KneeFlexionDeg = &knee
	}
	in.BilateralStance = bilateralStance(frame)
	if upper, abducted, ok := worstUpperArm(frame); ok {
		in.UpperArmAngleDeg = &upper
		in.ArmAbducted = abducted
	}
	if lower, ok := worstLowerArm(frame); ok {
		in.LowerArmAngleDeg = &lower
	}
	return in
}

// trunkFlexion measures the spine vector against vertical in the sagittal
// plane.
func trunkFlexion(frame model.JointFrame) (float64, bool) {
	base, ok := frame.Position(model.JointSpineBase)
	if !ok {
		return 0, false
	}
	top, ok := frame.Position(model.JointSpineShoulder)
	if !ok {
		return 0, false
	}
	spine := top.Sub(base)
	if spine.Magnitude() < 1e-9 {
		return 0, false
	}
	return math.Atan2(spine.Z, spine.Y) * radToDeg, true
}

func trunkTwist(frame model.JointFrame) (float64, bool) {
	ls, ok1 := frame.Position(model.JointLeftShoulder)
	rs, ok2 := frame.Position(model.JointRightShoulder)
	lh, ok3 := frame.Position(model.JointLeftHip)
	rh, ok4 := frame.Position(model.JointRightHip)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return 0, false
	}
	shoulderLine := rs.Sub(ls)
	hipLine := rh.Sub(lh)
	diff := math.Atan2(shoulderLine.Z, shoulderLine.X) - math.Atan2(hipLine.Z, hipLine.X)
	for diff > math.Pi {
		diff -= 2 * math.Pi
	}
	for diff < -math.Pi {
		diff += 2 * math.Pi
	}
	return diff * radToDeg, true
}

// neckFlexion measures the neck-to-head vector against the trunk direction.
func neckFlexion(frame model.JointFrame) (float64, bool) {
	neck, ok := frame.Position(model.JointNeck)
	if !ok {
		return 0, false
	}
	head, ok := frame.Position(model.JointHead)
	if !ok {
		return 0, false
	}
	base, ok := frame.Position(model.JointSpineBase)
	if !ok {
		return 0, false
	}
	up := neck.Sub(base)
	nh := head.Sub(neck)
	return angleBetweenDeg(up, nh), true
}

func worstKneeFlexion(frame model.JointFrame) (float64, bool) {
	left, okL := kneeAngle(frame, model.JointLeftHip, model.JointLeftKnee, model.JointLeftAnkle)
	right, okR := kneeAngle(frame, model.JointRightHip, model.JointRightKnee, model.JointRightAnkle)
	switch {
	case okL && okR:
		return math.Max(left, right), true
	case okL:
		return left, true
	case okR:
		return right, true
	}
	return 0, false
}

func kneeAngle(frame model.JointFrame, hip, knee, ankle model.Joint) (float64, bool) {
	h, ok := frame.Position(hip)
	if !ok {
		return 0, false
	}
	k, ok := frame.Position(knee)
	if !ok {
		return 0, false
	}
	a, ok := frame.Position(ankle)
	if !ok {
		return 0, false
	}
	return 180 - angleBetweenDeg(h.Sub(k), a.Sub(k)), true
}

// bilateralStance holds when both ankles are tracked at comparable height.
func bilateralStance(frame model.JointFrame) bool {
	l, ok := frame.Position(model.JointLeftAnkle)
	if !ok {
		return false
	}
	r, ok := frame.Position(model.JointRightAnkle)
	if !ok {
		return false
	}
	return math.Abs(l.Y-r.Y) < stanceLevelToleranceM
}

// worstUpperArm returns the larger shoulder-to-elbow elevation of the two
// arms, plus whether that arm is abducted in the frontal plane.
func worstUpperArm(frame model.JointFrame) (angle float64, abducted, ok bool) {
	left, abdL, okL := upperArm(frame, model.JointLeftShoulder, model.JointLeftElbow)
	right, abdR, okR := upperArm(frame, model.JointRightShoulder, model.JointRightElbow)
	switch {
	case okL && okR:
		if left >= right {
			return left, abdL, true
		}
		return right, abdR, true
	case okL:
		return left, abdL, true
	case okR:
		return right, abdR, true
	}
	return 0, false, false
}

func upperArm(frame model.JointFrame, shoulder, elbow model.Joint) (angle float64, abducted, ok bool) {
	s, found := frame.Position(shoulder)
	if !found {
		return 0, false, false
	}
	e, found := frame.Position(elbow)
	if !found {
		return 0, false, false
	}
	arm := e.Sub(s)
	down := model.Vec3{Y: -1}
	angle = angleBetweenDeg(arm, down)
	frontal := math.Atan2(math.Abs(arm.X), -arm.Y) * radToDeg
	return angle, frontal > abductionThresholdDeg, true
}

func worstLowerArm(frame model.JointFrame) (float64, bool) {
	left, okL := elbowAngle(frame, model.JointLeftShoulder, model.JointLeftElbow, model.JointLeftWrist)
	right, okR := elbowAngle(frame, model.JointRightShoulder, model.JointRightElbow, model.JointRightWrist)
	switch {
	case okL && okR:
		// The arm further from the 60-100° ideal band dominates.
		if bandDistance(left) >= bandDistance(right) {
			return left, true
		}
		return right, true
	case okL:
		return left, true
	case okR:
		return right, true
	}
	return 0, false
}

func elbowAngle(frame model.JointFrame, shoulder, elbow, wrist model.Joint) (float64, bool) {
	s, ok := frame.Position(shoulder)
	if !ok {
		return 0, false
	}
	e, ok := frame.Position(elbow)
	if !ok {
		return 0, false
	}
	w, ok := frame.Position(wrist)
	if !ok {
		return 0, false
	}
	return 180 - angleBetweenDeg(s.Sub(e), w.Sub(e)), true
}

func bandDistance(angle float64) float64 {
	switch {
	case angle < 60:
		return 60 - angle
	case angle > 100:
		return angle - 100
	}
	return 0
}

func angleBetweenDeg(a, b model.Vec3) float64 {
	ma, mb := a.Magnitude(), b.Magnitude()
	if ma < 1e-9 || mb < 1e-9 {
		return 0
	}
	cos := a.Dot(b) / (ma * mb)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * radToDeg
}
