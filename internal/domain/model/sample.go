// Package model contains domain models passed between layers.
package model

import "math"

// Vec3 is a 3-D vector. Units depend on context: joint positions are in
// meters, user acceleration in g, rotation rate in rad/s.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Magnitude returns the Euclidean norm.
func (v Vec3) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Joint identifies a tracked body joint.
type Joint string

// Joints delivered by the body-tracking collaborator. Positions are in meters
// in a right-handed frame: X lateral (ML), Y vertical, Z anterior-posterior (AP).
const (
	JointRoot          Joint = "root"
	JointSpineBase     Joint = "spine_base"
	JointSpineShoulder Joint = "spine_shoulder"
	JointNeck          Joint = "neck"
	JointHead          Joint = "head"
	JointLeftHip       Joint = "left_hip"
	JointRightHip      Joint = "right_hip"
	JointLeftKnee      Joint = "left_knee"
	JointRightKnee     Joint = "right_knee"
	JointLeftAnkle     Joint = "left_ankle"
	JointRightAnkle    Joint = "right_ankle"
	JointLeftShoulder  Joint = "left_shoulder"
	JointRightShoulder Joint = "right_shoulder"
	JointLeftElbow     Joint = "left_elbow"
	JointRightElbow    Joint = "right_elbow"
	JointLeftWrist     Joint = "left_wrist"
	JointRightWrist    Joint = "right_wrist"
)

// JointFrame is one body-tracking frame: named joint positions plus a
// monotonic timestamp in seconds.
type JointFrame struct {
	Timestamp float64        `json:"timestamp"`
	Joints    map[Joint]Vec3 `json:"joints"`
}

// Position looks up a joint position. The second return reports presence;
// callers apply their own per-site default policy on absence.
func (f JointFrame) Position(j Joint) (Vec3, bool) {
	p, ok := f.Joints[j]
	return p, ok
}

// IMUSample is one inertial sample from the motion sensor collaborator.
// UserAccel is gravity-removed acceleration in g, RotationRate in rad/s,
// and Yaw/Roll/Pitch the device orientation in radians.
type IMUSample struct {
	Timestamp    float64 `json:"timestamp"`
	UserAccel    Vec3    `json:"user_accel"`
	RotationRate Vec3    `json:"rotation_rate"`
	Yaw          float64 `json:"yaw"`
	Roll         float64 `json:"roll"`
	Pitch        float64 `json:"pitch"`
}
