// Package replay generates synthetic capture streams for exercising a
// running service without hardware: a walking subject with sinusoidal step
// impacts, circular postural sway, and an optional posture decline that
// drives the fatigue trends.
package replay

import (
	"math"
	"math/rand"

	"github.com/motionlab/stride/internal/domain/model"
)

// Generator configuration constants.
const (
	defaultFrameRateHz = 30.0
	defaultIMURateHz   = 100.0
	defaultCadenceSPM  = 110.0
	defaultStepImpactG = 0.35

	swayRadiusM    = 0.008
	swayFreqHz     = 0.4
	strideYawRad   = 0.05
	noiseAccelG    = 0.02
	hipWidthM      = 0.18
	shoulderWidthM = 0.20
	legLengthM     = 0.85
	spineLengthM   = 0.55
)

// Profile shapes the synthetic subject.
type Profile struct {
	FrameRateHz float64
	IMURateHz   float64
	CadenceSPM  float64
	StepImpactG float64
	SpeedMS     float64

	// PostureDeclineDegPerMin tilts the trunk progressively to simulate a
	// fatiguing subject. Zero keeps the subject upright.
	PostureDeclineDegPerMin float64

	// Seed fixes the noise source for reproducible runs.
	Seed int64
}

// DefaultProfile is a healthy walking subject.
func DefaultProfile() Profile {
	return Profile{
		FrameRateHz: defaultFrameRateHz,
		IMURateHz:   defaultIMURateHz,
		CadenceSPM:  defaultCadenceSPM,
		StepImpactG: defaultStepImpactG,
		SpeedMS:     1.2,
	}
}

// Generator produces deterministic frame and IMU streams on a shared
// capture clock.
type Generator struct {
	profile Profile
	rng     *rand.Rand

	frameClock float64
	imuClock   float64
}

// NewGenerator creates a generator, filling zero-valued profile rates with
// defaults.
func NewGenerator(p Profile) *Generator {
	if p.FrameRateHz <= 0 {
		p.FrameRateHz = defaultFrameRateHz
	}
	if p.IMURateHz <= 0 {
		p.IMURateHz = defaultIMURateHz
	}
	if p.CadenceSPM <= 0 {
		p.CadenceSPM = defaultCadenceSPM
	}
	if p.StepImpactG <= 0 {
		p.StepImpactG = defaultStepImpactG
	}
	return &Generator{
		profile: p,
		rng:     rand.New(rand.NewSource(p.Seed)),
	}
}

// NextFrames produces the next n body-tracking frames.
func (g *Generator) NextFrames(n int) []model.JointFrame {
	frames := make([]model.JointFrame, 0, n)
	dt := 1.0 / g.profile.FrameRateHz
	for i := 0; i < n; i++ {
		frames = append(frames, g.frameAt(g.frameClock))
		g.frameClock += dt
	}
	return frames
}

// NextIMU produces the next n inertial samples.
func (g *Generator) NextIMU(n int) []model.IMUSample {
	samples := make([]model.IMUSample, 0, n)
	dt := 1.0 / g.profile.IMURateHz
	for i := 0; i < n; i++ {
		samples = append(samples, g.imuAt(g.imuClock))
		g.imuClock += dt
	}
	return samples
}

// Clock returns the later of the two stream clocks.
func (g *Generator) Clock() float64 {
	return math.Max(g.frameClock, g.imuClock)
}

// frameAt synthesizes a skeleton: the root advances at walking speed while
// tracing a small sway circle, and the trunk leans by the configured
// decline.
func (g *Generator) frameAt(t float64) model.JointFrame {
	swayPhase := 2 * math.Pi * swayFreqHz * t
	rootX := swayRadiusM * math.Cos(swayPhase)
	rootZ := g.profile.SpeedMS*t + swayRadiusM*math.Sin(swayPhase)

	leanRad := g.profile.PostureDeclineDegPerMin * (t / 60) * math.Pi / 180
	stridePhase := 2 * math.Pi * g.profile.CadenceSPM / 60 / 2 * t // full stride = 2 steps

	root := model.Vec3{X: rootX, Y: 0.95, Z: rootZ}
	spineTopY := root.Y + spineLengthM*math.Cos(leanRad)
	spineTopZ := root.Z + spineLengthM*math.Sin(leanRad)

	swing := 0.25 * math.Sin(stridePhase) // thigh excursion, rad

	joints := map[model.Joint]model.Vec3{
		model.JointRoot:          root,
		model.JointSpineBase:     {X: rootX, Y: root.Y + 0.05, Z: root.Z},
		model.JointSpineShoulder: {X: rootX, Y: spineTopY, Z: spineTopZ},
		model.JointNeck:          {X: rootX, Y: spineTopY + 0.08, Z: spineTopZ},
		model.JointHead:          {X: rootX, Y: spineTopY + 0.22, Z: spineTopZ},

		model.JointLeftHip:  {X: rootX - hipWidthM/2, Y: root.Y, Z: root.Z},
		model.JointRightHip: {X: rootX + hipWidthM/2, Y: root.Y, Z: root.Z},

		model.JointLeftShoulder:  {X: rootX - shoulderWidthM/2, Y: spineTopY, Z: spineTopZ},
		model.JointRightShoulder: {X: rootX + shoulderWidthM/2, Y: spineTopY, Z: spineTopZ},
	}

	// Legs: alternating thigh swing about the hip.
	joints[model.JointLeftKnee] = legJoint(joints[model.JointLeftHip], swing, legLengthM/2)
	joints[model.JointRightKnee] = legJoint(joints[model.JointRightHip], -swing, legLengthM/2)
	joints[model.JointLeftAnkle] = legJoint(joints[model.JointLeftKnee], swing/2, legLengthM/2)
	joints[model.JointRightAnkle] = legJoint(joints[model.JointRightKnee], -swing/2, legLengthM/2)

	// Arms: counter-swing against the legs.
	armSwing := 0.35 * math.Sin(stridePhase+math.Pi)
	joints[model.JointLeftElbow] = legJoint(joints[model.JointLeftShoulder], armSwing, 0.28)
	joints[model.JointRightElbow] = legJoint(joints[model.JointRightShoulder], -armSwing, 0.28)
	joints[model.JointLeftWrist] = legJoint(joints[model.JointLeftElbow], armSwing, 0.26)
	joints[model.JointRightWrist] = legJoint(joints[model.JointRightElbow], -armSwing, 0.26)

	return model.JointFrame{Timestamp: t, Joints: joints}
}

// legJoint hangs a segment of the given length below origin, rotated
// sagittally by angle.
func legJoint(origin model.Vec3, angle, length float64) model.Vec3 {
	return model.Vec3{
		X: origin.X,
		Y: origin.Y - length*math.Cos(angle),
		Z: origin.Z + length*math.Sin(angle),
	}
}

// imuAt synthesizes an inertial sample: a rectified sinusoid at step
// frequency for vertical impacts, plus band-limited noise and a gentle yaw
// oscillation per stride.
func (g *Generator) imuAt(t float64) model.IMUSample {
	stepFreq := g.profile.CadenceSPM / 60
	stepPhase := 2 * math.Pi * stepFreq * t

	vertical := g.profile.StepImpactG * math.Abs(math.Sin(stepPhase/2))
	yaw := strideYawRad * math.Sin(stepPhase/2)
	yawRate := strideYawRad * math.Pi * stepFreq * math.Cos(stepPhase/2)

	return model.IMUSample{
		Timestamp: t,
		UserAccel: model.Vec3{
			X: g.noise(),
			Y: vertical + g.noise(),
			Z: g.noise(),
		},
		RotationRate: model.Vec3{Y: yawRate},
		Yaw:          yaw,
		Roll:         g.noise() / 10,
		Pitch:        0,
	}
}

func (g *Generator) noise() float64 {
	return (g.rng.Float64()*2 - 1) * noiseAccelG
}
