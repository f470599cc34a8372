package reba_test

import (
	"testing"

	"github.com/motionlab/stride/internal/domain/model"
	"github.com/motionlab/stride/internal/domain/reba"
	. "github.com/smartystreets/goconvey/convey"
)

func f(v float64) *float64 { return &v }

func TestScore(t *testing.T) {
	Convey("Given the REBA scorer", t, func() {
		Convey("When the posture is neutral standing", func() {
			res := reba.Score(reba.Input{
				TrunkFlexionDeg:  f(2),
				NeckFlexionDeg:   f(5),
				KneeFlexionDeg:   f(10),
				BilateralStance:  true,
				UpperArmAngleDeg: f(10),
				LowerArmAngleDeg: f(80),
			})

			Convey("Then the score stays in the low band", func() {
				So(res.Score, ShouldBeLessThanOrEqualTo, 3)
				So(res.RiskLevel, ShouldEqual, reba.RiskLow)
			})
			Convey("Then every sub-score is minimal", func() {
				So(res.TrunkScore, ShouldEqual, 1)
				So(res.NeckScore, ShouldEqual, 1)
				So(res.LegScore, ShouldEqual, 1)
				So(res.UpperArmScore, ShouldEqual, 1)
				So(res.LowerArmScore, ShouldEqual, 1)
				So(res.WristScore, ShouldEqual, 1)
			})
		})

		Convey("When no angles are tracked at all", func() {
			res := reba.Score(reba.Input{BilateralStance: true})

			Convey("Then segments default benign and only the activity bump remains", func() {
				So(res.Score, ShouldEqual, 2)
				So(res.RiskLevel, ShouldEqual, reba.RiskLow)
			})
		})

		Convey("When the posture is maximally awkward", func() {
			res := reba.Score(reba.Input{
				TrunkFlexionDeg:  f(80),
				TrunkTwistDeg:    f(30),
				NeckFlexionDeg:   f(40),
				KneeFlexionDeg:   f(90),
				BilateralStance:  false,
				UpperArmAngleDeg: f(150),
				ShoulderRaised:   true,
				ArmAbducted:      true,
				LowerArmAngleDeg: f(10),
				WristAngleDeg:    f(40),
				WristTwisted:     true,
			})

			Convey("Then the score saturates inside the bounds", func() {
				So(res.Score, ShouldBeGreaterThanOrEqualTo, 11)
				So(res.Score, ShouldBeLessThanOrEqualTo, 15)
				So(res.RiskLevel, ShouldEqual, reba.RiskVeryHigh)
			})
			Convey("Then sub-scores hit their caps", func() {
				So(res.TrunkScore, ShouldEqual, 5)
				So(res.NeckScore, ShouldEqual, 3)
				So(res.LegScore, ShouldEqual, 4)
				So(res.UpperArmScore, ShouldEqual, 6)
				So(res.WristScore, ShouldEqual, 3)
			})
		})

		Convey("When a moderate stoop is scored", func() {
			res := reba.Score(reba.Input{
				TrunkFlexionDeg:  f(35),
				NeckFlexionDeg:   f(25),
				KneeFlexionDeg:   f(40),
				BilateralStance:  true,
				UpperArmAngleDeg: f(60),
				LowerArmAngleDeg: f(120),
			})

			Convey("Then the score lands in the medium-to-high band", func() {
				So(res.Score, ShouldBeGreaterThan, 3)
				So(res.Score, ShouldBeLessThanOrEqualTo, 10)
			})
		})

		Convey("When the same input is scored twice", func() {
			in := reba.Input{TrunkFlexionDeg: f(25), NeckFlexionDeg: f(10), BilateralStance: true}

			Convey("Then the result is identical", func() {
				So(reba.Score(in), ShouldResemble, reba.Score(in))
			})
		})
	})
}

func TestFromFrame(t *testing.T) {
	Convey("Given frame-to-input derivation", t, func() {
		upright := model.JointFrame{
			Joints: map[model.Joint]model.Vec3{
				model.JointSpineBase:     {Y: 0.95},
				model.JointSpineShoulder: {Y: 1.45},
				model.JointNeck:          {Y: 1.50},
				model.JointHead:          {Y: 1.65},
				model.JointLeftHip:       {X: -0.1, Y: 0.9},
				model.JointRightHip:      {X: 0.1, Y: 0.9},
				model.JointLeftShoulder:  {X: -0.15, Y: 1.45},
				model.JointRightShoulder: {X: 0.15, Y: 1.45},
				model.JointLeftElbow:     {X: -0.15, Y: 1.15},
				model.JointRightElbow:    {X: 0.15, Y: 1.15},
				model.JointLeftWrist:     {X: -0.15, Y: 1.15, Z: 0.26},
				model.JointRightWrist:    {X: 0.15, Y: 1.15, Z: 0.26},
				model.JointLeftKnee:      {X: -0.1, Y: 0.5},
				model.JointRightKnee:     {X: 0.1, Y: 0.5},
				model.JointLeftAnkle:     {X: -0.1, Y: 0.1},
				model.JointRightAnkle:    {X: 0.1, Y: 0.1},
			},
		}

		Convey("When the skeleton stands upright", func() {
			in := reba.FromFrame(upright)

			Convey("Then derived angles are benign", func() {
				So(in.TrunkFlexionDeg, ShouldNotBeNil)
				So(*in.TrunkFlexionDeg, ShouldAlmostEqual, 0, 0.1)
				So(in.BilateralStance, ShouldBeTrue)
				So(*in.LowerArmAngleDeg, ShouldAlmostEqual, 90, 0.5)
			})
			Convey("Then the untracked wrist stays nil", func() {
				So(in.WristAngleDeg, ShouldBeNil)
			})
			Convey("Then scoring the derived input is low risk", func() {
				res := reba.Score(in)
				So(res.Score, ShouldBeLessThanOrEqualTo, 3)
			})
		})

		Convey("When one foot is lifted", func() {
			frame := upright
			frame.Joints = map[model.Joint]model.Vec3{}
			for k, v := range upright.Joints {
				frame.Joints[k] = v
			}
			frame.Joints[model.JointLeftAnkle] = model.Vec3{X: -0.1, Y: 0.4}
			in := reba.FromFrame(frame)

			Convey("Then the stance is unilateral", func() {
				So(in.BilateralStance, ShouldBeFalse)
			})
		})

		Convey("When the frame has no joints", func() {
			in := reba.FromFrame(model.JointFrame{Joints: map[model.Joint]model.Vec3{}})

			Convey("Then every optional angle is nil", func() {
				So(in.TrunkFlexionDeg, ShouldBeNil)
				So(in.NeckFlexionDeg, ShouldBeNil)
				So(in.UpperArmAngleDeg, ShouldBeNil)
				So(in.LowerArmAngleDeg, ShouldBeNil)
				So(in.KneeFlexionDeg, ShouldBeNil)
				So(in.BilateralStance, ShouldBeFalse)
			})
		})
	})
}
