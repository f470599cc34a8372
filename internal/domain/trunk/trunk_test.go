package trunk_test

import (
	"math"
	"testing"

	"github.com/motionlab/stride/internal/domain/model"
	"github.com/motionlab/stride/internal/domain/trunk"
	. "github.com/smartystreets/goconvey/convey"
)

const testRateHz = 50.0

func recordTrace(a *trunk.Analyzer, start, duration float64, gen func(t float64) model.IMUSample) {
	n := int(duration * testRateHz)
	for i := 0; i <= n; i++ {
		t := start + float64(i)/testRateHz
		s := gen(t)
		s.Timestamp = t
		a.Record(s)
	}
}

func TestTurnDetection(t *testing.T) {
	Convey("Given a trunk analyzer", t, func() {
		a := trunk.NewAnalyzer()

		Convey("When yaw ramps through 90 degrees in one second", func() {
			recordTrace(a, 0, 2, func(t float64) model.IMUSample {
				yaw := 0.0
				if t > 0.5 {
					yaw = math.Min(math.Pi/2, (t-0.5)*math.Pi/2)
				}
				return model.IMUSample{Yaw: yaw}
			})

			Convey("Then one turn is detected", func() {
				turns := a.Turns()
				So(len(turns), ShouldBeGreaterThanOrEqualTo, 1)
				So(math.Abs(turns[0].AngleRad), ShouldBeGreaterThanOrEqualTo, math.Pi/4)
			})
		})

		Convey("When yaw wobbles below the threshold", func() {
			recordTrace(a, 0, 5, func(t float64) model.IMUSample {
				return model.IMUSample{Yaw: 0.3 * math.Sin(2*math.Pi*0.5*t)}
			})

			Convey("Then no turn is detected", func() {
				So(len(a.Turns()), ShouldEqual, 0)
			})
		})

		Convey("When Reset is called after a turn", func() {
			recordTrace(a, 0, 2, func(t float64) model.IMUSample {
				return model.IMUSample{Yaw: t * math.Pi / 2}
			})
			a.Reset()

			Convey("Then turns and metrics are cleared", func() {
				So(len(a.Turns()), ShouldEqual, 0)
				So(a.Analyze(), ShouldResemble, trunk.Metrics{})
			})
		})
	})
}

func TestAnalyze(t *testing.T) {
	Convey("Given a trunk analyzer", t, func() {
		a := trunk.NewAnalyzer()

		Convey("When fewer than 30 samples are buffered", func() {
			recordTrace(a, 0, 0.4, func(float64) model.IMUSample { return model.IMUSample{} })
			So(a.Analyze(), ShouldResemble, trunk.Metrics{})
		})

		Convey("When the trace holds a steady 10 degree lateral flexion", func() {
			roll := 10 * math.Pi / 180
			recordTrace(a, 0, 2, func(float64) model.IMUSample {
				return model.IMUSample{Roll: roll}
			})
			m := a.Analyze()

			Convey("Then mean lateral flexion reports 10 degrees", func() {
				So(m.MeanLateralFlexionDeg, ShouldAlmostEqual, 10, 0.1)
			})
		})

		Convey("When rotation favors one direction", func() {
			recordTrace(a, 0, 4, func(t float64) model.IMUSample {
				rate := 0.5 * math.Sin(2*math.Pi*0.5*t)
				if rate > 0 {
					rate *= 2 // leftward rotation twice as fast
				}
				return model.IMUSample{RotationRate: model.Vec3{Y: rate}}
			})
			m := a.Analyze()

			Convey("Then rotation asymmetry is substantial", func() {
				So(m.RotationAsymmetryPct, ShouldBeGreaterThan, 20)
			})
			Convey("Then the peak yaw rate reflects the faster side", func() {
				So(m.PeakYawRateDPS, ShouldAlmostEqual, 1.0*180/math.Pi, 3)
			})
		})

		Convey("When the yaw-rate trace is periodic at stride frequency", func() {
			recordTrace(a, 0, 5, func(t float64) model.IMUSample {
				return model.IMUSample{RotationRate: model.Vec3{Y: 0.5 * math.Sin(2*math.Pi*t)}}
			})
			m := a.Analyze()

			Convey("Then the regularity index approaches 1", func() {
				So(m.RegularityIndex, ShouldBeGreaterThan, 0.8)
				So(m.RegularityIndex, ShouldBeLessThanOrEqualTo, 1.0)
			})
		})

		Convey("When the yaw-rate trace is aperiodic noise", func() {
			recordTrace(a, 0, 5, func(t float64) model.IMUSample {
				// Deterministic pseudo-noise from incommensurate tones.
				v := 0.3*math.Sin(2*math.Pi*1.37*t) + 0.3*math.Sin(2*math.Pi*2.93*t)
				return model.IMUSample{RotationRate: model.Vec3{Y: v}}
			})
			m := a.Analyze()

			Convey("Then regularity stays well below the periodic case", func() {
				So(m.RegularityIndex, ShouldBeLessThan, 0.8)
			})
		})
	})
}
