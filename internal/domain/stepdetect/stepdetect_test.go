package stepdetect

import (
	"math"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

const testRateHz = 100.0

// stepSignal evaluates a walking-like vertical acceleration trace: half-sine
// impact bursts of the given magnitude and width, one per interval.
func stepSignal(t, firstStep, interval, width, magnitude float64, count int) float64 {
	for k := 0; k < count; k++ {
		start := firstStep + float64(k)*interval
		if t >= start && t <= start+width {
			return magnitude * math.Sin(math.Pi*(t-start)/width)
		}
	}
	return 0
}

// feed runs the detector over the signal from 0 to duration, returning the
// accepted step events.
func feed(d *Detector, duration, firstStep, interval, width, magnitude float64, count int) []StepEvent {
	var events []StepEvent
	n := int(duration * testRateHz)
	for i := 0; i <= n; i++ {
		t := float64(i) / testRateHz
		if ev, ok := d.Process(stepSignal(t, firstStep, interval, width, magnitude, count), t); ok {
			events = append(events, ev)
		}
	}
	return events
}

func TestNewDetector(t *testing.T) {
	convey.Convey("Given detector construction", t, func() {
		convey.Convey("When the sample rate is valid", func() {
			d, err := NewDetector(testRateHz)
			convey.So(err, convey.ShouldBeNil)
			convey.So(d, convey.ShouldNotBeNil)
		})

		convey.Convey("When the sample rate is non-positive", func() {
			_, err := NewDetector(0)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the cutoff would exceed Nyquist", func() {
			_, err := NewDetector(8)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestStepDetection(t *testing.T) {
	convey.Convey("Given a detector at 100 Hz", t, func() {
		d, err := NewDetector(testRateHz)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When 10 impacts of 0.3 g arrive every 0.5 s", func() {
			events := feed(d, 5.5, 0.25, 0.5, 0.2, 0.3, 10)

			convey.Convey("Then exactly 10 steps are detected", func() {
				convey.So(d.StepCount(), convey.ShouldEqual, 10)
				convey.So(len(events), convey.ShouldEqual, 10)
			})
			convey.Convey("Then cadence lands within 5% of 120 spm", func() {
				cadence := d.CurrentCadenceSPM()
				convey.So(cadence, convey.ShouldBeGreaterThan, 120*0.95)
				convey.So(cadence, convey.ShouldBeLessThan, 120*1.05)
			})
			convey.Convey("Then impact magnitudes survive the low-pass mostly intact", func() {
				for _, ev := range events {
					convey.So(ev.ImpactMagnitudeG, convey.ShouldBeGreaterThan, 0.15)
					convey.So(ev.ImpactMagnitudeG, convey.ShouldBeLessThan, 0.35)
				}
			})
		})

		convey.Convey("When impacts stay below the 0.08 g floor", func() {
			feed(d, 3, 0.25, 0.5, 0.2, 0.05, 5)

			convey.Convey("Then nothing is detected", func() {
				convey.So(d.StepCount(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When two impacts land inside the 250 ms refractory window", func() {
			n := int(2 * testRateHz)
			for i := 0; i <= n; i++ {
				t := float64(i) / testRateHz
				v := stepSignal(t, 0.5, 0.15, 0.1, 0.3, 2)
				d.Process(v, t)
			}

			convey.Convey("Then only the first is accepted", func() {
				convey.So(d.StepCount(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When fewer than 2 steps are in the cadence window", func() {
			feed(d, 1, 0.25, 0.5, 0.2, 0.3, 1)

			convey.Convey("Then cadence reports 0", func() {
				convey.So(d.CurrentCadenceSPM(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When Reset is called after a walk", func() {
			feed(d, 3, 0.25, 0.5, 0.2, 0.3, 5)
			d.Reset()

			convey.Convey("Then all state is cleared", func() {
				convey.So(d.StepCount(), convey.ShouldEqual, 0)
				convey.So(d.CurrentCadenceSPM(), convey.ShouldEqual, 0)
			})
		})
	})
}

func TestValidateExternalStep(t *testing.T) {
	convey.Convey("Given a detector with a buffered walk", t, func() {
		d, err := NewDetector(testRateHz)
		convey.So(err, convey.ShouldBeNil)
		events := feed(d, 3, 0.25, 0.5, 0.2, 0.3, 5)
		convey.So(len(events), convey.ShouldBeGreaterThan, 0)

		convey.Convey("When a claimed step aligns with a detected impact", func() {
			conf := d.ValidateExternalStep(events[len(events)-1].Timestamp)

			convey.Convey("Then confidence is high", func() {
				convey.So(conf, convey.ShouldBeGreaterThan, 0.5)
				convey.So(conf, convey.ShouldBeLessThanOrEqualTo, 1.0)
			})
		})

		convey.Convey("When a claimed step falls in a quiet stretch", func() {
			conf := d.ValidateExternalStep(events[len(events)-1].Timestamp + 0.25)

			convey.Convey("Then confidence is low", func() {
				convey.So(conf, convey.ShouldBeLessThan, 0.5)
			})
		})

		convey.Convey("When a claimed step is outside the buffer entirely", func() {
			conf := d.ValidateExternalStep(1000)

			convey.Convey("Then confidence is 0", func() {
				convey.So(conf, convey.ShouldEqual, 0)
			})
		})
	})
}

func TestLowPassFilter(t *testing.T) {
	convey.Convey("Given a 5 Hz Butterworth biquad at 100 Hz", t, func() {
		f, err := newLowPass(5, testRateHz)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When a DC signal passes through", func() {
			var out float64
			for i := 0; i < 500; i++ {
				out = f.process(1.0)
			}
			convey.Convey("Then the steady-state gain is unity", func() {
				convey.So(out, convey.ShouldAlmostEqual, 1.0, 0.01)
			})
		})

		convey.Convey("When a 25 Hz tone passes through", func() {
			var peak float64
			for i := 0; i < 500; i++ {
				t := float64(i) / testRateHz
				v := math.Abs(f.process(math.Sin(2 * math.Pi * 25 * t)))
				if i > 100 && v > peak {
					peak = v
				}
			}
			convey.Convey("Then it is strongly attenuated", func() {
				convey.So(peak, convey.ShouldBeLessThan, 0.1)
			})
		})

		convey.Convey("When reset is called", func() {
			for i := 0; i < 100; i++ {
				f.process(1.0)
			}
			f.reset()
			convey.So(f.process(0), convey.ShouldAlmostEqual, 0, 1e-12)
		})
	})
}
