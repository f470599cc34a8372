package window_test

import (
	"testing"

	"github.com/motionlab/stride/internal/domain/window"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStore(t *testing.T) {
	Convey("Given a 5 second sample store", t, func() {
		s := window.NewStore[float64](5)

		Convey("When samples arrive inside the window", func() {
			for i := 0; i < 5; i++ {
				s.Push(float64(i), float64(i)*10)
			}

			Convey("Then all of them are retained in order", func() {
				So(s.Len(), ShouldEqual, 5)
				So(s.Samples()[0].Payload, ShouldEqual, 0)
				So(s.Samples()[4].Payload, ShouldEqual, 40)
				So(s.Span(), ShouldEqual, 4)
			})
		})

		Convey("When a sample ages the oldest ones out", func() {
			for i := 0; i < 5; i++ {
				s.Push(float64(i), 0)
			}
			s.Push(7.5, 0)

			Convey("Then only samples within 5 s of the newest remain", func() {
				So(s.Len(), ShouldEqual, 3) // t = 3, 4, 7.5
				So(s.Samples()[0].Timestamp, ShouldEqual, 3)
				So(s.Span(), ShouldAlmostEqual, 4.5)
			})
		})

		Convey("When a sample lands exactly at the window edge", func() {
			s.Push(0, 0)
			s.Push(5, 0)

			Convey("Then the edge sample is still retained", func() {
				So(s.Len(), ShouldEqual, 2)
			})
		})

		Convey("When the store is empty or has one sample", func() {
			So(s.Span(), ShouldEqual, 0)
			s.Push(1, 0)
			So(s.Span(), ShouldEqual, 0)
		})

		Convey("When Reset is called", func() {
			s.Push(0, 1)
			s.Push(1, 2)
			s.Reset()

			Convey("Then the store is empty", func() {
				So(s.Len(), ShouldEqual, 0)
				So(len(s.Samples()), ShouldEqual, 0)
			})
		})
	})
}

func TestRing(t *testing.T) {
	Convey("Given a ring of capacity 3", t, func() {
		r := window.NewRing(3)

		Convey("When fewer values than capacity are pushed", func() {
			r.Push(1)
			r.Push(2)

			Convey("Then values come back oldest first", func() {
				So(r.Len(), ShouldEqual, 2)
				So(r.Slice(), ShouldResemble, []float64{1, 2})
			})
		})

		Convey("When the ring wraps", func() {
			for i := 1; i <= 5; i++ {
				r.Push(float64(i))
			}

			Convey("Then only the newest capacity values survive", func() {
				So(r.Len(), ShouldEqual, 3)
				So(r.Slice(), ShouldResemble, []float64{3, 4, 5})
			})
		})

		Convey("When Reset is called", func() {
			r.Push(1)
			r.Reset()

			Convey("Then the ring is empty", func() {
				So(r.Len(), ShouldEqual, 0)
				So(len(r.Slice()), ShouldEqual, 0)
			})
		})
	})
}
