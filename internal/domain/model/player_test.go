package model_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/lounge/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPlayerApplied(t *testing.T) {
	Convey("Given a player at 1000", t, func() {
		p := model.Player{Name: "alice", MMR: 1000}

		Convey("When the rating rises to 1100", func() {
			next, ch, err := p.Applied(1100)
			So(err, ShouldBeNil)

			Convey("Then a win and +100 are recorded", func() {
				So(next.MMR, ShouldEqual, 1100)
				So(next.Wins, ShouldEqual, 1)
				So(next.Losses, ShouldEqual, 0)
				So(next.History, ShouldResemble, []int64{100})
				So(ch, ShouldResemble, model.Change{Name: "alice", Previous: 1000, Current: 1100, Delta: 100, Win: true})
			})

			Convey("And then it drops to 1050", func() {
				last, ch2, err := next.Applied(1050)
				So(err, ShouldBeNil)

				Convey("Then a loss and -50 are appended", func() {
					So(last.Wins, ShouldEqual, 1)
					So(last.Losses, ShouldEqual, 1)
					So(last.History, ShouldResemble, []int64{100, -50})
					So(ch2.Win, ShouldBeFalse)
				})
			})
		})

		Convey("When the same rating is applied", func() {
			next, ch, err := p.Applied(1000)
			So(err, ShouldBeNil)

			Convey("Then the zero delta counts as a loss", func() {
				So(ch.Delta, ShouldEqual, 0)
				So(next.Losses, ShouldEqual, 1)
				So(next.History, ShouldResemble, []int64{0})
			})
		})

		Convey("When applying does not alias the original history", func() {
			p.History = []int64{5}
			next, _, err := p.Applied(1001)
			So(err, ShouldBeNil)
			next.History[0] = 99

			Convey("Then the original is untouched", func() {
				So(p.History, ShouldResemble, []int64{5})
			})
		})
	})
}

func TestPlayerAppliedOverflow(t *testing.T) {
	Convey("Given ratings at the ends of the int64 range", t, func() {
		low := model.Player{Name: "low", MMR: math.MinInt64}
		high := model.Player{Name: "high", MMR: math.MaxInt64}

		Convey("When the change does not fit in an int64", func() {
			_, _, errUp := low.Applied(1)
			_, _, errDown := high.Applied(-2)

			Convey("Then it is rejected instead of wrapping", func() {
				So(errors.Is(errUp, model.ErrDeltaOverflow), ShouldBeTrue)
				So(errors.Is(errDown, model.ErrDeltaOverflow), ShouldBeTrue)
			})
		})

		Convey("When the change lands exactly on the boundary", func() {
			_, ch, err := low.Applied(-1)
			So(err, ShouldBeNil)
			So(ch.Delta, ShouldEqual, int64(math.MaxInt64))

			_, ch, err = high.Applied(-1)
			So(err, ShouldBeNil)
			So(ch.Delta, ShouldEqual, int64(math.MinInt64))
		})
	})

	Convey("Given the bounds for a target rating", t, func() {
		lo, hi := model.DeltaBounds(0)
		So(lo, ShouldEqual, int64(-math.MaxInt64))
		So(hi, ShouldEqual, int64(math.MaxInt64))

		lo, hi = model.DeltaBounds(-5)
		So(lo, ShouldEqual, int64(math.MinInt64))
		So(hi, ShouldEqual, int64(math.MaxInt64-4))
	})
}
