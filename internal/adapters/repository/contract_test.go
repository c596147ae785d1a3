package repository

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/lounge/internal/domain/model"
)

// storeContract exercises the behaviour every backend must share. newStore
// must return an empty store.
func storeContract(t *testing.T, backend string, newStore func(t *testing.T) Store) {
	t.Helper()
	ctx := context.Background()

	Convey("Given an empty "+backend+" store", t, func() {
		s := newStore(t)
		Reset(func() { _ = s.Close(ctx) })

		Convey("When reading an unknown player", func() {
			_, err := s.Get(ctx, "ghost")
			_, applyErr := s.Apply(ctx, "ghost", 1500)

			Convey("Then both report ErrNotFound", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				So(errors.Is(applyErr, ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a player is created", func() {
			So(s.Create(ctx, model.Player{Name: "alice", MMR: 1500}), ShouldBeNil)

			Convey("Then it can be read back with an empty history", func() {
				p, err := s.Get(ctx, "alice")
				So(err, ShouldBeNil)
				So(p.Name, ShouldEqual, "alice")
				So(p.MMR, ShouldEqual, 1500)
				So(p.History, ShouldBeEmpty)
				n, err := s.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})

			Convey("Then creating it again fails", func() {
				So(errors.Is(s.Create(ctx, model.Player{Name: "alice"}), ErrAlreadyExists), ShouldBeTrue)
			})

			Convey("Then an empty name is rejected", func() {
				So(errors.Is(s.Create(ctx, model.Player{}), ErrInvalidName), ShouldBeTrue)
			})

			Convey("Then a higher rating is a win", func() {
				ch, err := s.Apply(ctx, "alice", 1525)
				So(err, ShouldBeNil)
				So(ch, ShouldResemble, model.Change{Name: "alice", Previous: 1500, Current: 1525, Delta: 25, Win: true})

				p, err := s.Get(ctx, "alice")
				So(err, ShouldBeNil)
				So(p.MMR, ShouldEqual, 1525)
				So(p.Wins, ShouldEqual, 1)
				So(p.Losses, ShouldEqual, 0)
				So(p.History, ShouldResemble, []int64{25})
			})

			Convey("Then a lower or equal rating is a loss", func() {
				_, err := s.Apply(ctx, "alice", 1480)
				So(err, ShouldBeNil)
				ch, err := s.Apply(ctx, "alice", 1480)
				So(err, ShouldBeNil)
				So(ch.Delta, ShouldEqual, 0)
				So(ch.Win, ShouldBeFalse)

				p, err := s.Get(ctx, "alice")
				So(err, ShouldBeNil)
				So(p.Wins, ShouldEqual, 0)
				So(p.Losses, ShouldEqual, 2)
				So(p.History, ShouldResemble, []int64{-20, 0})
			})

			Convey("Then the same rating applied twice is not idempotent", func() {
				_, err := s.Apply(ctx, "alice", 1600)
				So(err, ShouldBeNil)
				_, err = s.Apply(ctx, "alice", 1600)
				So(err, ShouldBeNil)

				p, err := s.Get(ctx, "alice")
				So(err, ShouldBeNil)
				So(p.History, ShouldResemble, []int64{100, 0})
				So(int(p.Wins+p.Losses), ShouldEqual, len(p.History))
			})

			Convey("Then a change too large for an int64 is rejected and nothing is written", func() {
				_, err := s.Apply(ctx, "alice", -1500)
				So(err, ShouldBeNil)
				So(s.Create(ctx, model.Player{Name: "floor", MMR: math.MinInt64}), ShouldBeNil)

				_, err = s.Apply(ctx, "floor", 1)
				So(errors.Is(err, ErrDeltaOverflow), ShouldBeTrue)
				_, err = s.Apply(ctx, "alice", math.MaxInt64)
				So(errors.Is(err, ErrDeltaOverflow), ShouldBeTrue)

				p, err := s.Get(ctx, "floor")
				So(err, ShouldBeNil)
				So(p.MMR, ShouldEqual, int64(math.MinInt64))
				So(p.History, ShouldBeEmpty)
				p, err = s.Get(ctx, "alice")
				So(err, ShouldBeNil)
				So(p.MMR, ShouldEqual, -1500)
				So(p.History, ShouldResemble, []int64{-3000})

				ch, err := s.Apply(ctx, "floor", -1)
				So(err, ShouldBeNil)
				So(ch.Delta, ShouldEqual, int64(math.MaxInt64))
			})

			Convey("Then List returns it", func() {
				So(s.Create(ctx, model.Player{Name: "bob", MMR: 1400}), ShouldBeNil)
				players, err := s.List(ctx)
				So(err, ShouldBeNil)
				So(len(players), ShouldEqual, 2)
				names := map[string]bool{}
				for _, p := range players {
					names[p.Name] = true
				}
				So(names["alice"] && names["bob"], ShouldBeTrue)
			})

			Convey("Then concurrent updates never lose a write", func() {
				const writers = 20
				var wg sync.WaitGroup
				for i := 0; i < writers; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						_, _ = s.Apply(ctx, "alice", int64(1500+i))
					}(i)
				}
				wg.Wait()

				p, err := s.Get(ctx, "alice")
				So(err, ShouldBeNil)
				So(len(p.History), ShouldEqual, writers)
				So(p.Wins+p.Losses, ShouldEqual, writers)
				var sum int64
				for _, d := range p.History {
					sum += d
				}
				So(1500+sum, ShouldEqual, p.MMR)
			})
		})

		Convey("Then the backend answers pings", func() {
			So(s.Ping(ctx), ShouldBeNil)
		})
	})
}
