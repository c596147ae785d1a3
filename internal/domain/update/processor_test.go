package update_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/lounge/internal/adapters/repository"
	"github.com/okian/lounge/internal/domain/model"
	"github.com/okian/lounge/internal/domain/update"
)

func batch(body string) []json.RawMessage {
	items, err := update.ParseBatch([]byte(body))
	if err != nil {
		panic(err)
	}
	return items
}

func TestProcessorApply(t *testing.T) {
	Convey("Given a store with alice at 1500 and bob at 1400", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(ctx)
		Reset(func() { _ = store.Close(ctx) })
		So(store.Create(ctx, model.Player{Name: "alice", MMR: 1500}), ShouldBeNil)
		So(store.Create(ctx, model.Player{Name: "bob", MMR: 1400}), ShouldBeNil)

		p := update.NewProcessor(store, update.WithBatchIDFunc(func() string { return "batch-1" }))

		Convey("When a valid batch is applied", func() {
			res, err := p.Apply(ctx, batch(`[["alice", 1520], ["bob", 1390]]`))

			Convey("Then wins and losses follow the sign of the delta", func() {
				So(err, ShouldBeNil)
				So(res.BatchID, ShouldEqual, "batch-1")
				So(len(res.Applied), ShouldEqual, 2)

				alice, _ := store.Get(ctx, "alice")
				So(alice.Wins, ShouldEqual, 1)
				So(alice.History, ShouldResemble, []int64{20})
				bob, _ := store.Get(ctx, "bob")
				So(bob.Losses, ShouldEqual, 1)
				So(bob.History, ShouldResemble, []int64{-10})
			})
		})

		Convey("When the same batch is submitted twice", func() {
			_, err := p.Apply(ctx, batch(`[["alice", 1600]]`))
			So(err, ShouldBeNil)
			_, err = p.Apply(ctx, batch(`[["alice", 1600]]`))
			So(err, ShouldBeNil)

			Convey("Then both applications are recorded", func() {
				alice, _ := store.Get(ctx, "alice")
				So(alice.History, ShouldResemble, []int64{100, 0})
				So(alice.Wins, ShouldEqual, 1)
				So(alice.Losses, ShouldEqual, 1)
			})
		})

		Convey("When a player appears twice in one batch", func() {
			_, err := p.Apply(ctx, batch(`[["alice", 1510], ["alice", 1505]]`))

			Convey("Then items apply sequentially", func() {
				So(err, ShouldBeNil)
				alice, _ := store.Get(ctx, "alice")
				So(alice.MMR, ShouldEqual, 1505)
				So(alice.History, ShouldResemble, []int64{10, -5})
			})
		})

		Convey("When the second of three items names an unknown player", func() {
			res, err := p.Apply(ctx, batch(`[["alice", 1550], ["ghost", 1000], ["bob", 1450]]`))

			Convey("Then the first stays applied and the third is never reached", func() {
				So(errors.Is(err, update.ErrPlayerNotFound), ShouldBeTrue)
				So(len(res.Applied), ShouldEqual, 1)
				alice, _ := store.Get(ctx, "alice")
				So(alice.MMR, ShouldEqual, 1550)
				bob, _ := store.Get(ctx, "bob")
				So(bob.MMR, ShouldEqual, 1400)
				So(bob.History, ShouldBeEmpty)
			})
		})

		Convey("When an item has the wrong shape", func() {
			res, err := p.Apply(ctx, batch(`[["alice", "1500"]]`))

			Convey("Then the batch stops with invalid format and nothing changes", func() {
				So(errors.Is(err, update.ErrInvalidFormat), ShouldBeTrue)
				So(res.Applied, ShouldBeEmpty)
				alice, _ := store.Get(ctx, "alice")
				So(alice.History, ShouldBeEmpty)
			})
		})

		Convey("When a rating change does not fit in an int64", func() {
			So(store.Create(ctx, model.Player{Name: "floor", MMR: math.MinInt64}), ShouldBeNil)
			res, err := p.Apply(ctx, batch(`[["alice", 1501], ["floor", 1], ["bob", 1401]]`))

			Convey("Then the item is rejected as invalid format and the record is untouched", func() {
				So(errors.Is(err, update.ErrInvalidFormat), ShouldBeTrue)
				So(errors.Is(err, update.ErrDeltaOverflow), ShouldBeTrue)
				So(len(res.Applied), ShouldEqual, 1)
				floor, _ := store.Get(ctx, "floor")
				So(floor.MMR, ShouldEqual, int64(math.MinInt64))
				So(floor.History, ShouldBeEmpty)
				bob, _ := store.Get(ctx, "bob")
				So(bob.MMR, ShouldEqual, 1400)
			})
		})

		Convey("When an invalid item follows a valid one", func() {
			_, err := p.Apply(ctx, batch(`[["bob", 1401], [true, 3]]`))

			Convey("Then the earlier item stays applied", func() {
				So(errors.Is(err, update.ErrInvalidFormat), ShouldBeTrue)
				bob, _ := store.Get(ctx, "bob")
				So(bob.MMR, ShouldEqual, 1401)
			})
		})
	})
}

type failingStore struct{ err error }

func (f failingStore) Apply(context.Context, string, int64) (model.Change, error) {
	return model.Change{}, f.err
}

func TestProcessorStoreFailure(t *testing.T) {
	Convey("Given a store that fails writes", t, func() {
		boom := errors.New("connection reset")
		p := update.NewProcessor(failingStore{err: boom})

		Convey("Then the failure is surfaced and is not a not-found", func() {
			_, err := p.Apply(context.Background(), batch(`[["alice", 1]]`))
			So(errors.Is(err, boom), ShouldBeTrue)
			So(errors.Is(err, update.ErrPlayerNotFound), ShouldBeFalse)
		})
	})
}
