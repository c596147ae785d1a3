package repository

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/lounge/internal/domain/model"
)

func TestMemoryStoreContract(t *testing.T) {
	storeContract(t, BackendMemory, func(t *testing.T) Store {
		return NewMemoryStore(context.Background(), WithShardCount(4))
	})
}

func TestMemoryStoreIsolation(t *testing.T) {
	Convey("Given a memory store with one player", t, func() {
		ctx := context.Background()
		s := NewMemoryStore(ctx, WithShardCount(1), WithMetricsUpdateInterval(10*time.Millisecond))
		defer func() { _ = s.Close(ctx) }()
		So(s.Create(ctx, model.Player{Name: "alice", MMR: 10, History: []int64{1}}), ShouldBeNil)

		Convey("When a caller mutates returned records", func() {
			p, err := s.Get(ctx, "alice")
			So(err, ShouldBeNil)
			p.History[0] = 99
			list, err := s.List(ctx)
			So(err, ShouldBeNil)
			list[0].History[0] = 77

			Convey("Then the stored history is unchanged", func() {
				again, err := s.Get(ctx, "alice")
				So(err, ShouldBeNil)
				So(again.History, ShouldResemble, []int64{1})
			})
		})

		Convey("When List is called on many players", func() {
			for _, n := range []string{"zed", "bob", "carl"} {
				So(s.Create(ctx, model.Player{Name: n}), ShouldBeNil)
			}
			list, err := s.List(ctx)
			So(err, ShouldBeNil)

			Convey("Then players are sorted by name", func() {
				names := make([]string, 0, len(list))
				for _, p := range list {
					names = append(names, p.Name)
				}
				So(names, ShouldResemble, []string{"alice", "bob", "carl", "zed"})
			})
		})

		Convey("When Close is called twice", func() {
			So(s.Close(ctx), ShouldBeNil)
			So(s.Close(ctx), ShouldBeNil)
		})
	})
}
