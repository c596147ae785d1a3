package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/lounge/internal/domain/model"
)

func delivery(id string) model.WebhookEvent {
	return model.WebhookEvent{DeliveryID: id, Event: "push", Payload: []byte(`{"zen":"hi"}`)}
}

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a queue with room for two deliveries", t, func() {
		ctx := context.Background()
		q := NewInMemoryQueue(WithCapacity(2))
		So(q.Capacity(), ShouldEqual, 2)
		So(q.Len(ctx), ShouldEqual, 0)

		Convey("When one delivery is buffered and read back", func() {
			So(q.Enqueue(ctx, delivery("d-1")), ShouldBeNil)
			So(q.Len(ctx), ShouldEqual, 1)
			got := <-q.Dequeue(ctx)

			Convey("Then it comes out unchanged", func() {
				So(got.DeliveryID, ShouldEqual, "d-1")
				So(string(got.Payload), ShouldEqual, `{"zen":"hi"}`)
			})
		})

		Convey("When the buffer is full", func() {
			So(q.Enqueue(ctx, delivery("d-1")), ShouldBeNil)
			So(q.Enqueue(ctx, delivery("d-2")), ShouldBeNil)
			err := q.Enqueue(ctx, delivery("d-3"))

			Convey("Then the third delivery is rejected with backpressure", func() {
				So(errors.Is(err, ErrQueueFull), ShouldBeTrue)
				So(q.Len(ctx), ShouldEqual, 2)
			})
		})

		Convey("When the caller's context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			err := q.Enqueue(cctx, delivery("late"))

			Convey("Then nothing is buffered", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(q.Len(ctx), ShouldEqual, 0)
			})
		})

		Convey("When the queue is closed with deliveries still buffered", func() {
			So(q.Enqueue(ctx, delivery("d-1")), ShouldBeNil)
			So(q.Close(), ShouldBeNil)
			So(q.Close(), ShouldBeNil)

			Convey("Then new deliveries are refused", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(q.Enqueue(ctx, delivery("d-2")), ShouldEqual, ErrQueueClosed)
			})

			Convey("Then the buffered delivery drains before the channel closes", func() {
				out := q.Dequeue(ctx)
				got, ok := <-out
				So(ok, ShouldBeTrue)
				So(got.DeliveryID, ShouldEqual, "d-1")
				select {
				case _, ok = <-out:
					So(ok, ShouldBeFalse)
				case <-time.After(time.Second):
					t.Fatal("dequeue channel not closed")
				}
			})
		})

		Convey("When the reader's context ends", func() {
			cctx, cancel := context.WithCancel(ctx)
			out := q.Dequeue(cctx)
			cancel()

			Convey("Then the dequeue channel closes", func() {
				select {
				case _, ok := <-out:
					So(ok, ShouldBeFalse)
				case <-time.After(time.Second):
					t.Fatal("dequeue channel not closed")
				}
			})
		})
	})
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	Convey("Given producers and consumers sharing one queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := NewInMemoryQueue(WithCapacity(16))
		const producers, perProducer = 8, 50

		var (
			mu   sync.Mutex
			seen = make(map[string]bool)
			wg   sync.WaitGroup
		)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for e := range q.Dequeue(ctx) {
					mu.Lock()
					seen[e.DeliveryID] = true
					mu.Unlock()
				}
			}()
		}

		var pw sync.WaitGroup
		for p := 0; p < producers; p++ {
			pw.Add(1)
			go func(p int) {
				defer pw.Done()
				for j := 0; j < perProducer; j++ {
					for errors.Is(q.Enqueue(ctx, delivery(fmt.Sprintf("d-%d-%d", p, j))), ErrQueueFull) {
						time.Sleep(time.Millisecond)
					}
				}
			}(p)
		}
		pw.Wait()
		So(q.Close(), ShouldBeNil)
		wg.Wait()

		Convey("Then every delivery is consumed exactly once", func() {
			So(len(seen), ShouldEqual, producers*perProducer)
			So(q.Len(ctx), ShouldEqual, 0)
		})
	})
}
