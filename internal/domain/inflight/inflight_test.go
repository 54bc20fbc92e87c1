package inflight_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	inflight "github.com/okian/arcadehub/internal/domain/inflight"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryGuard(t *testing.T) {
	Convey("Given a new in-memory guard", t, func() {
		ctx := context.Background()
		g := inflight.NewInMemoryGuard()

		Convey("Then it holds nothing", func() {
			So(g.Size(), ShouldEqual, 0)
			So(g.Held("session-1"), ShouldBeFalse)
		})

		Convey("When a key is acquired", func() {
			So(g.TryAcquire(ctx, "session-1"), ShouldBeNil)

			Convey("Then a second acquire is refused", func() {
				So(g.TryAcquire(ctx, "session-1"), ShouldEqual, inflight.ErrHeld)
				So(g.Size(), ShouldEqual, 1)
				So(g.Held("session-1"), ShouldBeTrue)
			})

			Convey("Then other keys are independent", func() {
				So(g.TryAcquire(ctx, "session-2"), ShouldBeNil)
				So(g.Size(), ShouldEqual, 2)
			})

			Convey("And released", func() {
				g.Release(ctx, "session-1")

				Convey("Then it can be acquired again", func() {
					So(g.Held("session-1"), ShouldBeFalse)
					So(g.TryAcquire(ctx, "session-1"), ShouldBeNil)
				})
			})
		})

		Convey("When releasing an unknown key", func() {
			g.Release(ctx, "ghost")

			Convey("Then nothing changes", func() {
				So(g.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a bounded guard", t, func() {
		ctx := context.Background()
		g := inflight.NewInMemoryGuard(inflight.WithMaxSize(2))
		So(g.TryAcquire(ctx, "a"), ShouldBeNil)
		So(g.TryAcquire(ctx, "b"), ShouldBeNil)

		Convey("When full", func() {
			err := g.TryAcquire(ctx, "c")

			Convey("Then new keys hit capacity until one is released", func() {
				So(err, ShouldEqual, inflight.ErrCapacity)
				g.Release(ctx, "a")
				So(g.TryAcquire(ctx, "c"), ShouldBeNil)
			})
		})
	})

	Convey("Given an unbounded guard under contention", t, func() {
		ctx := context.Background()
		g := inflight.NewInMemoryGuard(inflight.WithMaxSize(0))

		Convey("When many goroutines race for the same keys", func() {
			var wins atomic.Int64
			var wg sync.WaitGroup
			for i := 0; i < 100; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if g.TryAcquire(ctx, fmt.Sprintf("k-%d", i%10)) == nil {
						wins.Add(1)
					}
				}(i)
			}
			wg.Wait()

			Convey("Then exactly one wins per key", func() {
				So(wins.Load(), ShouldEqual, 10)
				So(g.Size(), ShouldEqual, 10)
			})
		})
	})
}
