package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/citruscircuits/calcserver/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryPendingSet(t *testing.T) {
	Convey("Given a new pending set", t, func() {
		ctx := context.Background()
		s := dedupe.NewInMemoryPendingSet()
		So(s.Size(), ShouldEqual, 0)

		Convey("When a key is marked the first time", func() {
			pending := s.MarkPending(ctx, "predicted_aim")

			Convey("Then it was not pending before", func() {
				So(pending, ShouldBeFalse)
				So(s.Size(), ShouldEqual, 1)
			})

			Convey("And a second mark is coalesced", func() {
				So(s.MarkPending(ctx, "predicted_aim"), ShouldBeTrue)
				So(s.Size(), ShouldEqual, 1)
			})

			Convey("And after clearing it can be marked again", func() {
				s.Clear(ctx, "predicted_aim")
				So(s.Size(), ShouldEqual, 0)
				So(s.MarkPending(ctx, "predicted_aim"), ShouldBeFalse)
			})
		})

		Convey("When clearing an unknown key", func() {
			s.Clear(ctx, "missing")

			Convey("Then nothing changes", func() {
				So(s.Size(), ShouldEqual, 0)
			})
		})
	})
}

func TestInMemoryPendingSet_Bounded(t *testing.T) {
	Convey("Given a pending set bounded to two keys", t, func() {
		ctx := context.Background()
		s := dedupe.NewInMemoryPendingSet(dedupe.WithMaxSize(2))
		s.MarkPending(ctx, "a")
		s.MarkPending(ctx, "b")

		Convey("When a third key arrives", func() {
			So(s.MarkPending(ctx, "c"), ShouldBeFalse)

			Convey("Then the oldest mark is dropped", func() {
				So(s.Size(), ShouldEqual, 2)
				So(s.MarkPending(ctx, "b"), ShouldBeTrue)
				So(s.MarkPending(ctx, "c"), ShouldBeTrue)
				So(s.MarkPending(ctx, "a"), ShouldBeFalse)
			})
		})
	})

	Convey("Given an unbounded pending set", t, func() {
		ctx := context.Background()
		s := dedupe.NewInMemoryPendingSet(dedupe.WithMaxSize(0))
		for i := 0; i < 5000; i++ {
			s.MarkPending(ctx, fmt.Sprintf("calc-%d", i))
		}
		So(s.Size(), ShouldEqual, 5000)
	})
}

func TestInMemoryPendingSet_Concurrency(t *testing.T) {
	Convey("Given many goroutines marking one key", t, func() {
		ctx := context.Background()
		s := dedupe.NewInMemoryPendingSet()
		var fresh atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !s.MarkPending(ctx, "predicted_aim") {
					fresh.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one of them wins", func() {
			So(fresh.Load(), ShouldEqual, 1)
			So(s.Size(), ShouldEqual, 1)
		})
	})
}
