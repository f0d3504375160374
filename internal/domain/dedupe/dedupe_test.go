package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/rehearsal/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()

		Convey("Then it starts empty", func() {
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When a group is recorded for the first time", func() {
			seen := d.SeenAndRecord(ctx, "group-1")

			Convey("Then it is reported as new", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And a second request is coalesced", func() {
				So(d.SeenAndRecord(ctx, "group-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And after Unrecord the group can be recorded again", func() {
				d.Unrecord(ctx, "group-1")
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "group-1"), ShouldBeFalse)
			})
		})

		Convey("When unrecording an unknown key", func() {
			d.Unrecord(ctx, "missing")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
		d.SeenAndRecord(ctx, "a")
		d.SeenAndRecord(ctx, "b")

		Convey("When it is full", func() {
			first := d.SeenAndRecord(ctx, "c")
			second := d.SeenAndRecord(ctx, "c")

			Convey("Then new keys pass through unrecorded", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 2)
			})

			Convey("And existing keys are still coalesced", func() {
				So(d.SeenAndRecord(ctx, "a"), ShouldBeTrue)
			})
		})
	})

	Convey("Given concurrent callers", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		const goroutines = 50

		var wg sync.WaitGroup
		var mu sync.Mutex
		newCount := 0
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if !d.SeenAndRecord(ctx, "shared") {
					mu.Lock()
					newCount++
					mu.Unlock()
				}
				d.SeenAndRecord(ctx, fmt.Sprintf("own-%d", i))
			}(i)
		}
		wg.Wait()

		Convey("Then exactly one caller records the shared key", func() {
			So(newCount, ShouldEqual, 1)
			So(d.Size(), ShouldEqual, goroutines+1)
		})
	})
}
