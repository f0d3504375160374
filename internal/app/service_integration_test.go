package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/rehearsal/internal/adapters/cache"
	"github.com/okian/rehearsal/internal/adapters/notify"
	"github.com/okian/rehearsal/internal/adapters/repository"
	service "github.com/okian/rehearsal/internal/app"
	"github.com/okian/rehearsal/internal/domain/availability"
)

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// gatedStore blocks availability reads until the gate opens.
type gatedStore struct {
	*repository.MemoryStore
	gate chan struct{}
	once sync.Once
}

func (g *gatedStore) Availability(ctx context.Context, ids []string) ([]availability.Record, error) {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.MemoryStore.Availability(ctx, ids)
}

func (g *gatedStore) open() { g.once.Do(func() { close(g.gate) }) }

type readerKey struct{}

// interleavedStore lets one marked reader fetch its snapshot, then runs
// during() before handing that now-outdated snapshot back.
type interleavedStore struct {
	*repository.MemoryStore
	armed  atomic.Bool
	during func(ctx context.Context)
}

func (s *interleavedStore) Availability(ctx context.Context, ids []string) ([]availability.Record, error) {
	recs, err := s.MemoryStore.Availability(ctx, ids)
	if err != nil || ctx.Value(readerKey{}) == nil || !s.armed.CompareAndSwap(true, false) {
		return recs, err
	}
	s.during(ctx)
	return recs, nil
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a started service with a redis cache and a fake publisher", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer func() { _ = client.Close() }()

		store := repository.NewMemoryStore()
		pub := notify.NewFakePublisher()
		svc := service.New(
			service.WithStore(store),
			service.WithCache(cache.NewRedisCache(client)),
			service.WithPublisher(pub),
			service.WithWorkerCount(2),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		So(svc.JoinGroup(ctx, "a", "band", "a"), ShouldBeNil)
		So(svc.JoinGroup(ctx, "a", "band", "b"), ShouldBeNil)

		Convey("When members save overlapping weeks", func() {
			So(svc.SetAvailability(ctx, "a", "a", week(availability.Wednesday, 18, 22)), ShouldBeNil)
			So(svc.SetAvailability(ctx, "b", "b", week(availability.Wednesday, 20, 23)), ShouldBeNil)

			Convey("Then a worker publishes the refreshed ranking", func() {
				So(eventually(func() bool {
					for _, u := range pub.Updates() {
						if len(u.Best) == 1 && u.Best[0].MemberCount == 2 {
							return true
						}
					}
					return false
				}), ShouldBeTrue)

				last := pub.Updates()[len(pub.Updates())-1]
				So(last.GroupID, ShouldEqual, "band")
				So(last.TotalMembers, ShouldEqual, 2)
			})

			Convey("And reads agree with the latest availability", func() {
				So(eventually(func() bool {
					out, err := svc.OptimalTimes(ctx, "a", "band")
					if err != nil {
						return false
					}
					slots := out.Days[availability.Wednesday].Slots
					return len(slots) == 3 && slots[0].Start.String() == "20:00" && slots[0].MemberPercentage == 100
				}), ShouldBeTrue)
			})

			Convey("And the answer is cached under the group", func() {
				So(eventually(func() bool { return mr.Exists("rehearsal:optimal-times:band") }), ShouldBeTrue)
			})
		})

		Convey("When availability changes after a read", func() {
			_, err := svc.OptimalTimes(ctx, "a", "band")
			So(err, ShouldBeNil)

			So(svc.SetAvailability(ctx, "a", "a", week(availability.Friday, 10, 12)), ShouldBeNil)

			Convey("Then the new week is served once pending refreshes settle", func() {
				So(eventually(func() bool {
					out, err := svc.OptimalTimes(ctx, "a", "band")
					return err == nil && len(out.Days[availability.Friday].Slots) == 1
				}), ShouldBeTrue)
			})
		})

		Convey("When a member requests a manual refresh", func() {
			So(svc.RequestRefresh(ctx, "b", "band"), ShouldBeNil)

			Convey("Then an update is published", func() {
				So(eventually(func() bool { return len(pub.Updates()) > 0 }), ShouldBeTrue)
			})
		})
	})
}

func TestServiceBackpressure(t *testing.T) {
	Convey("Given a single blocked worker and a tiny queue", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		store := &gatedStore{MemoryStore: repository.NewMemoryStore(), gate: make(chan struct{})}
		for i := 0; i < 10; i++ {
			So(store.AddMember(ctx, fmt.Sprintf("g%d", i), "a"), ShouldBeNil)
		}

		svc := service.New(
			service.WithStore(store),
			service.WithWorkerCount(1),
			service.WithQueueSize(1),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		defer store.open()

		Convey("When distinct groups keep asking for refreshes", func() {
			var rejected error
			for i := 0; i < 10 && rejected == nil; i++ {
				rejected = svc.RequestRefresh(ctx, "a", fmt.Sprintf("g%d", i))
			}

			Convey("Then the queue pushes back with ErrBackpressure", func() {
				So(errors.Is(rejected, service.ErrBackpressure), ShouldBeTrue)
			})
		})

		Convey("When the same group asks twice while pending", func() {
			So(svc.RequestRefresh(ctx, "a", "g0"), ShouldBeNil)
			// The worker releases g0 as soon as it picks it up, then blocks.
			So(eventually(func() bool { return svc.GetStats()["pendingRefreshes"] == int64(0) }), ShouldBeTrue)

			So(svc.RequestRefresh(ctx, "a", "g1"), ShouldBeNil)
			So(svc.RequestRefresh(ctx, "a", "g1"), ShouldBeNil)

			Convey("Then the second request is absorbed", func() {
				So(svc.GetStats()["pendingRefreshes"], ShouldEqual, int64(1))
			})
		})
	})
}

func TestServiceCacheRace(t *testing.T) {
	Convey("Given a reader that computes while a newer week is saved and cached", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer func() { _ = client.Close() }()

		store := &interleavedStore{MemoryStore: repository.NewMemoryStore()}
		svc := service.New(
			service.WithStore(store),
			service.WithCache(cache.NewRedisCache(client)),
			service.WithWorkerCount(1),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		// Seeded behind the service so no refresh is queued and the cache is cold.
		So(store.AddMember(ctx, "band", "a"), ShouldBeNil)
		So(store.AddMember(ctx, "band", "b"), ShouldBeNil)
		So(store.ReplaceAvailability(ctx, "a", week(availability.Monday, 18, 20)), ShouldBeNil)

		const key = "rehearsal:optimal-times:band"
		var fresh bool
		store.during = func(context.Context) {
			// The worker runs on the service context, so only the marked
			// reader ever reaches this hook.
			if err := svc.SetAvailability(ctx, "b", "b", week(availability.Monday, 18, 20)); err != nil {
				return
			}
			fresh = eventually(func() bool { return mr.Exists(key) })
		}
		store.armed.Store(true)

		Convey("When the outdated reader finishes after the worker cached the new week", func() {
			reader := context.WithValue(ctx, readerKey{}, true)
			stale, err := svc.OptimalTimes(reader, "a", "band")
			So(err, ShouldBeNil)
			So(fresh, ShouldBeTrue)
			So(stale.Days[availability.Monday].Slots[0].MemberCount, ShouldEqual, 1)

			Convey("Then the outdated answer does not overwrite the cache", func() {
				out, err := svc.OptimalTimes(ctx, "a", "band")
				So(err, ShouldBeNil)
				monday := out.Days[availability.Monday].Slots
				So(monday, ShouldHaveLength, 1)
				So(monday[0].MemberCount, ShouldEqual, 2)
				So(monday[0].MemberPercentage, ShouldEqual, 100)
			})
		})
	})
}
