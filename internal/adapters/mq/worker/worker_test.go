package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/rehearsal/internal/adapters/mq/queue"
	worker "github.com/okian/rehearsal/internal/adapters/mq/worker"
	model "github.com/okian/rehearsal/internal/domain/model"
	logging "github.com/okian/rehearsal/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 200)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

func (mq *mockQueue) add(groupID string) {
	mq.jobs <- model.RefreshJob{GroupID: groupID, Reason: "test", RequestedAt: time.Now()}
}

type mockRefresher struct {
	mu        sync.Mutex
	refreshed map[string]int
	errors    map[string]error
}

func newMockRefresher() *mockRefresher {
	return &mockRefresher{refreshed: make(map[string]int), errors: make(map[string]error)}
}

func (m *mockRefresher) Refresh(_ context.Context, groupID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errors[groupID]; ok {
		return err
	}
	m.refreshed[groupID]++
	return nil
}

func (m *mockRefresher) setError(groupID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[groupID] = err
}

func (m *mockRefresher) count(groupID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshed[groupID]
}

type mockReleaser struct {
	mu       sync.Mutex
	released []string
}

func (m *mockReleaser) Unrecord(_ context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, id)
}

func (m *mockReleaser) list() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.released...)
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running InMemoryWorker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		refresher := newMockRefresher()
		releaser := &mockReleaser{}
		w := worker.NewInMemoryWorker(q, refresher, worker.WithName("test-worker"), worker.WithReleaser(releaser))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job arrives", func() {
			q.add("g1")

			convey.Convey("Then the group is refreshed and released", func() {
				convey.So(eventually(func() bool { return refresher.count("g1") == 1 }), convey.ShouldBeTrue)
				convey.So(releaser.list(), convey.ShouldResemble, []string{"g1"})
			})
		})

		convey.Convey("When the refresh fails", func() {
			refresher.setError("g2", errors.New("store down"))
			q.add("g2")
			q.add("g3")

			convey.Convey("Then the worker keeps going and still releases the group", func() {
				convey.So(eventually(func() bool { return refresher.count("g3") == 1 }), convey.ShouldBeTrue)
				convey.So(refresher.count("g2"), convey.ShouldEqual, 0)
				convey.So(releaser.list(), convey.ShouldResemble, []string{"g2", "g3"})
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.Convey("Then it stops gracefully", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		refresher := newMockRefresher()

		convey.Convey("When created with a non-positive count", func() {
			pool := worker.NewPool(0, q, refresher)

			convey.Convey("Then it falls back to at least one worker", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		convey.Convey("When many jobs are processed concurrently", func() {
			pool := worker.NewPool(4, q, refresher)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			const jobs = 100
			var wg sync.WaitGroup
			for p := 0; p < 5; p++ {
				wg.Add(1)
				go func(p int) {
					defer wg.Done()
					for j := 0; j < jobs/5; j++ {
						q.add(fmt.Sprintf("g-%d-%d", p, j))
					}
				}(p)
			}
			wg.Wait()

			convey.Convey("Then every job is refreshed exactly once", func() {
				convey.So(eventually(func() bool {
					done := 0
					for p := 0; p < 5; p++ {
						for j := 0; j < jobs/5; j++ {
							done += refresher.count(fmt.Sprintf("g-%d-%d", p, j))
						}
					}
					return done == jobs
				}), convey.ShouldBeTrue)
			})

			convey.Convey("And shutdown closes the queue and stops the workers", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
				defer shutdownCancel()
				convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerStopsOnClosedQueue(t *testing.T) {
	convey.Convey("Given a worker whose queue closes", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		w := worker.NewInMemoryWorker(q, newMockRefresher())
		stopped := make(chan struct{})
		go func() {
			w.Run(context.Background())
			close(stopped)
		}()

		_ = q.Close()

		convey.Convey("Then Run returns", func() {
			select {
			case <-stopped:
				convey.So(true, convey.ShouldBeTrue)
			case <-time.After(time.Second):
				convey.So("worker still running", convey.ShouldBeEmpty)
			}
		})
	})
}
