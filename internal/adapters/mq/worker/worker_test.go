package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/wcalive/internal/adapters/mq/queue"
	"github.com/okian/wcalive/internal/adapters/repository"
	worker "github.com/okian/wcalive/internal/adapters/mq/worker"
	"github.com/okian/wcalive/internal/domain/attempt"
	model "github.com/okian/wcalive/internal/domain/model"
	logging "github.com/okian/wcalive/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	ch chan model.Submission
}

func newMockQueue() *mockQueue {
	return &mockQueue{ch: make(chan model.Submission, 10)}
}

func (q *mockQueue) Dequeue(ctx context.Context) <-chan model.Submission { return q.ch }

func (q *mockQueue) Close() error {
	close(q.ch)
	return nil
}

type mockEvaluator struct {
	mu     sync.Mutex
	errors map[string]error
}

func newMockEvaluator() *mockEvaluator {
	return &mockEvaluator{errors: make(map[string]error)}
}

func (m *mockEvaluator) Evaluate(ctx context.Context, e model.Entry) (model.Evaluated, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errors[e.PersonID]; ok {
		return model.Evaluated{}, err
	}
	return model.Evaluated{
		Attempts: e.Attempts,
		Stats:    model.Stats{Best: e.Attempts[0], Average: attempt.Skipped},
	}, nil
}

func (m *mockEvaluator) setError(personID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[personID] = err
}

// slowEvaluator delays entries whose first attempt is slow.
type slowEvaluator struct {
	*mockEvaluator
	slow  int
	delay time.Duration
}

func (m *slowEvaluator) Evaluate(ctx context.Context, e model.Entry) (model.Evaluated, error) {
	if len(e.Attempts) > 0 && int(e.Attempts[0]) == m.slow {
		time.Sleep(m.delay)
	}
	return m.mockEvaluator.Evaluate(ctx, e)
}

type mockStore struct {
	mu     sync.Mutex
	rows   map[string]repository.Row
	errors map[string]error
}

func newMockStore() *mockStore {
	return &mockStore{rows: make(map[string]repository.Row), errors: make(map[string]error)}
}

func (m *mockStore) Upsert(ctx context.Context, row repository.Row) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errors[row.PersonID]; ok {
		return false, err
	}
	_, existed := m.rows[row.PersonID]
	m.rows[row.PersonID] = row
	return !existed, nil
}

func (m *mockStore) get(personID string) (repository.Row, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[personID]
	return r, ok
}

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func submission(id, person string, attempts ...int) model.Submission {
	return model.Submission{
		SubmissionID: id,
		Entry: model.Entry{
			RoundID:  "333-r1",
			PersonID: person,
			EventID:  "333",
			Attempts: attempt.FromInts(attempts),
			Format:   model.EventFormat{NumberOfAttempts: 1, SortBy: model.SortByBest},
		},
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running InMemoryWorker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		evaluator := newMockEvaluator()
		store := newMockStore()
		w := worker.NewInMemoryWorker(q, evaluator, store, worker.WithName("test-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a submission arrives", func() {
			q.ch <- submission("s1", "alice", 950)

			convey.Convey("Then its evaluation is stored", func() {
				convey.So(eventually(func() bool { _, ok := store.get("alice"); return ok }), convey.ShouldBeTrue)
				row, _ := store.get("alice")
				convey.So(row.RoundID, convey.ShouldEqual, "333-r1")
				convey.So(row.Stats.Best, convey.ShouldEqual, attempt.Result(950))
			})
		})

		convey.Convey("When evaluation fails", func() {
			evaluator.setError("bob", errors.New("bad entry"))
			q.ch <- submission("s2", "bob", 950)
			q.ch <- submission("s3", "carol", 1000)

			convey.Convey("Then nothing is stored for it and the worker keeps going", func() {
				convey.So(eventually(func() bool { _, ok := store.get("carol"); return ok }), convey.ShouldBeTrue)
				_, ok := store.get("bob")
				convey.So(ok, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When storing fails", func() {
			store.errors["dave"] = errors.New("store down")
			q.ch <- submission("s4", "dave", 950)
			q.ch <- submission("s5", "erin", 1000)

			convey.Convey("Then the worker keeps going", func() {
				convey.So(eventually(func() bool { _, ok := store.get("erin"); return ok }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			err := w.Shutdown(shutdownCtx)

			convey.Convey("Then it stops gracefully", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool over a real queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		store := newMockStore()
		pool := worker.NewPool(4, q, newMockEvaluator(), store)
		pool.Start(context.Background())

		convey.Convey("When submissions are queued and the pool shuts down", func() {
			for i, person := range []string{"a", "b", "c", "d", "e", "f"} {
				convey.So(q.Enqueue(context.Background(), submission(person, person, 900+i)), convey.ShouldBeNil)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err := pool.Shutdown(ctx)

			convey.Convey("Then every queued submission is stored first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(store.count(), convey.ShouldEqual, 6)
				convey.So(pool.Processed(), convey.ShouldEqual, 6)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool whose evaluator is slow for some attempts", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		store := newMockStore()
		evaluator := &slowEvaluator{mockEvaluator: newMockEvaluator(), slow: 1500, delay: 50 * time.Millisecond}
		pool := worker.NewPool(2, q, evaluator, store)
		pool.Start(context.Background())

		convey.Convey("When one competitor's result is edited before the first edit is stored", func() {
			convey.So(q.Enqueue(context.Background(), submission("s1", "alice", 1500)), convey.ShouldBeNil)
			convey.So(q.Enqueue(context.Background(), submission("s2", "alice", 1200)), convey.ShouldBeNil)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)

			convey.Convey("Then the later edit is the one kept", func() {
				row, ok := store.get("alice")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(attempt.Ints(row.Attempts), convey.ShouldResemble, []int{1200})
				convey.So(pool.Processed(), convey.ShouldEqual, 2)
			})
		})
	})

	convey.Convey("Given a pool that was never started", t, func() {
		_ = logging.Init()
		pool := worker.NewPool(0, newMockQueue(), newMockEvaluator(), newMockStore())

		convey.Convey("Then shutdown returns immediately", func() {
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
		})
	})
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
