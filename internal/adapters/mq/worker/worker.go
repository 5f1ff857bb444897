// Package worker stores queued submissions after re-evaluating them.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/okian/wcalive/internal/adapters/repository"
	"github.com/okian/wcalive/internal/domain/model"
	"github.com/okian/wcalive/pkg/logger"
	"github.com/okian/wcalive/pkg/metrics"
)

const (
	defaultWorkersPerCPU  = 2
	metricsUpdateInterval = 5 * time.Second
	partitionBuffer       = 64
)

// Submission is what workers read off the queue.
type Submission = model.Submission

// Evaluator runs an entry through normalization, gating and aggregation.
type Evaluator interface {
	Evaluate(ctx context.Context, e model.Entry) (model.Evaluated, error)
}

// Upserter stores a round result. Upserts for one round and person arrive
// in queue order.
type Upserter interface {
	Upsert(ctx context.Context, row repository.Row) (bool, error)
}

// Queue defines how workers receive submissions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Submission
}

// receiver is implemented by queues that track dequeues.
type receiver interface {
	Received()
}

// Worker processes submissions until stopped.
type Worker interface {
	// Run processes submissions until ctx is done, the queue is closed or
	// Shutdown is called.
	Run(ctx context.Context)

	// Shutdown stops the worker after the submission in flight.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	evaluator Evaluator
	store     Upserter
	name      string
	processed *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, evaluator Evaluator, store Upserter, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		evaluator: evaluator,
		store:     store,
		name:      "worker",
		processed: new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get()
	}
	w.logger = w.logger.Named(w.name)
	return w
}

func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	submissions := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case s, ok := <-submissions:
			if !ok {
				return
			}
			if r, ok := w.queue.(receiver); ok {
				r.Received()
			}
			if err := w.process(ctx, s); err != nil {
				w.logger.Error(ctx, "error processing submission", logger.Error(err))
			}
		}
	}
}

func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, s Submission) error { //nolint:gocritic // hugeParam: received by value from the channel
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	ev, err := w.evaluator.Evaluate(ctx, s.Entry)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "evaluation_error")
		metrics.RecordErrorByType("evaluation_error", "high")
		w.logger.Error(ctx, "evaluation failed for submission",
			logger.String("submissionID", s.SubmissionID),
			logger.Error(err),
		)
		return fmt.Errorf("evaluate submission %s: %w", s.SubmissionID, err)
	}

	created, err := w.store.Upsert(ctx, repository.Row{
		RoundID:  s.Entry.RoundID,
		PersonID: s.Entry.PersonID,
		EventID:  s.Entry.EventID,
		Format:   s.Entry.Format,
		Attempts: ev.Attempts,
		Stats:    ev.Stats,
	})
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		metrics.RecordErrorByType("store_error", "high")
		w.logger.Error(ctx, "storing result failed",
			logger.String("submissionID", s.SubmissionID),
			logger.Error(err),
		)
		return fmt.Errorf("store submission %s: %w", s.SubmissionID, err)
	}

	w.processed.Add(1)
	metrics.RecordSubmissionProcessed()
	if created {
		metrics.RecordResultCreated()
	}
	w.logger.Debug(ctx, "stored result",
		logger.String("round", s.Entry.RoundID),
		logger.String("person", s.Entry.PersonID),
		logger.Int("best", int(ev.Stats.Best)),
		logger.Int("average", int(ev.Stats.Average)),
	)
	return nil
}

// partition feeds a single worker.
type partition chan Submission

func (p partition) Dequeue(context.Context) <-chan Submission { return p }

// route picks the partition for s. Every submission for one round and
// person lands on the same partition, so a later edit is never stored
// before an earlier one.
func route(s *Submission, n int) int {
	return int(xxhash.Sum64String(s.Entry.RoundID+"\x00"+s.Entry.PersonID) % uint64(n)) //nolint:gosec // n is small and positive
}

// Pool runs a fixed set of workers over one queue. A dispatcher reads the
// queue and hands each submission to the worker owning its result.
type Pool struct {
	workers    []*InMemoryWorker
	partitions []partition
	queue      Queue
	processed  atomic.Int64

	group    *errgroup.Group
	stop     context.CancelFunc
	started  atomic.Bool
	finished chan struct{}

	logger logger.Logger
}

// NewPool creates workerCount workers, each configured with opts. A count
// below one defaults to twice the number of CPUs.
func NewPool(workerCount int, q Queue, evaluator Evaluator, store Upserter, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkersPerCPU
	}

	p := &Pool{
		workers:    make([]*InMemoryWorker, workerCount),
		partitions: make([]partition, workerCount),
		queue:      q,
		finished:   make(chan struct{}),
		logger:     logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		p.partitions[i] = make(partition, partitionBuffer)
		w := NewInMemoryWorker(p.partitions[i], evaluator, store, append(opts, WithName("worker-"+strconv.Itoa(i)))...)
		w.processed = &p.processed
		p.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerIdleCount(workerCount)
	return p
}

// Start launches the dispatcher, every worker and the metrics updater.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	ctx, p.stop = context.WithCancel(ctx)
	p.group, ctx = errgroup.WithContext(ctx)
	p.group.Go(func() error {
		p.dispatch(ctx)
		return nil
	})
	for _, w := range p.workers {
		p.group.Go(func() error {
			w.Run(ctx)
			return nil
		})
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
	metrics.UpdateWorkerIdleCount(0)

	go p.runMetricsUpdater(ctx)
	go func() {
		_ = p.group.Wait()
		metrics.UpdateWorkerActiveCount(0)
		close(p.finished)
	}()
}

// dispatch moves submissions from the queue to their partitions until the
// queue is closed and drained or ctx is done. Partitions are closed on
// return so their workers finish what they hold and exit.
func (p *Pool) dispatch(ctx context.Context) {
	defer func() {
		for _, part := range p.partitions {
			close(part)
		}
	}()

	rcv, _ := p.queue.(receiver)
	submissions := p.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-submissions:
			if !ok {
				return
			}
			if rcv != nil {
				rcv.Received()
			}
			select {
			case p.partitions[route(&s, len(p.partitions))] <- s:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Processed returns how many submissions the pool has stored.
func (p *Pool) Processed() int64 {
	return p.processed.Load()
}

func (p *Pool) runMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	last := p.processed.Load()
	lastAt := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			cur := p.processed.Load()
			if elapsed := now.Sub(lastAt).Seconds(); elapsed > 0 {
				metrics.UpdateWorkerMessagesPerSecond(float64(cur-last) / elapsed)
			}
			last, lastAt = cur, now
		}
	}
}

// Shutdown closes the queue so the dispatcher and workers drain what is
// left, then waits for them. If ctx ends first the workers are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	if !p.started.Load() {
		return nil
	}

	select {
	case <-p.finished:
		p.stop()
		return nil
	case <-ctx.Done():
		p.stop()
		<-p.finished
		p.logger.Warn(ctx, "worker pool shutdown timed out", logger.Int("workers", len(p.workers)))
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}
