// Package service wires the result pipeline together and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/wcalive/internal/adapters/mq/queue"
	"github.com/okian/wcalive/internal/adapters/mq/worker"
	"github.com/okian/wcalive/internal/adapters/repository"
	"github.com/okian/wcalive/internal/domain/dedupe"
	"github.com/okian/wcalive/pkg/logger"
	"github.com/okian/wcalive/pkg/metrics"
)

const (
	tracerName           = "github.com/okian/wcalive/internal/app"
	storeMetricsInterval = 5 * time.Second
)

// Service evaluates entered results and keeps per-round rankings.
type Service struct {
	mu sync.RWMutex

	store   *repository.TreapStore
	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	pool    *worker.Pool

	workerCount         int
	queueSize           int
	dedupeSize          int
	requireConfirmation bool

	started bool

	tracer trace.Tracer
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the submission queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many submission ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithRequireConfirmation makes Submit reject attempts carrying a warning
// until they are resent with Confirmed set.
func WithRequireConfirmation(require bool) Option {
	return func(s *Service) {
		s.requireConfirmation = require
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// New constructs a Service. Components are created by Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:         runtime.NumCPU() * 2,
		queueSize:           10_000,
		dedupeSize:          dedupe.DefaultMaxSize,
		requireConfirmation: true,
		tracer:              otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates the store, queue and worker pool and starts the workers.
// Calling Start on a running service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting results service...")

	s.store = repository.NewTreapStore(ctx, repository.WithMetricsUpdateInterval(storeMetricsInterval))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s, s.store, worker.WithLogger(s.logger))
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "results service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Bool("requireConfirmation", s.requireConfirmation),
	)
	return nil
}

// Stop drains the queue and stops the workers and the store. Submissions
// still queued when ctx ends are dropped.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping results service...")

	err := s.pool.Shutdown(ctx)
	if err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	if cerr := s.store.Close(); cerr != nil {
		s.logger.Error(ctx, "error closing result store", logger.Error(cerr))
	}

	s.started = false
	s.logger.Info(ctx, "results service stopped", logger.Int64("processed", s.pool.Processed()))
	return err
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":             s.started,
		"workerCount":         s.workerCount,
		"queueSize":           s.queueSize,
		"dedupeSize":          s.dedupeSize,
		"requireConfirmation": s.requireConfirmation,
	}

	if s.started {
		rounds := s.store.Rounds(ctx)
		total := 0
		for _, id := range rounds {
			total += s.store.Count(ctx, id)
		}
		queueLen := s.queue.Len(ctx)

		stats["queueLength"] = queueLen
		stats["rounds"] = len(rounds)
		stats["results"] = total
		stats["processed"] = s.pool.Processed()
		stats["dedupeEntries"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateRepositoryRoundCount(len(rounds))
		metrics.UpdateRepositoryRecordsTotal(total)
	}
	return stats
}

// running returns the live components, or ErrNotStarted.
func (s *Service) running() (*components, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return &components{store: s.store, deduper: s.deduper, queue: s.queue}, nil
}

type components struct {
	store   *repository.TreapStore
	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
}
