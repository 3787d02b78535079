// Package service hosts the calculators: it turns collection change
// notifications into queued runs, executes them on a worker pool and answers
// the HTTP API's queries.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	eventqueue "github.com/citruscircuits/calcserver/internal/adapters/mq/queue"
	workerpool "github.com/citruscircuits/calcserver/internal/adapters/mq/worker"
	"github.com/citruscircuits/calcserver/internal/adapters/repository"
	"github.com/citruscircuits/calcserver/internal/domain/calculation"
	"github.com/citruscircuits/calcserver/internal/domain/dedupe"
	"github.com/citruscircuits/calcserver/internal/domain/model"
	"github.com/citruscircuits/calcserver/pkg/logger"
	"github.com/citruscircuits/calcserver/pkg/metrics"
)

const stopTimeout = 30 * time.Second

// runHandler adapts the service to worker.Handler.
type runHandler struct {
	s *Service
}

// Begin clears the pending mark so changes made during the run schedule another one.
func (h runHandler) Begin(ctx context.Context, req model.RunRequest) { //nolint:gocritic // hugeParam: requests travel by value
	h.s.pending.Clear(ctx, req.Calculator)
}

func (h runHandler) Handle(ctx context.Context, req model.RunRequest) error { //nolint:gocritic // hugeParam: requests travel by value
	return h.s.runCalculator(ctx, req.Calculator)
}

// Service implements the API dependencies for the calculation server.
type Service struct {
	mu sync.RWMutex

	store    repository.Store
	registry *calculation.Registry
	pending  dedupe.PendingSet
	runQueue *eventqueue.InMemoryQueue
	pool     *workerpool.Pool
	flight   singleflight.Group

	workerCount     int
	queueSize       int
	pendingSize     int
	retryInitial    time.Duration
	retryMaxElapsed time.Duration
	runTimeout      time.Duration

	started bool
	cancel  context.CancelFunc

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

// WithQueueSize sets the maximum number of queued runs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithPendingSize bounds the pending-run set.
func WithPendingSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pendingSize = size
		}
	}
}

// WithRetryPolicy sets the backoff for failed queued runs. A zero maxElapsed
// disables retries.
func WithRetryPolicy(initial, maxElapsed time.Duration) Option {
	return func(s *Service) {
		if initial > 0 {
			s.retryInitial = initial
		}
		if maxElapsed >= 0 {
			s.retryMaxElapsed = maxElapsed
		}
	}
}

// WithRunTimeout bounds a single calculator run.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.runTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a service over store running the calculators in registry.
func New(store repository.Store, registry *calculation.Registry, opts ...Option) *Service {
	s := &Service{
		store:           store,
		registry:        registry,
		workerCount:     2,
		queueSize:       1024,
		pendingSize:     1024,
		retryInitial:    200 * time.Millisecond,
		retryMaxElapsed: 30 * time.Second,
		runTimeout:      2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates the queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.pending = dedupe.NewInMemoryPendingSet(dedupe.WithMaxSize(s.pendingSize))
	s.runQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.runQueue, runHandler{s: s},
		workerpool.WithRetry(s.retryInitial, s.retryMaxElapsed),
	)

	// Workers outlive the request that started them.
	poolCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(poolCtx)

	s.started = true
	s.logger.Info(ctx, "calculation service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Any("calculators", s.registry.Names()),
	)
	return nil
}

// Stop drains in-flight runs and stops the workers.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not stop cleanly", logger.Error(err))
	}
	s.cancel()
	s.started = false
	s.logger.Info(ctx, "calculation service stopped")
}

// Notify schedules a run of every calculator watching collection. A
// calculator that already has a queued run is not queued again.
func (s *Service) Notify(ctx context.Context, collection string) (model.NotifyResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := model.NotifyResult{Scheduled: []string{}, Coalesced: []string{}}
	if !s.started {
		return result, ErrNotStarted
	}
	collection = repository.CollectionName(collection)

	var errs []error
	for _, c := range s.registry.Watching(collection) {
		name := c.Name()
		if s.pending.MarkPending(ctx, name) {
			metrics.RecordRunRequestCoalesced(name)
			result.Coalesced = append(result.Coalesced, name)
			continue
		}
		req := model.RunRequest{ID: uuid.NewString(), Calculator: name, Collection: collection, TS: time.Now()}
		if err := s.runQueue.Enqueue(ctx, req); err != nil {
			s.pending.Clear(ctx, name)
			errs = append(errs, fmt.Errorf("schedule %s: %w", name, err))
			continue
		}
		metrics.RecordRunRequest(collection)
		result.Scheduled = append(result.Scheduled, name)
		s.logger.Debug(ctx, "run scheduled",
			logger.String("request_id", req.ID),
			logger.String("calculator", name),
			logger.String("collection", collection),
		)
	}
	return result, errors.Join(errs...)
}

// RunNow runs a calculator synchronously. Concurrent callers for the same
// calculator share one run and its result.
func (s *Service) RunNow(ctx context.Context, name string) error {
	if _, err := s.registry.Get(name); err != nil {
		return err
	}
	_, err, shared := s.flight.Do(name, func() (any, error) {
		return nil, s.runCalculator(context.WithoutCancel(ctx), name)
	})
	if shared {
		s.log().Debug(ctx, "joined in-flight run", logger.String("calculator", name))
	}
	return err
}

// RunAll runs every registered calculator once.
func (s *Service) RunAll(ctx context.Context) error {
	var errs []error
	for _, name := range s.registry.Names() {
		if err := s.RunNow(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) runCalculator(ctx context.Context, name string) error {
	c, err := s.registry.Get(name)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	start := time.Now()
	err = c.Run(ctx)
	metrics.RecordCalculationDuration(name, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordCalculationRun(name, "error")
		return err
	}
	metrics.RecordCalculationRun(name, "ok")
	return nil
}

// PredictedAims returns derived alliance predictions ordered by match, red
// alliance first. A positive matchNumber selects one match.
func (s *Service) PredictedAims(ctx context.Context, matchNumber int) ([]model.PredictedAim, error) {
	filter := repository.Filter{}
	if matchNumber > 0 {
		filter[model.FieldMatchNumber] = matchNumber
	}
	var aims []model.PredictedAim
	if err := s.store.Find(ctx, model.CollectionPredictedAim, filter, &aims); err != nil {
		return nil, err
	}
	sort.SliceStable(aims, func(i, j int) bool {
		if aims[i].MatchNumber != aims[j].MatchNumber {
			return aims[i].MatchNumber < aims[j].MatchNumber
		}
		return aims[i].AllianceColorIsRed && !aims[j].AllianceColorIsRed
	})
	return aims, nil
}

// Calculators returns registered calculator names.
func (s *Service) Calculators() []string {
	return s.registry.Names()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"calculators": s.registry.Names(),
	}
	if s.started {
		stats["queueLength"] = s.runQueue.Len(context.Background())
		stats["pendingRuns"] = s.pending.Size()
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	return stats
}

func (s *Service) log() logger.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.logger == nil {
		return logger.Get()
	}
	return s.logger
}
