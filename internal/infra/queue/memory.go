package queue

import (
	"context"
	"sync"
	"time"

	"github.com/digicheckout/server/internal/port/outbound"
	"github.com/digicheckout/server/internal/utils/metrics"
	"go.uber.org/zap"
)

// MemoryQueue is an in-process job queue. Delayed jobs live in timers and are
// lost on restart.
type MemoryQueue struct {
	mu sync.Mutex

	handlers map[string]outbound.JobHandler
	timers   map[string]*time.Timer
	closed   bool

	exec      *executor
	logger    *zap.Logger
	semaphore chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMemoryQueue creates a new in-process queue.
func NewMemoryQueue(cfg *Config, logger *zap.Logger, m *metrics.Metrics) *MemoryQueue {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("memory-queue")

	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryQueue{
		handlers:  make(map[string]outbound.JobHandler),
		timers:    make(map[string]*time.Timer),
		exec:      &executor{cfg: cfg, logger: logger, metrics: m},
		logger:    logger,
		semaphore: make(chan struct{}, cfg.Concurrency),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Register registers the handler for a job kind.
func (q *MemoryQueue) Register(kind string, handler outbound.JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = handler
	q.logger.Debug("registered handler", zap.String("kind", kind))
}

// Start is a no-op for the in-process queue; jobs run as soon as they are ready.
func (q *MemoryQueue) Start(ctx context.Context) error {
	q.logger.Info("starting memory queue",
		zap.Int("concurrency", cap(q.semaphore)),
		zap.Int("max_attempts", q.exec.cfg.MaxAttempts))
	return nil
}

// Enqueue submits a job for immediate execution.
func (q *MemoryQueue) Enqueue(ctx context.Context, job *outbound.Job) error {
	if err := prepare(job, q.exec.cfg); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.spawnLocked(job)
	return nil
}

// Schedule submits a job to run after delay.
func (q *MemoryQueue) Schedule(ctx context.Context, job *outbound.Job, delay time.Duration) error {
	if err := prepare(job, q.exec.cfg); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if _, ok := q.timers[job.ID]; ok {
		return ErrDuplicateJob
	}
	if delay <= 0 {
		q.spawnLocked(job)
		return nil
	}
	q.timerLocked(job, delay)
	return nil
}

// Cancel stops a delayed job that has not fired yet.
func (q *MemoryQueue) Cancel(ctx context.Context, jobID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.timers[jobID]
	if !ok {
		return false, nil
	}
	delete(q.timers, jobID)
	return t.Stop(), nil
}

// Drain stops accepting jobs, drops pending timers and waits for in-flight
// handlers. When ctx expires first, the handlers' context is cancelled.
func (q *MemoryQueue) Drain(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	dropped := 0
	for id, t := range q.timers {
		if t.Stop() {
			dropped++
		}
		delete(q.timers, id)
	}
	q.mu.Unlock()

	q.logger.Info("draining memory queue", zap.Int("dropped_delayed_jobs", dropped))

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		q.logger.Info("memory queue drained")
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

// Pending returns the number of delayed jobs waiting for their timer.
func (q *MemoryQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.timers)
}

func (q *MemoryQueue) timerLocked(job *outbound.Job, delay time.Duration) {
	q.timers[job.ID] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if _, ok := q.timers[job.ID]; !ok {
			return
		}
		delete(q.timers, job.ID)
		if q.closed {
			return
		}
		q.spawnLocked(job)
	})
}

// spawnLocked must be called with q.mu held and the queue open, so wg.Add
// never races with Drain's Wait.
func (q *MemoryQueue) spawnLocked(job *outbound.Job) {
	q.wg.Add(1)
	go q.run(job)
}

func (q *MemoryQueue) run(job *outbound.Job) {
	defer q.wg.Done()

	select {
	case <-q.ctx.Done():
		return
	case q.semaphore <- struct{}{}:
	}

	q.mu.Lock()
	handler := q.handlers[job.Kind]
	q.mu.Unlock()

	delay, retry := q.exec.execute(q.ctx, handler, job)
	<-q.semaphore

	if !retry {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue draining, retry dropped",
			zap.String("job_id", job.ID),
			zap.String("kind", job.Kind),
			zap.Int("attempts", job.Attempts))
		return
	}
	q.timerLocked(job, delay)
}

var _ outbound.JobQueuePort = (*MemoryQueue)(nil)
