// Package queue provides the job queue behind outbound.JobQueuePort.
//
// Two interchangeable drivers exist: an in-process queue for single-node
// deployments and a Redis-backed queue for multi-process deployments.
// Both share the retry policy implemented by executor.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/digicheckout/server/internal/infra/config"
	"github.com/digicheckout/server/internal/port/outbound"
	"github.com/digicheckout/server/internal/utils/logger"
	"github.com/digicheckout/server/internal/utils/metrics"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrQueueClosed is returned when a job is submitted after Drain.
	ErrQueueClosed = errors.New("queue closed")
	// ErrDuplicateJob is returned when a job id is already scheduled or running.
	ErrDuplicateJob = errors.New("job already scheduled")
)

// Config contains queue configuration.
type Config struct {
	Concurrency  int
	MaxAttempts  int
	Backoff      []time.Duration
	PollInterval time.Duration
	// Lease is how long a claimed Redis job may go unrenewed before another
	// process takes it over.
	Lease     time.Duration
	KeyPrefix string
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() *Config {
	return &Config{
		Concurrency:  5,
		MaxAttempts:  3,
		Backoff:      []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second},
		PollInterval: time.Second,
		Lease:        time.Minute,
		KeyPrefix:    "checkout:queue",
	}
}

// ConfigFrom converts the application queue config.
func ConfigFrom(cfg *config.QueueConfig) *Config {
	out := DefaultConfig()
	if cfg == nil {
		return out
	}
	if cfg.Concurrency > 0 {
		out.Concurrency = cfg.Concurrency
	}
	if cfg.MaxAttempts > 0 {
		out.MaxAttempts = cfg.MaxAttempts
	}
	if len(cfg.Backoff) > 0 {
		out.Backoff = cfg.Backoff
	}
	if cfg.PollInterval > 0 {
		out.PollInterval = cfg.PollInterval
	}
	if cfg.Lease > 0 {
		out.Lease = cfg.Lease
	}
	if cfg.KeyPrefix != "" {
		out.KeyPrefix = cfg.KeyPrefix
	}
	return out
}

// BackoffFor returns the delay before the retry that follows the given number of
// completed attempts.
func (c *Config) BackoffFor(attempts int) time.Duration {
	if len(c.Backoff) == 0 {
		return 0
	}
	i := attempts - 1
	if i < 0 {
		i = 0
	}
	if i >= len(c.Backoff) {
		i = len(c.Backoff) - 1
	}
	return c.Backoff[i]
}

// New creates the queue selected by cfg.Driver.
func New(cfg *config.QueueConfig, rdb redis.UniversalClient, logger *zap.Logger, m *metrics.Metrics) (outbound.JobQueuePort, error) {
	if cfg == nil {
		cfg = &config.QueueConfig{}
	}
	qcfg := ConfigFrom(cfg)
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryQueue(qcfg, logger, m), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("queue driver redis requires a redis client")
		}
		return NewRedisQueue(rdb, qcfg, logger, m), nil
	default:
		return nil, fmt.Errorf("unknown queue driver %q", cfg.Driver)
	}
}

// prepare fills defaults on a submitted job.
func prepare(job *outbound.Job, cfg *Config) error {
	if job == nil {
		return errors.New("nil job")
	}
	if job.Kind == "" {
		return errors.New("job kind is required")
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = cfg.MaxAttempts
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	return nil
}

// executor runs handlers and applies the retry policy.
type executor struct {
	cfg     *Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// execute runs one attempt of job. When the attempt failed and the job has
// attempts left, retry is true and delay is the backoff to wait.
// Handlers find a job-scoped logger in ctx via logger.FromContext.
func (e *executor) execute(ctx context.Context, handler outbound.JobHandler, job *outbound.Job) (delay time.Duration, retry bool) {
	e.metrics.JobStarted()
	defer e.metrics.JobFinished()

	log := e.logger.With(zap.String("job_id", job.ID), zap.String("kind", job.Kind))
	ctx = logger.ContextWithLogger(ctx, log)

	var err error
	if handler == nil {
		err = fmt.Errorf("no handler registered for job kind %q", job.Kind)
		job.Attempts = job.MaxAttempts - 1
	} else {
		err = call(ctx, handler, job)
	}

	if err == nil {
		log.Debug("job completed", zap.Int("attempt", job.Attempts+1))
		return 0, false
	}

	job.Attempts++
	if job.Attempts >= job.MaxAttempts {
		e.metrics.RecordDeadJob(job.Kind)
		log.Error("job permanently failed",
			zap.Int("attempts", job.Attempts),
			zap.Time("enqueued_at", job.EnqueuedAt),
			zap.Error(err))
		return 0, false
	}

	delay = e.cfg.BackoffFor(job.Attempts)
	e.metrics.RecordRetry(job.Kind)
	log.Warn("job failed, retrying",
		zap.Int("attempts", job.Attempts),
		zap.Int("max_attempts", job.MaxAttempts),
		zap.Duration("backoff", delay),
		zap.Error(err))
	return delay, true
}

func call(ctx context.Context, handler outbound.JobHandler, job *outbound.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panic: %v", r)
		}
	}()
	return handler(ctx, job)
}
