package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/digicheckout/server/internal/port/outbound"
	"github.com/digicheckout/server/internal/utils/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	scheduleHeld     = 0
	scheduleCreated  = 1
	scheduleRequeued = 2

	reapBatch = 100
)

// scheduleScript stores a new job. A job already in the hash is left alone
// while it is scheduled or processing, and scheduled again when it is in
// neither set.
var scheduleScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 1 then
	redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
	return 1
end
if redis.call('ZSCORE', KEYS[2], ARGV[1]) or redis.call('ZSCORE', KEYS[3], ARGV[1]) then
	return 0
end
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
return 2
`)

var claimScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
return 1
`)

var reapScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, id in ipairs(ids) do
	redis.call('ZREM', KEYS[1], id)
	redis.call('ZADD', KEYS[2], ARGV[1], id)
end
return #ids
`)

// RedisQueue is a durable job queue shared by several processes.
//
// Jobs are stored as JSON in the <prefix>:jobs hash and ordered by run time
// in the <prefix>:schedule sorted set. A poller claims a due job by moving it
// to the <prefix>:processing sorted set, scored by lease expiry, so exactly one
// process runs each job. Running jobs renew their lease. Jobs whose lease ran
// out belong to a dead process and are moved back to the schedule.
type RedisQueue struct {
	rdb           redis.UniversalClient
	jobsKey       string
	scheduleKey   string
	processingKey string

	mu       sync.Mutex
	handlers map[string]outbound.JobHandler
	started  bool
	closed   bool

	exec      *executor
	logger    *zap.Logger
	semaphore chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	stopCh chan struct{}
	poller sync.WaitGroup
	wg     sync.WaitGroup
}

// NewRedisQueue creates a new Redis-backed queue.
func NewRedisQueue(rdb redis.UniversalClient, cfg *Config, logger *zap.Logger, m *metrics.Metrics) *RedisQueue {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Lease <= 0 || cfg.PollInterval <= 0 {
		c := *cfg
		if c.Lease <= 0 {
			c.Lease = DefaultConfig().Lease
		}
		if c.PollInterval <= 0 {
			c.PollInterval = DefaultConfig().PollInterval
		}
		cfg = &c
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("redis-queue")

	ctx, cancel := context.WithCancel(context.Background())
	return &RedisQueue{
		rdb:           rdb,
		jobsKey:       cfg.KeyPrefix + ":jobs",
		scheduleKey:   cfg.KeyPrefix + ":schedule",
		processingKey: cfg.KeyPrefix + ":processing",
		handlers:      make(map[string]outbound.JobHandler),
		exec:          &executor{cfg: cfg, logger: logger, metrics: m},
		logger:        logger,
		semaphore:     make(chan struct{}, cfg.Concurrency),
		ctx:           ctx,
		cancel:        cancel,
		stopCh:        make(chan struct{}),
	}
}

// Register registers the handler for a job kind.
func (q *RedisQueue) Register(kind string, handler outbound.JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = handler
	q.logger.Debug("registered handler", zap.String("kind", kind))
}

// Start launches the poller.
func (q *RedisQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if q.started {
		return nil
	}
	if err := q.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	q.started = true

	q.logger.Info("starting redis queue",
		zap.String("schedule_key", q.scheduleKey),
		zap.Int("concurrency", cap(q.semaphore)),
		zap.Duration("poll_interval", q.exec.cfg.PollInterval),
		zap.Duration("lease", q.exec.cfg.Lease))

	q.poller.Add(1)
	go q.poll()
	return nil
}

// Enqueue submits a job for immediate execution.
func (q *RedisQueue) Enqueue(ctx context.Context, job *outbound.Job) error {
	return q.Schedule(ctx, job, 0)
}

// Schedule stores a job to run after delay.
func (q *RedisQueue) Schedule(ctx context.Context, job *outbound.Job, delay time.Duration) error {
	if err := prepare(job, q.exec.cfg); err != nil {
		return err
	}
	if q.isClosed() {
		return ErrQueueClosed
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	score := time.Now().Add(delay).UnixMilli()
	res, err := scheduleScript.Run(ctx, q.rdb,
		[]string{q.jobsKey, q.scheduleKey, q.processingKey},
		job.ID, data, score).Int()
	if err != nil {
		return fmt.Errorf("schedule job: %w", err)
	}
	switch res {
	case scheduleHeld:
		return ErrDuplicateJob
	case scheduleRequeued:
		q.logger.Warn("requeued orphaned job",
			zap.String("job_id", job.ID),
			zap.String("kind", job.Kind))
	}
	return nil
}

// Cancel removes a job that has not been claimed yet.
func (q *RedisQueue) Cancel(ctx context.Context, jobID string) (bool, error) {
	removed, err := q.rdb.ZRem(ctx, q.scheduleKey, jobID).Result()
	if err != nil {
		return false, fmt.Errorf("unschedule job: %w", err)
	}
	if removed == 0 {
		return false, nil
	}
	if err := q.rdb.HDel(ctx, q.jobsKey, jobID).Err(); err != nil {
		return true, fmt.Errorf("delete job: %w", err)
	}
	return true, nil
}

// Drain stops the poller and waits for in-flight handlers. Scheduled jobs stay
// in Redis for the next process.
func (q *RedisQueue) Drain(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.stopCh)
	q.mu.Unlock()

	q.logger.Info("draining redis queue")
	q.poller.Wait()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		q.logger.Info("redis queue drained")
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

func (q *RedisQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *RedisQueue) poll() {
	defer q.poller.Done()

	ticker := time.NewTicker(q.exec.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ticker.C:
			if err := q.reapExpired(); err != nil {
				q.logger.Warn("reap expired leases failed", zap.Error(err))
			}
			if err := q.claimDue(); err != nil {
				q.logger.Warn("poll failed", zap.Error(err))
			}
		}
	}
}

// claimDue claims as many due jobs as there are free handler slots.
func (q *RedisQueue) claimDue() error {
	free := cap(q.semaphore) - len(q.semaphore)
	if free <= 0 {
		return nil
	}

	ids, err := q.rdb.ZRangeByScore(q.ctx, q.scheduleKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(time.Now().UnixMilli(), 10),
		Count: int64(free),
	}).Result()
	if err != nil {
		return fmt.Errorf("list due jobs: %w", err)
	}

	for _, id := range ids {
		select {
		case <-q.stopCh:
			return nil
		case q.semaphore <- struct{}{}:
		}

		claimed, err := q.claim(q.ctx, id)
		if err != nil || !claimed {
			<-q.semaphore
			if err != nil {
				return err
			}
			continue
		}

		job, err := q.load(id)
		if err != nil {
			<-q.semaphore
			q.logger.Error("claimed job is unreadable", zap.String("job_id", id), zap.Error(err))
			q.release(id, nil, 0)
			continue
		}

		q.wg.Add(1)
		go q.run(job)
	}
	return nil
}

// claim moves a due job from the schedule to the processing set.
func (q *RedisQueue) claim(ctx context.Context, id string) (bool, error) {
	expires := time.Now().Add(q.exec.cfg.Lease).UnixMilli()
	n, err := claimScript.Run(ctx, q.rdb, []string{q.scheduleKey, q.processingKey}, id, expires).Int()
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	return n == 1, nil
}

// reapExpired returns jobs whose lease expired to the schedule.
func (q *RedisQueue) reapExpired() error {
	n, err := reapScript.Run(q.ctx, q.rdb, []string{q.processingKey, q.scheduleKey},
		time.Now().UnixMilli(), reapBatch).Int()
	if err != nil {
		return err
	}
	if n > 0 {
		q.logger.Warn("requeued jobs with expired lease", zap.Int("count", n))
	}
	return nil
}

func (q *RedisQueue) load(id string) (*outbound.Job, error) {
	data, err := q.rdb.HGet(q.ctx, q.jobsKey, id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("job %s missing from hash", id)
		}
		return nil, err
	}
	var job outbound.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

func (q *RedisQueue) run(job *outbound.Job) {
	defer q.wg.Done()
	defer func() { <-q.semaphore }()

	q.mu.Lock()
	handler := q.handlers[job.Kind]
	q.mu.Unlock()

	stop := make(chan struct{})
	renewed := make(chan struct{})
	go q.renewLease(job.ID, stop, renewed)

	delay, retry := q.exec.execute(q.ctx, handler, job)
	close(stop)
	<-renewed

	if !retry {
		q.release(job.ID, nil, 0)
		return
	}
	// Retries go back to Redis even while draining; another process picks them up.
	q.release(job.ID, job, delay)
}

// release ends a claim. A nil job is deleted, otherwise it is stored and
// scheduled again after delay.
func (q *RedisQueue) release(id string, job *outbound.Job, delay time.Duration) {
	ctx := context.Background()

	var data []byte
	if job != nil {
		var err error
		if data, err = json.Marshal(job); err != nil {
			q.logger.Error("failed to marshal job", zap.String("job_id", id), zap.Error(err))
			return
		}
	}

	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, q.processingKey, id)
		if job == nil {
			pipe.HDel(ctx, q.jobsKey, id)
			return nil
		}
		pipe.HSet(ctx, q.jobsKey, id, data)
		pipe.ZAdd(ctx, q.scheduleKey, redis.Z{
			Score:  float64(time.Now().Add(delay).UnixMilli()),
			Member: id,
		})
		return nil
	})
	if err != nil {
		q.logger.Error("failed to release job", zap.String("job_id", id), zap.Error(err))
	}
}

// renewLease keeps the processing entry of a running job ahead of the reaper.
func (q *RedisQueue) renewLease(id string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(q.exec.cfg.Lease / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			expires := time.Now().Add(q.exec.cfg.Lease).UnixMilli()
			err := q.rdb.ZAddXX(context.Background(), q.processingKey, redis.Z{
				Score:  float64(expires),
				Member: id,
			}).Err()
			if err != nil {
				q.logger.Warn("renew lease failed", zap.String("job_id", id), zap.Error(err))
			}
		}
	}
}

var _ outbound.JobQueuePort = (*RedisQueue)(nil)
