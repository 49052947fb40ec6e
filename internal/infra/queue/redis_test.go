package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/digicheckout/server/internal/port/outbound"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	s := miniredis.RunT(t)
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{s.Addr()}})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func startRedisQueue(t *testing.T, rdb redis.UniversalClient, cfg *Config) *RedisQueue {
	t.Helper()
	q := NewRedisQueue(rdb, cfg, zap.NewNop(), nil)
	require.NoError(t, q.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = q.Drain(ctx)
	})
	return q
}

func redisTestConfig() *Config {
	cfg := fastConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.Lease = time.Second
	cfg.KeyPrefix = "test:queue"
	return cfg
}

func TestRedisQueue_RunsAndRetries(t *testing.T) {
	rdb := newTestRedis(t)
	q := startRedisQueue(t, rdb, redisTestConfig())

	var calls atomic.Int32
	q.Register("always_fails", func(ctx context.Context, job *outbound.Job) error {
		calls.Add(1)
		return errors.New("down")
	})

	require.NoError(t, q.Enqueue(context.Background(), &outbound.Job{Kind: "always_fails"}))

	assert.Eventually(t, func() bool { return calls.Load() == 3 }, 3*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		n, _ := rdb.HLen(context.Background(), q.jobsKey).Result()
		return n == 0
	}, time.Second, 10*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())

	leased, err := rdb.ZCard(context.Background(), q.processingKey).Result()
	require.NoError(t, err)
	assert.Zero(t, leased)
}

func TestRedisQueue_Cancel(t *testing.T) {
	rdb := newTestRedis(t)
	q := startRedisQueue(t, rdb, redisTestConfig())

	var ran atomic.Bool
	q.Register("cart_reminder", func(ctx context.Context, job *outbound.Job) error {
		ran.Store(true)
		return nil
	})

	require.NoError(t, q.Schedule(context.Background(), &outbound.Job{ID: "r1", Kind: "cart_reminder"}, 100*time.Millisecond))
	err := q.Schedule(context.Background(), &outbound.Job{ID: "r1", Kind: "cart_reminder"}, time.Minute)
	assert.ErrorIs(t, err, ErrDuplicateJob)

	ok, err := q.Cancel(context.Background(), "r1")
	require.NoError(t, err)
	assert.True(t, ok)

	exists, err := rdb.HExists(context.Background(), q.jobsKey, "r1").Result()
	require.NoError(t, err)
	assert.False(t, exists)

	time.Sleep(200 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestRedisQueue_DrainRejectsNewJobs(t *testing.T) {
	q := startRedisQueue(t, newTestRedis(t), redisTestConfig())

	require.NoError(t, q.Drain(context.Background()))
	err := q.Enqueue(context.Background(), &outbound.Job{Kind: "x"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestRedisQueue_ReclaimsJobFromDeadWorker(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()
	cfg := redisTestConfig()
	cfg.Lease = 100 * time.Millisecond

	// A worker that claims the job and dies before running it.
	dead := NewRedisQueue(rdb, cfg, zap.NewNop(), nil)
	require.NoError(t, dead.Schedule(ctx, &outbound.Job{ID: "r1", Kind: "cart_reminder"}, 0))
	claimed, err := dead.claim(ctx, "r1")
	require.NoError(t, err)
	require.True(t, claimed)

	scheduled, err := rdb.ZCard(ctx, dead.scheduleKey).Result()
	require.NoError(t, err)
	assert.Zero(t, scheduled)

	// Restarted process: the leased job is still held, so scheduling it again is a no-op.
	q := startRedisQueue(t, rdb, cfg)
	var calls atomic.Int32
	q.Register("cart_reminder", func(ctx context.Context, job *outbound.Job) error {
		calls.Add(1)
		return nil
	})
	err = q.Schedule(ctx, &outbound.Job{ID: "r1", Kind: "cart_reminder"}, 0)
	assert.ErrorIs(t, err, ErrDuplicateJob)

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		n, _ := rdb.HLen(ctx, q.jobsKey).Result()
		leased, _ := rdb.ZCard(ctx, q.processingKey).Result()
		return n == 0 && leased == 0
	}, time.Second, 10*time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRedisQueue_ScheduleRequeuesOrphanedJob(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()
	q := startRedisQueue(t, rdb, redisTestConfig())

	ran := make(chan struct{}, 1)
	q.Register("cart_reminder", func(ctx context.Context, job *outbound.Job) error {
		ran <- struct{}{}
		return nil
	})

	// Stored but in neither the schedule nor the processing set.
	data, err := json.Marshal(&outbound.Job{ID: "r1", Kind: "cart_reminder", MaxAttempts: 3})
	require.NoError(t, err)
	require.NoError(t, rdb.HSet(ctx, q.jobsKey, "r1", data).Err())

	require.NoError(t, q.Schedule(ctx, &outbound.Job{ID: "r1", Kind: "cart_reminder"}, 0))

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("orphaned job did not run")
	}
}

func TestRedisQueue_RenewsLeaseOfRunningJob(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()
	cfg := redisTestConfig()
	cfg.Lease = 90 * time.Millisecond
	q := startRedisQueue(t, rdb, cfg)

	var calls atomic.Int32
	release := make(chan struct{})
	q.Register("slow", func(ctx context.Context, job *outbound.Job) error {
		calls.Add(1)
		<-release
		return nil
	})

	require.NoError(t, q.Enqueue(ctx, &outbound.Job{ID: "s1", Kind: "slow"}))
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 10*time.Millisecond)

	// Several lease periods pass while the handler is still running.
	time.Sleep(400 * time.Millisecond)
	close(release)

	assert.Eventually(t, func() bool {
		n, _ := rdb.HLen(ctx, q.jobsKey).Result()
		return n == 0
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}
