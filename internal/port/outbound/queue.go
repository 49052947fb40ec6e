package outbound

import (
	"context"
	"encoding/json"
	"time"
)

// Job is a unit of work on the job queue.
type Job struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
}

// JobHandler processes a job. A returned error schedules a retry until the
// job runs out of attempts.
type JobHandler func(ctx context.Context, job *Job) error

// JobQueuePort is a bounded-concurrency job queue with delayed jobs and retries.
type JobQueuePort interface {
	Register(kind string, handler JobHandler)

	Enqueue(ctx context.Context, job *Job) error
	Schedule(ctx context.Context, job *Job, delay time.Duration) error

	// Cancel removes a job that has not started yet. Returns false when the
	// job is unknown or already running.
	Cancel(ctx context.Context, jobID string) (bool, error)

	Start(ctx context.Context) error

	// Drain stops accepting jobs and waits for in-flight handlers.
	Drain(ctx context.Context) error
}
