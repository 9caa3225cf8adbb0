package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	queueKeyPrefix = "chamalink:queue:"
	deadKeyPrefix  = "chamalink:dead:"
)

// RedisQueue implements a job queue backed by Redis lists
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates a new Redis-backed queue
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// Enqueue adds a job to the queue for its type and returns the job id
func (q *RedisQueue) Enqueue(ctx context.Context, jobType JobType, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}

	job := Job{
		ID:         uuid.New().String(),
		Type:       jobType,
		Payload:    data,
		Status:     JobStatusPending,
		MaxRetries: DefaultMaxRetries,
		CreatedAt:  time.Now(),
	}

	encoded, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.client.LPush(ctx, queueKeyPrefix+string(jobType), encoded).Err(); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	return job.ID, nil
}

// Dequeue blocks up to timeout for the next job of the given type. A nil job
// with a nil error means the timeout elapsed with nothing to process.
func (q *RedisQueue) Dequeue(ctx context.Context, jobType JobType, timeout time.Duration) (*Job, error) {
	result, err := q.client.BRPop(ctx, timeout, queueKeyPrefix+string(jobType)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}

	// BRPop returns [key, value]
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// Fail re-enqueues a failed job until its retries are exhausted, then parks
// it on the dead queue for inspection
func (q *RedisQueue) Fail(ctx context.Context, job *Job, jobErr error) error {
	job.RetryCount++
	job.Error = jobErr.Error()

	key := queueKeyPrefix + string(job.Type)
	if job.RetryCount >= job.MaxRetries {
		job.Status = JobStatusFailed
		key = deadKeyPrefix + string(job.Type)
	}

	encoded, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return q.client.LPush(ctx, key, encoded).Err()
}

// Len returns the number of jobs waiting for the given type
func (q *RedisQueue) Len(ctx context.Context, jobType JobType) (int64, error) {
	return q.client.LLen(ctx, queueKeyPrefix+string(jobType)).Result()
}
