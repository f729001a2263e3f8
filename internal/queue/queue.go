// Package queue implements the named summary work queue on a Redis list.
// The client is constructed in main and passed in; lifecycle is explicit
// (open on process start, closed on shutdown).
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

// DefaultName is the named work queue for summary jobs.
const DefaultName = "summary-queue"

// Job is one unit of summarization work. A job is consumed exactly once per
// successful run; retry is a new job enqueued by an explicit user action.
type Job struct {
	ID         string    `json:"id"`
	VideoID    int64     `json:"video_id"`
	Transcript string    `json:"transcript"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue is a Redis-list-backed FIFO work queue.
type Queue struct {
	rdb  *redis.Client
	name string
}

// New wraps an already-connected Redis client as a named queue.
func New(rdb *redis.Client, name string) *Queue {
	if name == "" {
		name = DefaultName
	}
	return &Queue{rdb: rdb, name: name}
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected", slog.String("addr", opts.Addr))
	return rdb, nil
}

// Enqueue pushes a job for the given video. Returns the job id.
func (q *Queue) Enqueue(ctx context.Context, videoID int64, transcript string) (string, error) {
	job := Job{
		ID:         uuid.NewString(),
		VideoID:    videoID,
		Transcript: transcript,
		EnqueuedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	if err := q.rdb.LPush(ctx, q.name, data).Err(); err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	engine.IncrJobEnqueued()
	slog.Info("job enqueued",
		slog.String("job_id", job.ID),
		slog.Int64("video_id", videoID),
		slog.String("queue", q.name))
	return job.ID, nil
}

// Dequeue blocks until a job is available or the context is canceled.
// Corrupt payloads are dropped with a warning rather than wedging the queue.
func (q *Queue) Dequeue(ctx context.Context) (Job, error) {
	for {
		res, err := q.rdb.BRPop(ctx, 5*time.Second, q.name).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			return Job{}, fmt.Errorf("dequeue: %w", err)
		}

		// BRPop returns [key, value].
		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			slog.Warn("queue: dropping corrupt job payload", slog.Any("error", err))
			continue
		}
		return job, nil
	}
}

// Len reports the number of pending jobs.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.name).Result()
}
