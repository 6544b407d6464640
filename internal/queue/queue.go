package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Job is a unit of maintenance work handed to the janitor worker. Today the
// only kind is a sweep job carrying a session's expiry time, published when
// the session is created so the worker can purge right after it lapses.
type Job struct {
	Kind string
	Body []byte
}

// SweepKind labels jobs that ask the worker to purge expired sessions.
const SweepKind = "sweep"

// NewSweepJob builds a sweep job for a session expiring at the given time.
func NewSweepJob(expiresAt time.Time) Job {
	return Job{Kind: SweepKind, Body: []byte(expiresAt.UTC().Format(time.RFC3339))}
}

// SweepTime extracts the expiry a sweep job was scheduled for.
func (j Job) SweepTime() (time.Time, error) {
	return time.Parse(time.RFC3339, string(j.Body))
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, job Job) error
	Consume(ctx context.Context) (<-chan Job, error)
}

// InMemory is a minimal channel-backed queue for dev/testing.
type InMemory struct {
	ch chan Job
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Job, size)}
}

// Publish enqueues a job.
func (q *InMemory) Publish(ctx context.Context, job Job) error {
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan Job, error) {
	out := make(chan Job)
	go func() {
		defer close(out)
		for {
			select {
			case job := <-q.ch:
				out <- job
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue implements a simple Redis list-backed queue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "rollcall:jobs"
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues a job.
func (q *RedisQueue) Publish(ctx context.Context, job Job) error {
	return q.client.LPush(ctx, q.key, serialize(job)).Err()
}

// Consume streams jobs using BRPOP.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Job, error) {
	out := make(chan Job)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) == 2 {
				if job, err := deserialize(res[1]); err == nil {
					out <- job
				}
			}
		}
	}()
	return out, nil
}

// serialize is a tiny helper to store jobs as Kind|Body.
func serialize(job Job) string {
	return job.Kind + "|" + string(job.Body)
}

func deserialize(s string) (Job, error) {
	for i, r := range s {
		if r == '|' {
			return Job{Kind: s[:i], Body: []byte(s[i+1:])}, nil
		}
	}
	return Job{Body: []byte(s)}, nil
}
