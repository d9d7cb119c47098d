package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
)

func OpenRedis(cfg internal.RedisConfig) (*redis.Client, error) {
	r := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return r, nil
}

// RedisQueue is a list-backed job queue: producers LPUSH, consumers BRPOP.
// A popped job is gone, so delivery is at-most-once.
type RedisQueue struct {
	rdb    *redis.Client
	key    string
	logger *slog.Logger
}

func NewRedisQueue(rdb *redis.Client, key string, logger *slog.Logger) *RedisQueue {
	return &RedisQueue{rdb: rdb, key: key, logger: logger}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	q.logger.Debug("notification job queued", "job_id", job.ID, "kind", job.Kind, "queue", q.key)
	return nil
}

// Dequeue waits up to timeout for a job. It returns nil, nil when the wait times out.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// BRPOP replies with [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}

func (q *RedisQueue) NotifyPasswordReset(ctx context.Context, msg PasswordResetMessage) error {
	return q.Enqueue(ctx, NewPasswordResetJob(msg))
}
