package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*Job, error)
}

// Consumer moves jobs from the shared queue into the local pool.
type Consumer struct {
	source      JobSource
	pool        *Pool
	pollTimeout time.Duration
	backoff     time.Duration
	logger      *slog.Logger
}

func NewConsumer(source JobSource, pool *Pool, logger *slog.Logger) *Consumer {
	return &Consumer{
		source:      source,
		pool:        pool,
		pollTimeout: 5 * time.Second,
		backoff:     time.Second,
		logger:      logger,
	}
}

// Run blocks until ctx is cancelled. It does not shut the pool down.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("notification consumer started")
	for {
		if ctx.Err() != nil {
			c.logger.Info("notification consumer stopped")
			return nil
		}

		job, err := c.source.Dequeue(ctx, c.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("dequeue failed", "error", err)
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
			}
			continue
		}
		if job == nil {
			continue
		}

		if err := c.pool.SubmitWait(ctx, *job); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrPoolClosed) {
				c.logger.Warn("job dropped on shutdown", "job_id", job.ID)
				continue
			}
			c.logger.Error("submit failed", "job_id", job.ID, "error", err)
		}
	}
}
