package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type MetricsRecorder interface {
	NotificationDone(channel string, err error)
}

// Deliverer turns queued jobs into mail.
type Deliverer struct {
	mailer  Mailer
	channel string
	timeout time.Duration
	metrics MetricsRecorder
	logger  *slog.Logger
}

func NewDeliverer(mailer Mailer, channel string, timeout time.Duration, metrics MetricsRecorder, logger *slog.Logger) *Deliverer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Deliverer{
		mailer:  mailer,
		channel: channel,
		timeout: timeout,
		metrics: metrics,
		logger:  logger,
	}
}

func (d *Deliverer) Deliver(ctx context.Context, job Job) error {
	var mail Mail
	switch job.Kind {
	case KindPasswordReset:
		if job.PasswordReset == nil {
			return fmt.Errorf("job %s: missing password reset payload", job.ID)
		}
		mail = PasswordResetMail(*job.PasswordReset)
	default:
		return fmt.Errorf("job %s: unknown kind %q", job.ID, job.Kind)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := d.mailer.Send(sendCtx, mail)
	if d.metrics != nil {
		d.metrics.NotificationDone(d.channel, err)
	}
	if err != nil {
		d.logger.Error("notification delivery failed",
			"job_id", job.ID,
			"kind", job.Kind,
			"error", err)
		return fmt.Errorf("deliver %s: %w", job.ID, err)
	}

	d.logger.Info("notification delivered", "job_id", job.ID, "kind", job.Kind)
	return nil
}

// Process adapts Deliver to the worker pool, which has no error channel.
func (d *Deliverer) Process(ctx context.Context, job Job) {
	_ = d.Deliver(ctx, job)
}
