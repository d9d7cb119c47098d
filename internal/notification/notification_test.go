package notification_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/events"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/notification"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []notification.Mail
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, mail notification.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, mail)
	return nil
}

func (m *recordingMailer) Sent() []notification.Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notification.Mail, len(m.sent))
	copy(out, m.sent)
	return out
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingMetrics) NotificationDone(channel string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := "sent"
	if err != nil {
		status = "failed"
	}
	c.counts[channel+"/"+status]++
}

func resetMessage() notification.PasswordResetMessage {
	return notification.PasswordResetMessage{
		Email:     "driver@example.com",
		Code:      "123456",
		ExpiresAt: time.Now().Add(10 * time.Minute),
		ValidFor:  10 * time.Minute,
	}
}

var _ = Describe("Notification", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	})

	Describe("PasswordResetMail", func() {
		It("should render the subject and body with the code and validity", func() {
			// When
			mail := notification.PasswordResetMail(resetMessage())

			// Then
			Expect(mail.To).To(Equal("driver@example.com"))
			Expect(mail.Subject).To(Equal("Password Reset OTP"))
			Expect(mail.Body).To(Equal("Your OTP code is 123456. It expires in 10 minutes."))
		})
	})

	Describe("Deliverer", func() {
		It("should send the mail and count it", func() {
			// Given
			mailer := &recordingMailer{}
			metrics := &countingMetrics{counts: map[string]int{}}
			d := notification.NewDeliverer(mailer, "log", time.Second, metrics, logger)

			// When
			err := d.Deliver(context.Background(), notification.NewPasswordResetJob(resetMessage()))

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(mailer.Sent()).To(HaveLen(1))
			Expect(metrics.counts["log/sent"]).To(Equal(1))
		})

		It("should report transport failures", func() {
			// Given
			mailer := &recordingMailer{err: errors.New("connection refused")}
			metrics := &countingMetrics{counts: map[string]int{}}
			d := notification.NewDeliverer(mailer, "smtp", time.Second, metrics, logger)

			// When
			err := d.Deliver(context.Background(), notification.NewPasswordResetJob(resetMessage()))

			// Then
			Expect(err).To(HaveOccurred())
			Expect(metrics.counts["smtp/failed"]).To(Equal(1))
		})

		It("should reject unknown job kinds", func() {
			d := notification.NewDeliverer(&recordingMailer{}, "log", time.Second, nil, logger)

			err := d.Deliver(context.Background(), notification.Job{ID: "x", Kind: "sms"})

			Expect(err).To(MatchError(ContainSubstring("unknown kind")))
		})
	})

	Describe("RedisQueue", func() {
		var (
			mr    *miniredis.Miniredis
			rdb   *redis.Client
			queue *notification.RedisQueue
		)

		BeforeEach(func() {
			var err error
			mr, err = miniredis.Run()
			Expect(err).NotTo(HaveOccurred())
			rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
			queue = notification.NewRedisQueue(rdb, "test:mail", logger)
		})

		AfterEach(func() {
			_ = rdb.Close()
			mr.Close()
		})

		It("should enqueue password reset jobs and pop them in order", func() {
			// Given
			ctx := context.Background()
			first := resetMessage()
			second := resetMessage()
			second.Email = "manager@example.com"

			// When
			Expect(queue.NotifyPasswordReset(ctx, first)).To(Succeed())
			Expect(queue.NotifyPasswordReset(ctx, second)).To(Succeed())

			// Then
			n, err := queue.Len(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(2)))

			job, err := queue.Dequeue(ctx, time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(job).NotTo(BeNil())
			Expect(job.Kind).To(Equal(notification.KindPasswordReset))
			Expect(job.PasswordReset.Email).To(Equal("driver@example.com"))
			Expect(job.PasswordReset.Code).To(Equal("123456"))

			job, err = queue.Dequeue(ctx, time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(job.PasswordReset.Email).To(Equal("manager@example.com"))
		})

		It("should return nil when the queue stays empty", func() {
			job, err := queue.Dequeue(context.Background(), 100*time.Millisecond)

			Expect(err).NotTo(HaveOccurred())
			Expect(job).To(BeNil())
		})

		It("should fail to enqueue when redis is down", func() {
			// Given
			mr.Close()

			// When
			err := queue.NotifyPasswordReset(context.Background(), resetMessage())

			// Then
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Pool", func() {
		It("should process every submitted job before shutdown returns", func() {
			// Given
			var mu sync.Mutex
			processed := map[string]bool{}
			pool := notification.NewPool(notification.PoolConfig{MaxWorkers: 3, JobQueueSize: 10}, func(ctx context.Context, job notification.Job) {
				mu.Lock()
				processed[job.ID] = true
				mu.Unlock()
			}, logger)

			// When
			var ids []string
			for i := 0; i < 8; i++ {
				job := notification.NewPasswordResetJob(resetMessage())
				ids = append(ids, job.ID)
				Expect(pool.SubmitWait(context.Background(), job)).To(Succeed())
			}
			pool.Shutdown()

			// Then
			for _, id := range ids {
				Expect(processed).To(HaveKey(id))
			}
		})

		It("should reject submissions after shutdown", func() {
			pool := notification.NewPool(notification.PoolConfig{MaxWorkers: 1}, func(context.Context, notification.Job) {}, logger)
			pool.Shutdown()

			Expect(pool.Submit(notification.NewPasswordResetJob(resetMessage()))).To(MatchError(notification.ErrPoolClosed))
		})
	})

	Describe("Consumer", func() {
		It("should deliver queued jobs through the pool", func() {
			// Given
			mr, err := miniredis.Run()
			Expect(err).NotTo(HaveOccurred())
			defer mr.Close()
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			defer rdb.Close()

			queue := notification.NewRedisQueue(rdb, "test:mail", logger)
			mailer := &recordingMailer{}
			deliverer := notification.NewDeliverer(mailer, "log", time.Second, nil, logger)
			pool := notification.NewPool(notification.PoolConfig{MaxWorkers: 2}, deliverer.Process, logger)
			consumer := notification.NewConsumer(queue, pool, logger)

			Expect(queue.NotifyPasswordReset(context.Background(), resetMessage())).To(Succeed())

			// When
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- consumer.Run(ctx) }()

			// Then
			Eventually(mailer.Sent, 3*time.Second, 20*time.Millisecond).Should(HaveLen(1))
			cancel()
			Eventually(done, 10*time.Second).Should(Receive(BeNil()))
			pool.Shutdown()
		})
	})

	Describe("BusNotifier", func() {
		It("should deliver through the event bus subscriber", func() {
			// Given
			bus := events.NewEventBus(logger)
			mailer := &recordingMailer{}
			notification.SubscribeDeliverer(bus, notification.NewDeliverer(mailer, "log", time.Second, nil, logger))
			notifier := notification.NewBusNotifier(bus)

			// A cancelled request context must not stop delivery.
			ctx, cancel := context.WithCancel(context.Background())

			// When
			Expect(notifier.NotifyPasswordReset(ctx, resetMessage())).To(Succeed())
			cancel()
			Expect(bus.Wait(context.Background())).To(Succeed())

			// Then
			sent := mailer.Sent()
			Expect(sent).To(HaveLen(1))
			Expect(sent[0].Body).To(ContainSubstring("123456"))
		})
	})
})
