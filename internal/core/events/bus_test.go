package events_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/events"
)

var _ = Describe("EventBus", func() {
	var bus *events.EventBus

	newEvent := func() *events.PasswordResetRequestedEvent {
		return events.NewPasswordResetRequestedEvent("ravi@example.com", "042042", time.Now().Add(10*time.Minute), 10*time.Minute)
	}

	BeforeEach(func() {
		bus = events.NewEventBus(slog.New(slog.NewTextHandler(GinkgoWriter, nil)))
	})

	It("should run subscribed handlers asynchronously and let Wait drain them", func() {
		// Given
		var calls atomic.Int32
		release := make(chan struct{})
		bus.Subscribe(events.EventTypePasswordResetRequested, func(ctx context.Context, event events.Event) error {
			<-release
			ev, ok := event.(*events.PasswordResetRequestedEvent)
			Expect(ok).To(BeTrue())
			Expect(ev.Code).To(Equal("042042"))
			calls.Add(1)
			return nil
		})

		// When
		Expect(bus.Publish(context.Background(), newEvent())).To(Succeed())

		// Then
		Expect(calls.Load()).To(BeZero())
		close(release)
		Expect(bus.Wait(context.Background())).To(Succeed())
		Expect(calls.Load()).To(Equal(int32(1)))
	})

	It("should keep handlers running after the publisher's context is cancelled", func() {
		// Given
		done := make(chan error, 1)
		bus.Subscribe(events.EventTypePasswordResetRequested, func(ctx context.Context, event events.Event) error {
			done <- ctx.Err()
			return nil
		})
		ctx, cancel := context.WithCancel(context.Background())

		// When
		Expect(bus.Publish(ctx, newEvent())).To(Succeed())
		cancel()

		// Then
		Eventually(done).Should(Receive(BeNil()))
	})

	It("should give up waiting when the context expires", func() {
		// Given
		block := make(chan struct{})
		DeferCleanup(func() { close(block) })
		bus.Subscribe(events.EventTypePasswordResetRequested, func(ctx context.Context, event events.Event) error {
			<-block
			return nil
		})
		Expect(bus.Publish(context.Background(), newEvent())).To(Succeed())

		// When
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		// Then
		Expect(bus.Wait(ctx)).To(MatchError(context.DeadlineExceeded))
	})

	It("should return the first handler error from PublishSync", func() {
		// Given
		boom := errors.New("smtp down")
		var second atomic.Bool
		bus.Subscribe(events.EventTypePasswordResetRequested, func(ctx context.Context, event events.Event) error {
			return boom
		})
		bus.Subscribe(events.EventTypePasswordResetRequested, func(ctx context.Context, event events.Event) error {
			second.Store(true)
			return nil
		})

		// When
		err := bus.PublishSync(context.Background(), newEvent())

		// Then
		Expect(err).To(MatchError(boom))
		Expect(second.Load()).To(BeFalse())
	})

	It("should ignore events nobody subscribed to", func() {
		Expect(bus.Publish(context.Background(), newEvent())).To(Succeed())
		Expect(bus.PublishSync(context.Background(), newEvent())).To(Succeed())
		Expect(bus.Wait(context.Background())).To(Succeed())
	})
})
