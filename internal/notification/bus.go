package notification

import (
	"context"
	"fmt"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/events"
)

// BusNotifier delivers in-process through the event bus when no shared queue is configured.
type BusNotifier struct {
	bus *events.EventBus
}

func NewBusNotifier(bus *events.EventBus) *BusNotifier {
	return &BusNotifier{bus: bus}
}

func (n *BusNotifier) NotifyPasswordReset(ctx context.Context, msg PasswordResetMessage) error {
	return n.bus.Publish(ctx, events.NewPasswordResetRequestedEvent(msg.Email, msg.Code, msg.ExpiresAt, msg.ValidFor))
}

// SubscribeDeliverer wires the password reset event to d.
func SubscribeDeliverer(bus *events.EventBus, d *Deliverer) {
	bus.Subscribe(events.EventTypePasswordResetRequested, func(ctx context.Context, event events.Event) error {
		ev, ok := event.(*events.PasswordResetRequestedEvent)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", event)
		}
		job := NewPasswordResetJob(PasswordResetMessage{
			Email:     ev.Email,
			Code:      ev.Code,
			ExpiresAt: ev.ExpiresAt,
			ValidFor:  ev.ValidFor,
		})
		job.ID = ev.EventID()
		return d.Deliver(ctx, job)
	})
}
