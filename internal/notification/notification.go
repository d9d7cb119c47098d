package notification

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	KindPasswordReset = "password_reset"

	PasswordResetSubject = "Password Reset OTP"
)

type PasswordResetMessage struct {
	Email     string        `json:"email"`
	Code      string        `json:"code"`
	ExpiresAt time.Time     `json:"expires_at"`
	ValidFor  time.Duration `json:"valid_for"`
}

// Notifier hands a message off for delivery. Implementations must not block
// on the mail transport.
type Notifier interface {
	NotifyPasswordReset(ctx context.Context, msg PasswordResetMessage) error
}

type Mail struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

func PasswordResetMail(msg PasswordResetMessage) Mail {
	minutes := int(math.Round(msg.ValidFor.Minutes()))
	return Mail{
		To:      msg.Email,
		Subject: PasswordResetSubject,
		Body:    fmt.Sprintf("Your OTP code is %s. It expires in %d minutes.", msg.Code, minutes),
	}
}

// Job is the envelope carried on the queue.
type Job struct {
	ID            string                `json:"id"`
	Kind          string                `json:"kind"`
	EnqueuedAt    time.Time             `json:"enqueued_at"`
	PasswordReset *PasswordResetMessage `json:"password_reset,omitempty"`
}

func NewPasswordResetJob(msg PasswordResetMessage) Job {
	return Job{
		ID:            uuid.New().String(),
		Kind:          KindPasswordReset,
		EnqueuedAt:    time.Now().UTC(),
		PasswordReset: &msg,
	}
}
