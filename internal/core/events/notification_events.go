package events

import (
	"time"

	"github.com/google/uuid"
)

const EventTypePasswordResetRequested = "notification.password_reset"

type PasswordResetRequestedEvent struct {
	BaseEvent
	Email     string        `json:"email"`
	Code      string        `json:"code"`
	ExpiresAt time.Time     `json:"expires_at"`
	ValidFor  time.Duration `json:"valid_for"`
}

func NewPasswordResetRequestedEvent(email, code string, expiresAt time.Time, validFor time.Duration) *PasswordResetRequestedEvent {
	return &PasswordResetRequestedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePasswordResetRequested,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"email":      email,
				"expires_at": expiresAt,
			},
		},
		Email:     email,
		Code:      code,
		ExpiresAt: expiresAt,
		ValidFor:  validFor,
	}
}
