package audit

import (
	"context"
	"fmt"
	"time"
)

// Recorder appends audit entries. Implementations bound to a transaction
// commit or roll back together with the change they describe.
type Recorder interface {
	Record(ctx context.Context, actorID *int64, action Action, target Target) error
}

type Writer interface {
	Create(ctx context.Context, l *Log) error
}

type recorder struct {
	w   Writer
	now func() time.Time
}

func NewRecorder(w Writer) Recorder {
	return &recorder{w: w, now: time.Now}
}

func (r *recorder) Record(ctx context.Context, actorID *int64, action Action, target Target) error {
	entry := NewLog(actorID, action, target, r.now())
	if err := r.w.Create(ctx, entry); err != nil {
		return fmt.Errorf("record audit %s: %w", entry.ChangeDescription, err)
	}
	return nil
}
