package user_test

import (
	"context"
	"errors"
	"strconv"
	"sync"

	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/notification"
)

func newTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	Expect(err).NotTo(HaveOccurred())
	sqlDB, err := db.DB()
	Expect(err).NotTo(HaveOccurred())
	sqlDB.SetMaxOpenConns(1)
	Expect(db.AutoMigrate(datamodel.All()...)).To(Succeed())
	return db
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []notification.PasswordResetMessage
	err      error
}

func (n *fakeNotifier) NotifyPasswordReset(ctx context.Context, msg notification.PasswordResetMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return n.err
}

func (n *fakeNotifier) last() notification.PasswordResetMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	Expect(n.messages).NotTo(BeEmpty())
	return n.messages[len(n.messages)-1]
}

// fieldErrors lists the fields named in a validation error.
func fieldErrors(err error) []string {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return nil
	}
	details, ok := appErr.Details.(apperrors.ValidationErrors)
	if !ok {
		return nil
	}
	fields := make([]string, 0, len(details.Errors))
	for _, e := range details.Errors {
		fields = append(fields, e.Field)
	}
	return fields
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
