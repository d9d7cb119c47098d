package vehicle_test

import (
	"log/slog"
	"os"
	"strings"
	"time"

	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/storage"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/vehicle"
	vehiclePostgres "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/vehicle/postgres"
)

// fixedNow is mid-June 2030 in UTC; "today" is 2030-06-15.
var fixedNow = time.Date(2030, time.June, 15, 10, 30, 0, 0, time.UTC)

const (
	today     = "2030-06-15"
	yesterday = "2030-06-14"
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

func newTestService(db *gorm.DB, dir string) *vehicle.Service {
	files, err := storage.NewLocalStorage(dir)
	Expect(err).NotTo(HaveOccurred())
	lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return vehicle.NewService(
		vehiclePostgres.NewRepository(db),
		vehiclePostgres.NewUnitOfWork(db),
		files,
		lg,
		vehicle.WithClock(func() time.Time { return fixedNow }),
		vehicle.WithLocation(time.UTC),
	)
}

func str(s string) *string { return &s }

func upload(name, content string) *vehicle.Upload {
	return &vehicle.Upload{Filename: name, Size: int64(len(content)), Content: strings.NewReader(content)}
}

// completeInput is a valid create form; expiry dates are set to expiry.
func completeInput(reg, expiry string) vehicle.VehicleInput {
	in := vehicle.VehicleInput{
		RegistrationNumber: str(reg),
		EngineNumber:       str("ENG-" + reg),
		ChassisNumber:      str("CH-" + reg),
		Documents:          map[vehicle.DocumentKind]vehicle.DocumentInput{},
	}
	for _, kind := range vehicle.DocumentKinds() {
		doc := vehicle.DocumentInput{
			Number: str(strings.ToUpper(string(kind)) + "-" + reg),
			File:   upload(string(kind)+".pdf", "%PDF "+string(kind)),
		}
		if kind.ExpiryRequired() {
			doc.ExpiryDate = str(expiry)
		}
		in.Documents[kind] = doc
	}
	return in
}

func fieldErrors(err error) map[string]string {
	appErr, ok := apperrors.IsAppError(err)
	Expect(ok).To(BeTrue(), "expected an AppError, got %v", err)
	details, ok := appErr.Details.(apperrors.ValidationErrors)
	Expect(ok).To(BeTrue(), "expected validation details, got %#v", appErr.Details)
	out := make(map[string]string, len(details.Errors))
	for _, e := range details.Errors {
		out[e.Field] = e.Code
	}
	return out
}
