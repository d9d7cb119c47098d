package deletion_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/auth"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel"
	auditDatamodel "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel/audit"
	userDatamodel "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel/user"
	vehicleDatamodel "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel/vehicle"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/deletion"
	deletionPostgres "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/deletion/postgres"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/transport"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/user"
	userPostgres "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/user/postgres"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/vehicle"
	vehiclePostgres "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/vehicle/postgres"
)

type reviewCounter struct {
	decisions []string
}

func (c *reviewCounter) DeletionReviewed(decision, module string) {
	c.decisions = append(c.decisions, decision+"/"+module)
}

var _ = Describe("DeletionService", func() {
	var (
		db      *gorm.DB
		service *deletion.Service
		counter *reviewCounter
		ctx     context.Context
		manager auth.Principal
		staff   auth.Principal
		victim  *userDatamodel.User
		slogger *slog.Logger
	)

	auditActions := func() []string {
		var rows []auditDatamodel.AuditLog
		Expect(db.Order("id").Find(&rows).Error).To(Succeed())
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = r.ChangeDescription
		}
		return out
	}

	request := func(module, objectID string) *deletion.Request {
		req, err := service.Create(ctx, staff, deletion.CreateRequestDTO{Module: module, ObjectID: objectID, Reason: "duplicate entry"})
		Expect(err).NotTo(HaveOccurred())
		return req
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(datamodel.All()...)).To(Succeed())

		victim = &userDatamodel.User{EmployeeID: "PT7", Username: "victim", Email: "victim@example.com", PasswordHash: "x", IsActive: true}
		Expect(db.Create(victim).Error).To(Succeed())

		targets := map[deletion.Module]deletionPostgres.TargetFactory{
			deletion.ModuleUser: func(tx *gorm.DB) deletion.Target {
				return deletion.MapNotFound(deletion.TargetFunc(userPostgres.NewRepository(tx).SoftDelete), user.ErrNotFound)
			},
			deletion.ModuleVehicle: func(tx *gorm.DB) deletion.Target {
				return deletion.MapNotFound(deletion.TargetFunc(vehiclePostgres.NewRepository(tx).SoftDelete), vehicle.ErrNotFound)
			},
		}
		counter = &reviewCounter{}
		service = deletion.NewService(deletionPostgres.NewRepository(db), deletionPostgres.NewUnitOfWork(db, targets), counter, slogger)

		manager = auth.Principal{UserID: 100, Username: "manager", Capabilities: auth.ManagerCapabilities()}
		staff = auth.Principal{UserID: 2, Username: "staff"}
	})

	Describe("Create", func() {
		It("should create a pending request and audit it", func() {
			// When
			req := request("challan", "CH-100")

			// Then
			Expect(req.ID).To(BeNumerically(">", 0))
			Expect(req.Status).To(Equal(deletion.StatusPending))
			Expect(req.IsApproved).To(BeFalse())
			Expect(req.RequestedBy).To(Equal(int64(2)))
			Expect(auditActions()).To(Equal([]string{"create DeletionRequest (ID: " + strconv.FormatInt(req.ID, 10) + ")"}))
		})

		It("should reject unknown modules and missing fields", func() {
			_, err := service.Create(ctx, staff, deletion.CreateRequestDTO{Module: "invoice"})

			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(appErr.Error()).To(ContainSubstring("not a valid choice"))
		})
	})

	Describe("Approve", func() {
		It("should refuse principals without deletions.approve and change nothing", func() {
			// Given
			req := request("user", strconv.FormatInt(victim.ID, 10))

			// When
			_, err := service.Approve(ctx, staff, req.ID)

			// Then
			Expect(err).To(MatchError(apperrors.ErrPermissionDenied))
			stored, err := service.Get(ctx, req.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.IsApproved).To(BeFalse())
			Expect(stored.Status).To(Equal(deletion.StatusPending))
			Expect(auditActions()).To(HaveLen(1))
		})

		It("should soft delete the target user in the same transaction", func() {
			// Given
			req := request("user", strconv.FormatInt(victim.ID, 10))

			// When
			approved, err := service.Approve(ctx, manager, req.ID)

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(approved.Status).To(Equal(deletion.StatusApproved))
			Expect(approved.IsApproved).To(BeTrue())
			Expect(*approved.ReviewedBy).To(Equal(manager.UserID))
			Expect(approved.ReviewedAt).NotTo(BeNil())

			var row userDatamodel.User
			Expect(db.First(&row, victim.ID).Error).To(Succeed())
			Expect(row.IsDeleted).To(BeTrue())
			Expect(row.IsActive).To(BeFalse())

			Expect(auditActions()).To(ContainElements(
				"approve DeletionRequest (ID: "+strconv.FormatInt(req.ID, 10)+")",
				"delete User (ID: "+strconv.FormatInt(victim.ID, 10)+")",
			))
			Expect(counter.decisions).To(Equal([]string{"approved/user"}))
		})

		It("should refuse to let an approver delete their own account", func() {
			// Given
			self := auth.Principal{UserID: victim.ID, Username: "victim", Capabilities: auth.ManagerCapabilities()}
			req := request("user", strconv.FormatInt(victim.ID, 10))

			// When
			_, err := service.Approve(ctx, self, req.ID)

			// Then
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(appErr.Message).To(ContainSubstring("your own account"))

			stored, err := service.Get(ctx, req.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(deletion.StatusPending))

			var row userDatamodel.User
			Expect(db.First(&row, victim.ID).Error).To(Succeed())
			Expect(row.IsDeleted).To(BeFalse())
			Expect(row.IsActive).To(BeTrue())
			Expect(auditActions()).To(HaveLen(1))
			Expect(counter.decisions).To(BeEmpty())
		})

		It("should soft delete a target vehicle", func() {
			// Given
			truck := &vehicleDatamodel.Vehicle{RegistrationNumber: "MH04XY1", EngineNumber: "E1", ChassisNumber: "C1"}
			Expect(db.Create(truck).Error).To(Succeed())
			req := request("vehicle", strconv.FormatInt(truck.ID, 10))

			// When
			_, err := service.Approve(ctx, manager, req.ID)

			// Then
			Expect(err).NotTo(HaveOccurred())
			var row vehicleDatamodel.Vehicle
			Expect(db.First(&row, truck.ID).Error).To(Succeed())
			Expect(row.IsDeleted).To(BeTrue())
			Expect(auditActions()).To(ContainElement("delete Vehicle (ID: " + strconv.FormatInt(truck.ID, 10) + ")"))
		})

		It("should answer conflict on a second approval", func() {
			req := request("challan", "CH-1")
			_, err := service.Approve(ctx, manager, req.ID)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Approve(ctx, manager, req.ID)

			Expect(err).To(MatchError(apperrors.ErrAlreadyReviewed))
			Expect(auditActions()).To(HaveLen(2))
		})

		It("should roll back when the target does not exist", func() {
			// Given
			req := request("user", "9999")

			// When
			_, err := service.Approve(ctx, manager, req.ID)

			// Then
			Expect(err).To(MatchError(apperrors.ErrDeletionTargetNotFound))
			stored, err := service.Get(ctx, req.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(deletion.StatusPending))
			Expect(auditActions()).To(HaveLen(1))
		})

		It("should only flip the flag for modules without a handler", func() {
			req := request("driver", "DR-9")

			approved, err := service.Approve(ctx, manager, req.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(approved.IsApproved).To(BeTrue())
			Expect(auditActions()).To(HaveLen(2))
		})

		It("should answer not found for unknown requests", func() {
			_, err := service.Approve(ctx, manager, 4242)

			Expect(err).To(MatchError(apperrors.ErrDeletionRequestNotFound))
		})
	})

	Describe("Reject", func() {
		It("should record the note and block later approval", func() {
			// Given
			req := request("user", strconv.FormatInt(victim.ID, 10))

			// When
			rejected, err := service.Reject(ctx, manager, req.ID, deletion.RejectDTO{ReviewNote: "still in use"})

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(rejected.Status).To(Equal(deletion.StatusRejected))
			Expect(rejected.ReviewNote).To(Equal("still in use"))
			Expect(rejected.IsApproved).To(BeFalse())

			_, err = service.Approve(ctx, manager, req.ID)
			Expect(err).To(MatchError(apperrors.ErrAlreadyReviewed))

			var row userDatamodel.User
			Expect(db.First(&row, victim.ID).Error).To(Succeed())
			Expect(row.IsDeleted).To(BeFalse())
		})
	})

	Describe("List", func() {
		It("should filter by status and module", func() {
			first := request("challan", "1")
			request("vehicle", "2")
			_, err := service.Approve(ctx, manager, first.ID)
			Expect(err).NotTo(HaveOccurred())

			resp, err := service.List(ctx, deletion.ListFilter{Status: "pending"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Count).To(Equal(int64(1)))
			Expect(resp.Results[0].Module).To(Equal(deletion.ModuleVehicle))

			resp, err = service.List(ctx, deletion.ListFilter{Module: "challan"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Count).To(Equal(int64(1)))
		})
	})

	Describe("Handler", func() {
		var (
			router    chi.Router
			principal auth.Principal
		)

		BeforeEach(func() {
			handler := deletion.NewHandler(transport.NewBaseHandler(slogger), service)
			router = chi.NewRouter()
			router.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
				})
			})
			router.Post("/deletion-requests", handler.Create)
			router.Post("/deletion-requests/{id}/approve", handler.Approve)
			router.Post("/deletion-requests/{id}/reject", handler.Reject)
		})

		It("should answer 403 with the permission message for staff approvals", func() {
			// Given
			principal = staff
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/deletion-requests",
				strings.NewReader(`{"module":"challan","object_id":"77","reason":"typo"}`)))
			Expect(rec.Code).To(Equal(http.StatusCreated))

			// When
			rec = httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/deletion-requests/1/approve", nil))

			// Then
			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(rec.Body.String()).To(ContainSubstring("Permission denied."))
		})

		It("should approve then answer 409 on repeat", func() {
			principal = manager
			request("other", "abc")

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/deletion-requests/1/approve", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			var body deletion.Request
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.ID).To(Equal(int64(1)))
			Expect(body.Status).To(Equal(deletion.StatusApproved))
			Expect(body.IsApproved).To(BeTrue())
			Expect(*body.ReviewedBy).To(Equal(manager.UserID))

			rec = httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/deletion-requests/1/approve", nil))
			Expect(rec.Code).To(Equal(http.StatusConflict))
		})

		It("should reject without a body", func() {
			principal = manager
			request("other", "abc")

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/deletion-requests/1/reject", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body deletion.Request
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Status).To(Equal(deletion.StatusRejected))
			Expect(body.IsApproved).To(BeFalse())
		})
	})
})
