package vehicle_test

import (
	"context"
	"io"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	apperrors "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/auth"
	auditDatamodel "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel/audit"
	vehicleDatamodel "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel/vehicle"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/vehicle"
)

var _ = Describe("Document rules", func() {
	todayDate := vehicle.NewDate(2030, 6, 15)

	DescribeTable("ValidateExpiry",
		func(raw string, code apperrors.ErrorCode) {
			err := vehicle.ValidateExpiry(raw, todayDate)
			if code == "" {
				Expect(err).To(BeNil())
				return
			}
			Expect(err).NotTo(BeNil())
			Expect(err.Code).To(Equal(code))
		},
		Entry("today is accepted", today, apperrors.ErrorCode("")),
		Entry("a future date is accepted", "2031-01-01", apperrors.ErrorCode("")),
		Entry("yesterday is rejected", yesterday, apperrors.ErrCodeExpiredDate),
		Entry("a malformed date is rejected", "15/06/2030", apperrors.ErrCodeInvalidDate),
	)

	DescribeTable("ValidateUpload",
		func(name string, size int64, code apperrors.ErrorCode) {
			err := vehicle.ValidateUpload(name, size)
			if code == "" {
				Expect(err).To(BeNil())
				return
			}
			Expect(err).NotTo(BeNil())
			Expect(err.Code).To(Equal(code))
		},
		Entry("pdf under 5MB", "rc.pdf", int64(1024), apperrors.ErrorCode("")),
		Entry("pdf at exactly 5MiB", "rc.pdf", int64(5*1024*1024), apperrors.ErrorCode("")),
		Entry("upper-case extension", "scan.JPEG", int64(10), apperrors.ErrorCode("")),
		Entry("png", "tax.png", int64(10), apperrors.ErrorCode("")),
		Entry("docx", "rc.docx", int64(10), apperrors.ErrCodeFileType),
		Entry("no extension", "rc", int64(10), apperrors.ErrCodeFileType),
		Entry("pdf at 6MB", "rc.pdf", int64(6*1024*1024), apperrors.ErrCodeFileTooLarge),
	)

	It("should format dates as YYYY-MM-DD in JSON", func() {
		d, err := vehicle.ParseDate("2030-01-02")
		Expect(err).NotTo(HaveOccurred())

		b, err := d.MarshalJSON()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).To(Equal(`"2030-01-02"`))
	})
})

var _ = Describe("VehicleService", func() {
	var (
		db      *gorm.DB
		dir     string
		service *vehicle.Service
		ctx     context.Context
		staff   auth.Principal
		owner   auth.Principal
	)

	auditDescriptions := func() []string {
		var rows []auditDatamodel.AuditLog
		Expect(db.Order("id").Find(&rows).Error).To(Succeed())
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = r.ChangeDescription
		}
		return out
	}

	BeforeEach(func() {
		ctx = context.Background()
		db = newTestDB()
		dir = GinkgoT().TempDir()
		service = newTestService(db, dir)
		staff = auth.Principal{UserID: 3, Username: "staff"}
		owner = auth.Principal{UserID: 1, Username: "owner", Capabilities: []auth.Capability{auth.CapabilityDeleteRecords}}
	})

	Describe("Create", func() {
		It("should store the vehicle, its six files and one audit row", func() {
			// When
			veh, err := service.Create(ctx, staff, completeInput("MH12AB1234", today))

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(veh.ID).To(BeNumerically(">", 0))
			for _, kind := range vehicle.DocumentKinds() {
				doc := veh.Document(kind)
				Expect(doc.File).To(Equal("documents/MH12AB1234/" + string(kind) + ".pdf"))
				Expect(filepath.Join(dir, filepath.FromSlash(doc.File))).To(BeARegularFile())
			}
			Expect(veh.Document(vehicle.KindInsurance).ExpiryDate.String()).To(Equal(today))
			Expect(veh.Document(vehicle.KindRC).ExpiryDate).To(BeNil())
			Expect(auditDescriptions()).To(Equal([]string{"create Vehicle (ID: 1)"}))
		})

		It("should require every file and the five expiry dates but not the RC expiry", func() {
			// Given
			in := completeInput("MH12AB1234", today)
			for kind, doc := range in.Documents {
				doc.File = nil
				doc.ExpiryDate = nil
				in.Documents[kind] = doc
			}

			// When
			_, err := service.Create(ctx, staff, in)

			// Then
			fields := fieldErrors(err)
			Expect(fields).To(HaveKeyWithValue("rc_file", "REQUIRED"))
			Expect(fields).To(HaveKeyWithValue("puc_file", "REQUIRED"))
			Expect(fields).To(HaveKeyWithValue("insurance_expiry_date", "REQUIRED"))
			Expect(fields).NotTo(HaveKey("rc_expiry_date"))
			Expect(auditDescriptions()).To(BeEmpty())
		})

		It("should reject expiry dates in the past", func() {
			_, err := service.Create(ctx, staff, completeInput("MH12AB1234", yesterday))

			fields := fieldErrors(err)
			Expect(fields).To(HaveKeyWithValue("tax_expiry_date", string(apperrors.ErrCodeExpiredDate)))
			var count int64
			Expect(db.Model(&vehicleDatamodel.Vehicle{}).Count(&count).Error).To(Succeed())
			Expect(count).To(BeZero())
		})

		It("should reject disallowed and oversized files", func() {
			in := completeInput("MH12AB1234", today)
			permit := in.Documents[vehicle.KindPermit]
			permit.File = upload("permit.docx", "doc")
			in.Documents[vehicle.KindPermit] = permit
			fitness := in.Documents[vehicle.KindFitness]
			fitness.File = &vehicle.Upload{Filename: "fitness.pdf", Size: 6 * 1024 * 1024, Content: nil}
			in.Documents[vehicle.KindFitness] = fitness

			_, err := service.Create(ctx, staff, in)

			fields := fieldErrors(err)
			Expect(fields).To(HaveKeyWithValue("permit_file", string(apperrors.ErrCodeFileType)))
			Expect(fields).To(HaveKeyWithValue("fitness_file", string(apperrors.ErrCodeFileTooLarge)))
		})

		It("should reject duplicate identifiers", func() {
			_, err := service.Create(ctx, staff, completeInput("MH12AB1234", today))
			Expect(err).NotTo(HaveOccurred())

			in := completeInput("MH12AB1234", today)
			in.EngineNumber = str("ENG-OTHER")
			_, err = service.Create(ctx, staff, in)

			fields := fieldErrors(err)
			Expect(fields).To(HaveKeyWithValue("registration_number", string(apperrors.ErrCodeDuplicate)))
			Expect(fields).To(HaveKeyWithValue("chassis_number", string(apperrors.ErrCodeDuplicate)))
			Expect(fields).NotTo(HaveKey("engine_number"))
		})
	})

	Describe("registration number alphabet", func() {
		It("should refuse registrations that would share a document directory", func() {
			// Given
			_, err := service.Create(ctx, staff, completeInput("MH12AB1234", today))
			Expect(err).NotTo(HaveOccurred())

			for _, reg := range []string{"MH 12 AB 1234", "MH.12.AB.1234", "MH/12/AB/1234"} {
				in := completeInput(reg, today)

				// When
				_, err := service.Create(ctx, staff, in)

				// Then
				Expect(fieldErrors(err)).To(HaveKeyWithValue("registration_number", string(apperrors.ErrCodeInvalidFormat)), reg)
			}
		})

		It("should apply the same rule when the registration is updated", func() {
			created, err := service.Create(ctx, staff, completeInput("MH12AB1234", today))
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Update(ctx, staff, created.ID, vehicle.VehicleInput{RegistrationNumber: str("MH 12 AB 1234")})

			Expect(fieldErrors(err)).To(HaveKeyWithValue("registration_number", string(apperrors.ErrCodeInvalidFormat)))
		})

		It("should accept hyphens and underscores", func() {
			veh, err := service.Create(ctx, staff, completeInput("MH-12_AB-1234", today))
			Expect(err).NotTo(HaveOccurred())
			Expect(veh.Document(vehicle.KindRC).File).To(HavePrefix("documents/MH-12_AB-1234/"))
		})
	})

	Describe("Update", func() {
		var created *vehicle.Vehicle

		BeforeEach(func() {
			var err error
			created, err = service.Create(ctx, staff, completeInput("MH12AB1234", today))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should change only the supplied fields", func() {
			// Given
			in := vehicle.VehicleInput{Documents: map[vehicle.DocumentKind]vehicle.DocumentInput{
				vehicle.KindInsurance: {Number: str("INS-NEW"), ExpiryDate: str("2031-03-01")},
				vehicle.KindTax:       {File: upload("tax.png", "png")},
			}}

			// When
			updated, err := service.Update(ctx, staff, created.ID, in)

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.EngineNumber).To(Equal(created.EngineNumber))
			Expect(updated.Document(vehicle.KindInsurance).Number).To(Equal("INS-NEW"))
			Expect(updated.Document(vehicle.KindInsurance).ExpiryDate.String()).To(Equal("2031-03-01"))
			Expect(updated.Document(vehicle.KindTax).File).To(Equal("documents/MH12AB1234/tax.png"))
			Expect(updated.Document(vehicle.KindTax).Number).To(Equal(created.Document(vehicle.KindTax).Number))
			Expect(updated.Document(vehicle.KindPUC).File).To(Equal(created.Document(vehicle.KindPUC).File))
			Expect(updated.Document(vehicle.KindPUC).ExpiryDate.String()).To(Equal(today))
			Expect(auditDescriptions()).To(Equal([]string{"create Vehicle (ID: 1)", "update Vehicle (ID: 1)"}))
		})

		It("should validate supplied expiry dates", func() {
			in := vehicle.VehicleInput{Documents: map[vehicle.DocumentKind]vehicle.DocumentInput{
				vehicle.KindPUC: {ExpiryDate: str(yesterday)},
			}}

			_, err := service.Update(ctx, staff, created.ID, in)

			Expect(fieldErrors(err)).To(HaveKeyWithValue("puc_expiry_date", string(apperrors.ErrCodeExpiredDate)))
		})

		It("should allow keeping its own identifiers", func() {
			in := vehicle.VehicleInput{RegistrationNumber: str("MH12AB1234")}

			_, err := service.Update(ctx, staff, created.ID, in)

			Expect(err).NotTo(HaveOccurred())
		})

		It("should answer not found for unknown vehicles", func() {
			_, err := service.Update(ctx, staff, 999, vehicle.VehicleInput{})

			Expect(err).To(MatchError(apperrors.ErrVehicleNotFound))
		})
	})

	Describe("Delete", func() {
		var created *vehicle.Vehicle

		BeforeEach(func() {
			var err error
			created, err = service.Create(ctx, staff, completeInput("MH12AB1234", today))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should require the delete capability", func() {
			err := service.Delete(ctx, staff, created.ID)

			Expect(err).To(MatchError(apperrors.ErrPermissionDenied))
			_, err = service.Get(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should soft delete and hide the vehicle", func() {
			// When
			err := service.Delete(ctx, owner, created.ID)

			// Then
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Get(ctx, created.ID)
			Expect(err).To(MatchError(apperrors.ErrVehicleNotFound))

			var row vehicleDatamodel.Vehicle
			Expect(db.First(&row, created.ID).Error).To(Succeed())
			Expect(row.IsDeleted).To(BeTrue())
			Expect(row.DeletedAt).NotTo(BeNil())
			Expect(auditDescriptions()).To(ContainElement("delete Vehicle (ID: 1)"))

			Expect(service.Delete(ctx, owner, created.ID)).To(MatchError(apperrors.ErrVehicleNotFound))
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			for _, c := range []struct{ reg, expiry string }{
				{"MH12AA0001", "2030-07-01"},
				{"MH12AA0003", "2030-06-20"},
				{"MH12AA0002", "2030-12-31"},
			} {
				_, err := service.Create(ctx, staff, completeInput(c.reg, c.expiry))
				Expect(err).NotTo(HaveOccurred())
			}
		})

		registrations := func(resp *vehicle.ListResponse) []string {
			out := make([]string, len(resp.Results))
			for i, v := range resp.Results {
				out[i] = v.RegistrationNumber
			}
			return out
		}

		It("should order by registration number by default", func() {
			resp, err := service.List(ctx, vehicle.ListFilter{})

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Count).To(Equal(int64(3)))
			Expect(registrations(resp)).To(Equal([]string{"MH12AA0001", "MH12AA0002", "MH12AA0003"}))
		})

		It("should order by an expiry date descending", func() {
			resp, err := service.List(ctx, vehicle.ListFilter{Ordering: "-insurance_expiry_date"})

			Expect(err).NotTo(HaveOccurred())
			Expect(registrations(resp)).To(Equal([]string{"MH12AA0002", "MH12AA0001", "MH12AA0003"}))
		})

		It("should filter by exact expiry date and registration number", func() {
			d := vehicle.NewDate(2030, 6, 20)
			resp, err := service.List(ctx, vehicle.ListFilter{TaxExpiryDate: &d})
			Expect(err).NotTo(HaveOccurred())
			Expect(registrations(resp)).To(Equal([]string{"MH12AA0003"}))

			resp, err = service.List(ctx, vehicle.ListFilter{RegistrationNumber: "MH12AA0002"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Count).To(Equal(int64(1)))
		})

		It("should paginate", func() {
			resp, err := service.List(ctx, vehicle.ListFilter{Limit: 1, Offset: 1})

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Count).To(Equal(int64(3)))
			Expect(registrations(resp)).To(Equal([]string{"MH12AA0002"}))
		})
	})

	Describe("OpenDocument", func() {
		It("should stream the stored file", func() {
			veh, err := service.Create(ctx, staff, completeInput("MH12AB1234", today))
			Expect(err).NotTo(HaveOccurred())

			doc, err := service.OpenDocument(ctx, veh.ID, vehicle.KindFitness)
			Expect(err).NotTo(HaveOccurred())
			defer doc.Body.Close()

			body, err := io.ReadAll(doc.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal("%PDF fitness"))
			Expect(doc.ContentType).To(Equal("application/pdf"))
			Expect(doc.Name).To(Equal("fitness.pdf"))
		})

		It("should answer not found for unknown kinds and missing files", func() {
			veh, err := service.Create(ctx, staff, completeInput("MH12AB1234", today))
			Expect(err).NotTo(HaveOccurred())

			_, err = service.OpenDocument(ctx, veh.ID, vehicle.DocumentKind("passport"))
			Expect(err).To(MatchError(apperrors.ErrDocumentNotFound))

			Expect(os.Remove(filepath.Join(dir, "documents", "MH12AB1234", "rc.pdf"))).To(Succeed())
			_, err = service.OpenDocument(ctx, veh.ID, vehicle.KindRC)
			Expect(err).To(MatchError(apperrors.ErrDocumentNotFound))
		})
	})
})
