package user_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	apperrors "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/auth"
	auditDatamodel "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel/audit"
	userDatamodel "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel/user"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/user"
	userPostgres "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/user/postgres"
)

var _ = Describe("UserService", func() {
	var (
		db        *gorm.DB
		repo      *userPostgres.Repository
		service   *user.Service
		notifier  *fakeNotifier
		passwords *auth.PasswordHasher
		now       time.Time
		ctx       context.Context
		manager   auth.Principal
		staff     auth.Principal
		staffRole *user.Role
	)

	createUser := func(username string) *user.User {
		u, err := service.CreateUser(ctx, manager, user.CreateUserDTO{
			Username: username,
			FullName: "Test " + username,
			Email:    username + "@example.com",
			Phone:    "9999999999",
			Password: "s3cure-pass",
			RoleID:   staffRole.ID,
		})
		Expect(err).NotTo(HaveOccurred())
		return u
	}

	auditCount := func(action string) int64 {
		var count int64
		Expect(db.Model(&auditDatamodel.AuditLog{}).Where("action = ?", action).Count(&count).Error).To(Succeed())
		return count
	}

	BeforeEach(func() {
		ctx = context.Background()
		db = newTestDB()
		repo = userPostgres.NewRepository(db)
		notifier = &fakeNotifier{}
		passwords = auth.NewPasswordHasher(4)
		now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		service = user.NewService(repo, userPostgres.NewUnitOfWork(db), passwords, notifier, logger,
			user.WithClock(func() time.Time { return now }),
			user.WithOTPTTL(10*time.Minute))

		staffRole = &user.Role{Name: "Staff", Description: "Back office staff"}
		Expect(repo.CreateRole(ctx, staffRole)).To(Succeed())

		manager = auth.Principal{UserID: 0, Username: "manager", Capabilities: auth.ManagerCapabilities()}
		staff = auth.Principal{UserID: 999, Username: "staff"}
	})

	Describe("CreateUser", func() {
		It("should assign sequential employee ids starting at PT1", func() {
			// When
			first := createUser("alice")
			second := createUser("bob")

			// Then
			Expect(first.EmployeeID).To(Equal("PT1"))
			Expect(second.EmployeeID).To(Equal("PT2"))
			Expect(first.IsActive).To(BeTrue())
			Expect(passwords.CheckPassword(first.PasswordHash, "s3cure-pass")).To(BeTrue())
		})

		It("should continue after an explicit employee id", func() {
			// Given
			_, err := service.CreateUser(ctx, manager, user.CreateUserDTO{
				EmployeeID: "PT10",
				Username:   "imported",
				Email:      "imported@example.com",
				Password:   "s3cure-pass",
				RoleID:     staffRole.ID,
			})
			Expect(err).NotTo(HaveOccurred())

			// When
			next := createUser("fresh")

			// Then
			Expect(next.EmployeeID).To(Equal("PT11"))
		})

		It("should seed the counter from existing employee ids", func() {
			// Given
			legacy := &userDatamodel.User{EmployeeID: "PT41", Username: "legacy", Email: "legacy@example.com", PasswordHash: "x", IsActive: true}
			Expect(db.Create(legacy).Error).To(Succeed())

			// When
			u := createUser("newcomer")

			// Then
			Expect(u.EmployeeID).To(Equal("PT42"))
		})

		It("should record exactly one audit row", func() {
			u := createUser("carol")

			var rows []auditDatamodel.AuditLog
			Expect(db.Find(&rows).Error).To(Succeed())
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].ChangeDescription).To(Equal("create User (ID: " + itoa(u.ID) + ")"))
			Expect(rows[0].UserID).To(BeNil())
		})

		It("should reject duplicate usernames and emails with field errors", func() {
			// Given
			createUser("dave")

			// When
			_, err := service.CreateUser(ctx, manager, user.CreateUserDTO{
				Username: "dave",
				Email:    "dave@example.com",
				Password: "s3cure-pass",
				RoleID:   staffRole.ID,
			})

			// Then
			Expect(err).To(HaveOccurred())
			Expect(fieldErrors(err)).To(ConsistOf("username", "email"))
		})

		It("should reject weak passwords, bad emails and unknown roles", func() {
			_, err := service.CreateUser(ctx, manager, user.CreateUserDTO{
				Username: "erin",
				Email:    "not-an-email",
				Password: "12345678",
				RoleID:   404,
			})

			Expect(fieldErrors(err)).To(ConsistOf("email", "password", "role_id"))
		})

		It("should refuse principals without users.manage", func() {
			_, err := service.CreateUser(ctx, staff, user.CreateUserDTO{
				Username: "frank",
				Email:    "frank@example.com",
				Password: "s3cure-pass",
				RoleID:   staffRole.ID,
			})

			Expect(err).To(MatchError(apperrors.ErrPermissionDenied))
			Expect(auditCount("create")).To(BeZero())
		})
	})

	Describe("Profile and updates", func() {
		var u *user.User

		BeforeEach(func() {
			u = createUser("grace")
		})

		It("should update only the profile fields of the caller", func() {
			// Given
			self := auth.Principal{UserID: u.ID, Username: u.Username}
			name := "Grace Hopper"

			// When
			profile, err := service.UpdateProfile(ctx, self, user.UpdateProfileDTO{FullName: &name})

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(profile.FullName).To(Equal("Grace Hopper"))
			Expect(profile.EmployeeID).To(Equal(u.EmployeeID))
			Expect(auditCount("update")).To(Equal(int64(1)))
		})

		It("should re-check uniqueness on profile changes", func() {
			other := createUser("heidi")
			self := auth.Principal{UserID: u.ID}
			email := other.Email

			_, err := service.UpdateProfile(ctx, self, user.UpdateProfileDTO{Email: &email})

			Expect(fieldErrors(err)).To(ConsistOf("email"))
		})

		It("should let managers deactivate users", func() {
			inactive := false

			updated, err := service.UpdateUser(ctx, manager, u.ID, user.UpdateUserDTO{IsActive: &inactive})

			Expect(err).NotTo(HaveOccurred())
			Expect(updated.IsActive).To(BeFalse())
		})

		It("should refuse updates from staff", func() {
			name := "x"

			_, err := service.UpdateUser(ctx, staff, u.ID, user.UpdateUserDTO{FullName: &name})

			Expect(err).To(MatchError(apperrors.ErrPermissionDenied))
		})
	})

	Describe("Passwords", func() {
		var (
			u    *user.User
			self auth.Principal
		)

		BeforeEach(func() {
			u = createUser("ivan")
			self = auth.Principal{UserID: u.ID, Username: u.Username}
		})

		It("should change the password when the old one matches", func() {
			err := service.ChangePassword(ctx, self, user.ChangePasswordDTO{OldPassword: "s3cure-pass", NewPassword: "even-better-1"})

			Expect(err).NotTo(HaveOccurred())
			stored, err := repo.GetByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(passwords.CheckPassword(stored.PasswordHash, "even-better-1")).To(BeTrue())
			Expect(auditCount("password_change")).To(Equal(int64(1)))
		})

		It("should report an incorrect old password on the field", func() {
			err := service.ChangePassword(ctx, self, user.ChangePasswordDTO{OldPassword: "wrong-pass", NewPassword: "even-better-1"})

			Expect(fieldErrors(err)).To(ConsistOf("old_password"))
			Expect(auditCount("password_change")).To(BeZero())
		})

		It("should let managers reset a password", func() {
			err := service.ResetPassword(ctx, manager, u.ID, user.ResetPasswordDTO{NewPassword: "reset-pass-1"})

			Expect(err).NotTo(HaveOccurred())
			Expect(auditCount("password_reset")).To(Equal(int64(1)))
		})

		It("should refuse resets without users.reset_password", func() {
			err := service.ResetPassword(ctx, staff, u.ID, user.ResetPasswordDTO{NewPassword: "reset-pass-1"})

			Expect(err).To(MatchError(apperrors.ErrPermissionDenied))
		})
	})

	Describe("Password reset by OTP", func() {
		var u *user.User

		BeforeEach(func() {
			u = createUser("judy")
		})

		It("should store a six digit code and notify the user", func() {
			// When
			err := service.RequestPasswordReset(ctx, user.RequestPasswordResetDTO{Email: u.Email})

			// Then
			Expect(err).NotTo(HaveOccurred())
			msg := notifier.last()
			Expect(msg.Email).To(Equal(u.Email))
			Expect(msg.Code).To(MatchRegexp(`^\d{6}$`))
			Expect(msg.ExpiresAt).To(Equal(now.Add(10 * time.Minute)))

			stored, err := repo.GetByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*stored.OTPCode).To(Equal(msg.Code))
		})

		It("should succeed even when the notifier fails", func() {
			notifier.err = errors.New("queue down")

			err := service.RequestPasswordReset(ctx, user.RequestPasswordResetDTO{Email: u.Email})

			Expect(err).NotTo(HaveOccurred())
		})

		It("should answer not found for unknown emails", func() {
			err := service.RequestPasswordReset(ctx, user.RequestPasswordResetDTO{Email: "nobody@example.com"})

			Expect(err).To(MatchError(apperrors.ErrUserNotFound))
		})

		It("should reset the password once with a valid code", func() {
			// Given
			Expect(service.RequestPasswordReset(ctx, user.RequestPasswordResetDTO{Email: u.Email})).To(Succeed())
			code := notifier.last().Code
			dto := user.ConfirmPasswordResetDTO{Email: u.Email, OTP: code, NewPassword: "brand-new-pass"}

			// When
			err := service.ConfirmPasswordReset(ctx, dto)

			// Then
			Expect(err).NotTo(HaveOccurred())
			stored, err := repo.GetByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(passwords.CheckPassword(stored.PasswordHash, "brand-new-pass")).To(BeTrue())
			Expect(stored.OTPCode).To(BeNil())
			Expect(stored.OTPExpiry).To(BeNil())

			var row auditDatamodel.AuditLog
			Expect(db.Where("action = ?", "password_reset").First(&row).Error).To(Succeed())
			Expect(row.UserID).To(BeNil())

			// a consumed code cannot be replayed
			Expect(service.ConfirmPasswordReset(ctx, dto)).To(MatchError(apperrors.ErrInvalidOTP))
		})

		It("should reject a wrong code", func() {
			Expect(service.RequestPasswordReset(ctx, user.RequestPasswordResetDTO{Email: u.Email})).To(Succeed())
			code := notifier.last().Code
			wrong := "000000"
			if code == wrong {
				wrong = "111111"
			}

			err := service.ConfirmPasswordReset(ctx, user.ConfirmPasswordResetDTO{Email: u.Email, OTP: wrong, NewPassword: "brand-new-pass"})

			Expect(err).To(MatchError(apperrors.ErrInvalidOTP))
		})

		It("should reject a code at or after its expiry", func() {
			Expect(service.RequestPasswordReset(ctx, user.RequestPasswordResetDTO{Email: u.Email})).To(Succeed())
			code := notifier.last().Code
			now = now.Add(10 * time.Minute)

			err := service.ConfirmPasswordReset(ctx, user.ConfirmPasswordResetDTO{Email: u.Email, OTP: code, NewPassword: "brand-new-pass"})

			Expect(err).To(MatchError(apperrors.ErrInvalidOTP))
			Expect(auditCount("password_reset")).To(BeZero())
		})
	})

	Describe("DeleteUser", func() {
		It("should soft delete and hide the user", func() {
			// Given
			u := createUser("mallory")

			// When
			err := service.DeleteUser(ctx, manager, u.ID)

			// Then
			Expect(err).NotTo(HaveOccurred())
			_, err = service.GetUser(ctx, u.ID)
			Expect(err).To(MatchError(apperrors.ErrUserNotFound))

			var row userDatamodel.User
			Expect(db.First(&row, u.ID).Error).To(Succeed())
			Expect(row.IsDeleted).To(BeTrue())
			Expect(row.IsActive).To(BeFalse())
			Expect(auditCount("delete")).To(Equal(int64(1)))
		})

		It("should refuse self deletion", func() {
			u := createUser("oscar")
			self := auth.Principal{UserID: u.ID, Capabilities: auth.ManagerCapabilities()}

			err := service.DeleteUser(ctx, self, u.ID)

			Expect(err).To(HaveOccurred())
			Expect(auditCount("delete")).To(BeZero())
		})
	})

	Describe("Roles", func() {
		It("should create roles with capabilities and derive records.delete", func() {
			role, err := service.CreateRole(ctx, manager, user.CreateRoleDTO{
				Name:         "Supervisor",
				CanDelete:    true,
				Capabilities: []string{"deletions.approve"},
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(role.ID).To(BeNumerically(">", 0))
			Expect(role.Capabilities).To(ConsistOf(auth.CapabilityApproveDeletion, auth.CapabilityDeleteRecords))

			loaded, err := service.GetRole(ctx, role.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Capabilities).To(ConsistOf(auth.CapabilityApproveDeletion, auth.CapabilityDeleteRecords))
		})

		It("should reject unknown capabilities", func() {
			_, err := service.CreateRole(ctx, manager, user.CreateRoleDTO{Name: "Odd", Capabilities: []string{"fly"}})

			Expect(fieldErrors(err)).To(ConsistOf("capabilities"))
		})

		It("should answer not found for unknown roles", func() {
			_, err := service.GetRole(ctx, 404)

			Expect(err).To(MatchError(apperrors.ErrRoleNotFound))
		})
	})
})
