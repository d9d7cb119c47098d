package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/audit"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/auth"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/common/validation"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/notification"
)

const (
	ModelUser = "User"
	ModelRole = "Role"

	notifyTimeout = 10 * time.Second
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, filter ListUsersFilter) ([]*User, int64, error)
	UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	EmployeeIDTaken(ctx context.Context, employeeID string) (bool, error)

	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	SetOTP(ctx context.Context, id int64, code string, expiry time.Time) error
	// ConsumeOTP swaps the password and clears the OTP only if code matches and
	// has not expired at now. It reports whether a row was updated.
	ConsumeOTP(ctx context.Context, id int64, code string, now time.Time, hash string) (bool, error)
	SoftDelete(ctx context.Context, id int64) error

	NextEmployeeNumber(ctx context.Context) (int64, error)
	BumpEmployeeNumber(ctx context.Context, atLeast int64) error

	GetRole(ctx context.Context, id int64) (*Role, error)
	ListRoles(ctx context.Context) ([]*Role, error)
	RoleNameTaken(ctx context.Context, name string) (bool, error)
	CreateRole(ctx context.Context, r *Role) error
}

// Tx is the set of collaborators bound to one database transaction.
type Tx struct {
	Users Repository
	Audit audit.Recorder
}

type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

type PasswordHasher interface {
	HashPassword(password string) (string, error)
	CheckPassword(hash, password string) bool
}

type Service struct {
	repo      Repository
	uow       UnitOfWork
	passwords PasswordHasher
	notifier  notification.Notifier
	otpTTL    time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithOTPTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.otpTTL = ttl
		}
	}
}

func NewService(repo Repository, uow UnitOfWork, passwords PasswordHasher, notifier notification.Notifier, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		uow:       uow,
		passwords: passwords,
		notifier:  notifier,
		otpTTL:    10 * time.Minute,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateUser(ctx context.Context, p auth.Principal, dto CreateUserDTO) (*User, error) {
	if !p.Can(auth.CapabilityManageUsers) {
		return nil, apperrors.ErrPermissionDenied
	}

	dto.Normalize()
	v := dto.validator()
	if err := s.checkUnique(ctx, v, dto.Username, dto.Email, 0); err != nil {
		return nil, err
	}
	if dto.EmployeeID != "" {
		taken, err := s.repo.EmployeeIDTaken(ctx, dto.EmployeeID)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to check employee id", err)
		}
		if taken {
			v.Add("employee_id", "user with this employee id already exists.", apperrors.ErrCodeDuplicate)
		}
	}
	role, err := s.lookupRole(ctx, dto.RoleID)
	if err != nil {
		return nil, err
	}
	if role == nil && dto.RoleID != 0 {
		v.Add("role_id", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", dto.RoleID), apperrors.ErrCodeInvalidFormat)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	hash, err := s.passwords.HashPassword(dto.Password)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash password", err)
	}

	u := &User{
		Username:     dto.Username,
		FullName:     dto.FullName,
		Email:        dto.Email,
		Phone:        dto.Phone,
		PasswordHash: hash,
		RoleID:       &role.ID,
		Role:         role,
		IsActive:     true,
	}

	err = s.uow.WithinTx(ctx, func(tx Tx) error {
		if dto.EmployeeID != "" {
			n, _ := ParseEmployeeID(dto.EmployeeID)
			if err := tx.Users.BumpEmployeeNumber(ctx, n); err != nil {
				return err
			}
			u.EmployeeID = dto.EmployeeID
		} else {
			n, err := tx.Users.NextEmployeeNumber(ctx)
			if err != nil {
				return err
			}
			u.EmployeeID = FormatEmployeeID(n)
		}

		if err := tx.Users.Create(ctx, u); err != nil {
			return err
		}
		return tx.Audit.Record(ctx, p.ActorID(), audit.ActionCreate, audit.TargetOf(ModelUser, u.ID))
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create user", "error", err, "username", u.Username)
		return nil, apperrors.NewInternalError("failed to create user", err)
	}

	s.logger.InfoContext(ctx, "user created", "user_id", u.ID, "employee_id", u.EmployeeID)
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, filter ListUsersFilter) (*ListUsersResponse, error) {
	filter.Normalize()
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list users", "error", err)
		return nil, apperrors.NewInternalError("failed to list users", err)
	}
	return &ListUsersResponse{Count: total, Results: users}, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.notFoundOr(ctx, err, "failed to get user")
	}
	return u, nil
}

func (s *Service) GetProfile(ctx context.Context, p auth.Principal) (*Profile, error) {
	u, err := s.GetUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return u.Profile(), nil
}

func (s *Service) UpdateProfile(ctx context.Context, p auth.Principal, dto UpdateProfileDTO) (*Profile, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.GetUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	v := validation.NewValidator()
	username, email := "", ""
	if dto.Username != nil && *dto.Username != u.Username {
		username = strings.TrimSpace(*dto.Username)
	}
	if dto.Email != nil && *dto.Email != u.Email {
		email = strings.TrimSpace(*dto.Email)
	}
	if err := s.checkUnique(ctx, v, username, email, u.ID); err != nil {
		return nil, err
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if dto.Username != nil {
		u.Username = strings.TrimSpace(*dto.Username)
	}
	if dto.FullName != nil {
		u.FullName = strings.TrimSpace(*dto.FullName)
	}
	if dto.Email != nil {
		u.Email = strings.TrimSpace(*dto.Email)
	}
	if dto.Phone != nil {
		u.Phone = strings.TrimSpace(*dto.Phone)
	}

	if err := s.save(ctx, p, u); err != nil {
		return nil, err
	}
	return u.Profile(), nil
}

func (s *Service) UpdateUser(ctx context.Context, p auth.Principal, id int64, dto UpdateUserDTO) (*User, error) {
	if !p.Can(auth.CapabilityManageUsers) {
		return nil, apperrors.ErrPermissionDenied
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	v := validation.NewValidator()
	email := ""
	if dto.Email != nil && *dto.Email != u.Email {
		email = strings.TrimSpace(*dto.Email)
	}
	if err := s.checkUnique(ctx, v, "", email, u.ID); err != nil {
		return nil, err
	}
	if dto.RoleID != nil {
		role, err := s.lookupRole(ctx, *dto.RoleID)
		if err != nil {
			return nil, err
		}
		if role == nil {
			v.Add("role_id", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *dto.RoleID), apperrors.ErrCodeInvalidFormat)
		} else {
			u.RoleID = &role.ID
			u.Role = role
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if dto.FullName != nil {
		u.FullName = strings.TrimSpace(*dto.FullName)
	}
	if dto.Email != nil {
		u.Email = strings.TrimSpace(*dto.Email)
	}
	if dto.Phone != nil {
		u.Phone = strings.TrimSpace(*dto.Phone)
	}
	if dto.IsActive != nil {
		u.IsActive = *dto.IsActive
	}

	if err := s.save(ctx, p, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) ChangePassword(ctx context.Context, p auth.Principal, dto ChangePasswordDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	u, err := s.GetUser(ctx, p.UserID)
	if err != nil {
		return err
	}
	if !s.passwords.CheckPassword(u.PasswordHash, dto.OldPassword) {
		return apperrors.NewValidationFieldError("old_password", "Incorrect.", apperrors.ErrCodeIncorrectPassword)
	}

	return s.setPassword(ctx, p.ActorID(), u.ID, dto.NewPassword, audit.ActionPasswordChange)
}

func (s *Service) ResetPassword(ctx context.Context, p auth.Principal, id int64, dto ResetPasswordDTO) error {
	if !p.Can(auth.CapabilityResetPasswords) {
		return apperrors.ErrPermissionDenied
	}
	if err := dto.Validate(); err != nil {
		return err
	}

	u, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}

	return s.setPassword(ctx, p.ActorID(), u.ID, dto.NewPassword, audit.ActionPasswordReset)
}

func (s *Service) DeleteUser(ctx context.Context, p auth.Principal, id int64) error {
	if !p.Can(auth.CapabilityManageUsers) {
		return apperrors.ErrPermissionDenied
	}
	if p.UserID == id {
		return apperrors.NewValidationError("You cannot delete your own account.", apperrors.ErrCodeValidationFailed)
	}

	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}

	err := s.uow.WithinTx(ctx, func(tx Tx) error {
		if err := tx.Users.SoftDelete(ctx, id); err != nil {
			return err
		}
		return tx.Audit.Record(ctx, p.ActorID(), audit.ActionDelete, audit.TargetOf(ModelUser, id))
	})
	if err != nil {
		return s.notFoundOr(ctx, err, "failed to delete user")
	}

	s.logger.InfoContext(ctx, "user deleted", "user_id", id)
	return nil
}

// RequestPasswordReset stores a fresh OTP and hands it to the notifier. Delivery
// failures are logged only; the caller always sees success once the OTP is saved.
func (s *Service) RequestPasswordReset(ctx context.Context, dto RequestPasswordResetDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	u, err := s.repo.GetByEmail(ctx, strings.TrimSpace(dto.Email))
	if err != nil {
		return s.notFoundOr(ctx, err, "failed to look up user")
	}

	code, err := GenerateOTP()
	if err != nil {
		return apperrors.NewInternalError("failed to generate otp", err)
	}
	expiry := s.now().Add(s.otpTTL)
	if err := s.repo.SetOTP(ctx, u.ID, code, expiry); err != nil {
		s.logger.ErrorContext(ctx, "failed to store otp", "error", err, "user_id", u.ID)
		return apperrors.NewInternalError("failed to store otp", err)
	}

	nctx, cancel := apperrors.Detached(ctx, notifyTimeout)
	defer cancel()
	msg := notification.PasswordResetMessage{
		Email:     u.Email,
		Code:      code,
		ExpiresAt: expiry,
		ValidFor:  s.otpTTL,
	}
	if err := s.notifier.NotifyPasswordReset(nctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "failed to hand off password reset mail", "error", err, "user_id", u.ID)
	}

	s.logger.InfoContext(ctx, "password reset requested", "user_id", u.ID)
	return nil
}

func (s *Service) ConfirmPasswordReset(ctx context.Context, dto ConfirmPasswordResetDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	u, err := s.repo.GetByEmail(ctx, strings.TrimSpace(dto.Email))
	if err != nil {
		return s.notFoundOr(ctx, err, "failed to look up user")
	}

	now := s.now()
	if !u.OTPValid(dto.OTP, now) {
		return apperrors.ErrInvalidOTP
	}

	hash, err := s.passwords.HashPassword(dto.NewPassword)
	if err != nil {
		return apperrors.NewInternalError("failed to hash password", err)
	}

	var consumed bool
	err = s.uow.WithinTx(ctx, func(tx Tx) error {
		ok, err := tx.Users.ConsumeOTP(ctx, u.ID, dto.OTP, now, hash)
		if err != nil || !ok {
			return err
		}
		consumed = true
		return tx.Audit.Record(ctx, nil, audit.ActionPasswordReset, audit.TargetOf(ModelUser, u.ID))
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to reset password", "error", err, "user_id", u.ID)
		return apperrors.NewInternalError("failed to reset password", err)
	}
	if !consumed {
		return apperrors.ErrInvalidOTP
	}

	s.logger.InfoContext(ctx, "password reset via otp", "user_id", u.ID)
	return nil
}

func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list roles", err)
	}
	return roles, nil
}

func (s *Service) GetRole(ctx context.Context, id int64) (*Role, error) {
	r, err := s.repo.GetRole(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return nil, apperrors.ErrRoleNotFound
		}
		return nil, apperrors.NewInternalError("failed to get role", err)
	}
	return r, nil
}

func (s *Service) CreateRole(ctx context.Context, p auth.Principal, dto CreateRoleDTO) (*Role, error) {
	if !p.Can(auth.CapabilityManageUsers) {
		return nil, apperrors.ErrPermissionDenied
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(dto.Name)
	taken, err := s.repo.RoleNameTaken(ctx, name)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to check role name", err)
	}
	if taken {
		return nil, apperrors.NewValidationFieldError("name", "role with this name already exists.", apperrors.ErrCodeDuplicate)
	}

	r := &Role{
		Name:        name,
		Description: dto.Description,
		CanDelete:   dto.CanDelete,
	}
	err = s.uow.WithinTx(ctx, func(tx Tx) error {
		if err := tx.Users.CreateRole(ctx, RoleFromCapabilities(r, dto.capabilities())); err != nil {
			return err
		}
		return tx.Audit.Record(ctx, p.ActorID(), audit.ActionCreate, audit.TargetOf(ModelRole, r.ID))
	})
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create role", err)
	}
	return r, nil
}

// RoleFromCapabilities sets caps on r, deriving records.delete from CanDelete.
func RoleFromCapabilities(r *Role, caps []auth.Capability) *Role {
	r.Capabilities = auth.ParseCapabilities(auth.FormatCapabilities(caps), r.CanDelete)
	return r
}

func (s *Service) save(ctx context.Context, p auth.Principal, u *User) error {
	err := s.uow.WithinTx(ctx, func(tx Tx) error {
		if err := tx.Users.Update(ctx, u); err != nil {
			return err
		}
		return tx.Audit.Record(ctx, p.ActorID(), audit.ActionUpdate, audit.TargetOf(ModelUser, u.ID))
	})
	if err != nil {
		return s.notFoundOr(ctx, err, "failed to update user")
	}
	return nil
}

func (s *Service) setPassword(ctx context.Context, actor *int64, id int64, password string, action audit.Action) error {
	hash, err := s.passwords.HashPassword(password)
	if err != nil {
		return apperrors.NewInternalError("failed to hash password", err)
	}

	err = s.uow.WithinTx(ctx, func(tx Tx) error {
		if err := tx.Users.UpdatePassword(ctx, id, hash); err != nil {
			return err
		}
		return tx.Audit.Record(ctx, actor, action, audit.TargetOf(ModelUser, id))
	})
	if err != nil {
		return s.notFoundOr(ctx, err, "failed to update password")
	}
	return nil
}

func (s *Service) checkUnique(ctx context.Context, v *validation.ValidationBuilder, username, email string, excludeID int64) error {
	if username != "" {
		taken, err := s.repo.UsernameTaken(ctx, username, excludeID)
		if err != nil {
			return apperrors.NewInternalError("failed to check username", err)
		}
		if taken {
			v.Add("username", "A user with that username already exists.", apperrors.ErrCodeDuplicate)
		}
	}
	if email != "" {
		taken, err := s.repo.EmailTaken(ctx, email, excludeID)
		if err != nil {
			return apperrors.NewInternalError("failed to check email", err)
		}
		if taken {
			v.Add("email", "user with this email already exists.", apperrors.ErrCodeDuplicate)
		}
	}
	return nil
}

// lookupRole returns nil, nil when id is zero or unknown.
func (s *Service) lookupRole(ctx context.Context, id int64) (*Role, error) {
	if id == 0 {
		return nil, nil
	}
	r, err := s.repo.GetRole(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return nil, nil
		}
		return nil, apperrors.NewInternalError("failed to load role", err)
	}
	return r, nil
}

func (s *Service) notFoundOr(ctx context.Context, err error, msg string) error {
	if errors.Is(err, ErrNotFound) {
		return apperrors.ErrUserNotFound
	}
	if _, ok := apperrors.IsAppError(err); ok {
		return err
	}
	s.logger.ErrorContext(ctx, msg, "error", err)
	return apperrors.NewInternalError(msg, err)
}
