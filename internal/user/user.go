package user

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/auth"
	userDatamodel "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/datamodel/user"
)

const (
	EmployeeIDPrefix = "PT"
	OTPLength        = 6
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrRoleNotFound = errors.New("role not found")
)

type Role struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	CanDelete    bool              `json:"can_delete"`
	Capabilities []auth.Capability `json:"capabilities"`
	CreatedAt    time.Time         `json:"created_at"`
}

type User struct {
	ID           int64      `json:"id"`
	EmployeeID   string     `json:"employee_id"`
	Username     string     `json:"username"`
	FullName     string     `json:"full_name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	PasswordHash string     `json:"-"`
	RoleID       *int64     `json:"role_id"`
	Role         *Role      `json:"role"`
	IsActive     bool       `json:"is_active"`
	IsDeleted    bool       `json:"is_deleted"`
	OTPCode      *string    `json:"-"`
	OTPExpiry    *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Profile is the self-service view of a user.
type Profile struct {
	ID         int64  `json:"id"`
	EmployeeID string `json:"employee_id"`
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Role       *Role  `json:"role"`
}

func (u *User) Profile() *Profile {
	return &Profile{
		ID:         u.ID,
		EmployeeID: u.EmployeeID,
		Username:   u.Username,
		FullName:   u.FullName,
		Email:      u.Email,
		Phone:      u.Phone,
		Role:       u.Role,
	}
}

// OTPValid reports whether code matches the stored OTP and now is before its expiry.
func (u *User) OTPValid(code string, now time.Time) bool {
	if u.OTPCode == nil || u.OTPExpiry == nil || code == "" {
		return false
	}
	return *u.OTPCode == code && now.Before(*u.OTPExpiry)
}

func FormatEmployeeID(n int64) string {
	return EmployeeIDPrefix + strconv.FormatInt(n, 10)
}

// ParseEmployeeID extracts n from "PTn".
func ParseEmployeeID(id string) (int64, bool) {
	if !strings.HasPrefix(id, EmployeeIDPrefix) {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(id, EmployeeIDPrefix), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// GenerateOTP returns a uniformly random 6 digit code, leading zeros kept.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", OTPLength, n.Int64()), nil
}

func RoleToDataModel(r *Role) *userDatamodel.Role {
	return &userDatamodel.Role{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		CanDelete:    r.CanDelete,
		Capabilities: auth.FormatCapabilities(r.Capabilities),
		CreatedAt:    r.CreatedAt,
	}
}

func RoleFromDataModel(r *userDatamodel.Role) *Role {
	if r == nil {
		return nil
	}
	return &Role{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		CanDelete:    r.CanDelete,
		Capabilities: auth.ParseCapabilities(r.Capabilities, r.CanDelete),
		CreatedAt:    r.CreatedAt,
	}
}

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:           u.ID,
		EmployeeID:   u.EmployeeID,
		Username:     u.Username,
		FullName:     u.FullName,
		Email:        u.Email,
		Phone:        u.Phone,
		PasswordHash: u.PasswordHash,
		RoleID:       u.RoleID,
		IsActive:     u.IsActive,
		IsDeleted:    u.IsDeleted,
		OTPCode:      u.OTPCode,
		OTPExpiry:    u.OTPExpiry,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:           u.ID,
		EmployeeID:   u.EmployeeID,
		Username:     u.Username,
		FullName:     u.FullName,
		Email:        u.Email,
		Phone:        u.Phone,
		PasswordHash: u.PasswordHash,
		RoleID:       u.RoleID,
		Role:         RoleFromDataModel(u.Role),
		IsActive:     u.IsActive,
		IsDeleted:    u.IsDeleted,
		OTPCode:      u.OTPCode,
		OTPExpiry:    u.OTPExpiry,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
