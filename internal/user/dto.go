package user

import (
	"strings"

	errors "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/auth"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/common/validation"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

type CreateUserDTO struct {
	// EmployeeID is normally assigned; an explicit "PTn" is accepted for imports.
	EmployeeID string `json:"employee_id"`
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
	RoleID     int64  `json:"role_id"`
}

func (d *CreateUserDTO) Normalize() {
	d.EmployeeID = strings.TrimSpace(d.EmployeeID)
	d.Username = strings.TrimSpace(d.Username)
	d.FullName = strings.TrimSpace(d.FullName)
	d.Email = strings.TrimSpace(d.Email)
	d.Phone = strings.TrimSpace(d.Phone)
}

func (d CreateUserDTO) validator() *validation.ValidationBuilder {
	v := validation.NewValidator()
	v.Field("username", d.Username).Required().MaxLength(150).Username()
	v.Field("full_name", d.FullName).MaxLength(100)
	v.Field("email", d.Email).Required().MaxLength(254).Email()
	v.Field("phone", d.Phone).MaxLength(15)
	v.Field("password", d.Password).Required().Password()
	v.Field("role_id", d.RoleID).Required()
	if d.EmployeeID != "" {
		if _, ok := ParseEmployeeID(d.EmployeeID); !ok {
			v.Add("employee_id", "Employee ID must look like PT<number>.", errors.ErrCodeInvalidFormat)
		}
	}
	return v
}

func (d CreateUserDTO) Validate() error {
	return d.validator().Err()
}

// UpdateProfileDTO carries the fields a user may change on their own account.
type UpdateProfileDTO struct {
	Username *string `json:"username"`
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
}

func (d UpdateProfileDTO) Validate() error {
	v := validation.NewValidator()
	if d.Username != nil {
		v.Field("username", *d.Username).Required().MaxLength(150).Username()
	}
	if d.FullName != nil {
		v.Field("full_name", *d.FullName).MaxLength(100)
	}
	if d.Email != nil {
		v.Field("email", *d.Email).Required().MaxLength(254).Email()
	}
	if d.Phone != nil {
		v.Field("phone", *d.Phone).MaxLength(15)
	}
	return v.Err()
}

type UpdateUserDTO struct {
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	RoleID   *int64  `json:"role_id"`
	IsActive *bool   `json:"is_active"`
}

func (d UpdateUserDTO) Validate() error {
	v := validation.NewValidator()
	if d.FullName != nil {
		v.Field("full_name", *d.FullName).MaxLength(100)
	}
	if d.Email != nil {
		v.Field("email", *d.Email).Required().MaxLength(254).Email()
	}
	if d.Phone != nil {
		v.Field("phone", *d.Phone).MaxLength(15)
	}
	if d.RoleID != nil {
		v.Field("role_id", *d.RoleID).Required()
	}
	return v.Err()
}

type ChangePasswordDTO struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (d ChangePasswordDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("old_password", d.OldPassword).Required()
	v.Field("new_password", d.NewPassword).Required().Password()
	return v.Err()
}

type ResetPasswordDTO struct {
	NewPassword string `json:"new_password"`
}

func (d ResetPasswordDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("new_password", d.NewPassword).Required().Password()
	return v.Err()
}

type RequestPasswordResetDTO struct {
	Email string `json:"email"`
}

func (d RequestPasswordResetDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("email", strings.TrimSpace(d.Email)).Required().Email()
	return v.Err()
}

type ConfirmPasswordResetDTO struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

func (d ConfirmPasswordResetDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("email", strings.TrimSpace(d.Email)).Required().Email()
	v.Field("otp", d.OTP).Required()
	v.Field("new_password", d.NewPassword).Required().Password()
	return v.Err()
}

type CreateRoleDTO struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	CanDelete    bool     `json:"can_delete"`
	Capabilities []string `json:"capabilities"`
}

func (d CreateRoleDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("name", strings.TrimSpace(d.Name)).Required().MaxLength(50)
	for _, c := range d.Capabilities {
		if !auth.Capability(c).Valid() {
			v.Add("capabilities", "\""+c+"\" is not a valid capability.", errors.ErrCodeInvalidFormat)
		}
	}
	return v.Err()
}

func (d CreateRoleDTO) capabilities() []auth.Capability {
	caps := make([]auth.Capability, 0, len(d.Capabilities))
	for _, c := range d.Capabilities {
		caps = append(caps, auth.Capability(c))
	}
	return caps
}

type ListUsersFilter struct {
	RoleID   *int64
	IsActive *bool
	Search   string
	Limit    int
	Offset   int
}

func (f *ListUsersFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Search = strings.TrimSpace(f.Search)
}

type ListUsersResponse struct {
	Count   int64   `json:"count"`
	Results []*User `json:"results"`
}
