package auth

import (
	"strings"

	errors "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/core/common/validation"
)

// LoginDTO accepts either a username or an email alongside the password.
type LoginDTO struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login is the identifier used for the credential lookup.
func (d LoginDTO) Login() string {
	if u := strings.TrimSpace(d.Username); u != "" {
		return u
	}
	return strings.TrimSpace(d.Email)
}

func (d LoginDTO) Validate() error {
	v := validation.NewValidator()
	if d.Login() == "" {
		v.Add("username", "This field is required.", errors.ErrCodeRequired)
	}
	v.Field("password", d.Password).Required()
	return v.Err()
}

// RefreshTokenDTO for refresh token requests
type RefreshTokenDTO struct {
	RefreshToken string `json:"refresh_token"`
}

func (d RefreshTokenDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("refresh_token", d.RefreshToken).Required()
	return v.Err()
}
