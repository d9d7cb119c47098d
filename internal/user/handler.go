package user

import (
	"context"
	"net/http"
	"strconv"

	apperrors "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/auth"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/transport"
)

type ServiceAPI interface {
	CreateUser(ctx context.Context, p auth.Principal, dto CreateUserDTO) (*User, error)
	ListUsers(ctx context.Context, filter ListUsersFilter) (*ListUsersResponse, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	GetProfile(ctx context.Context, p auth.Principal) (*Profile, error)
	UpdateProfile(ctx context.Context, p auth.Principal, dto UpdateProfileDTO) (*Profile, error)
	UpdateUser(ctx context.Context, p auth.Principal, id int64, dto UpdateUserDTO) (*User, error)
	ChangePassword(ctx context.Context, p auth.Principal, dto ChangePasswordDTO) error
	ResetPassword(ctx context.Context, p auth.Principal, id int64, dto ResetPasswordDTO) error
	DeleteUser(ctx context.Context, p auth.Principal, id int64) error
	RequestPasswordReset(ctx context.Context, dto RequestPasswordResetDTO) error
	ConfirmPasswordReset(ctx context.Context, dto ConfirmPasswordResetDTO) error
	ListRoles(ctx context.Context) ([]*Role, error)
	GetRole(ctx context.Context, id int64) (*Role, error)
	CreateRole(ctx context.Context, p auth.Principal, dto CreateRoleDTO) (*Role, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: base,
		Service:     svc,
	}
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, apperrors.ErrMissingToken)
	}
	return p, ok
}

// List handles GET /users
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListUsersFilter{Search: q.Get("search")}
	if raw := q.Get("role_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.RoleID = &id
		}
	}
	if raw := q.Get("is_active"); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			filter.IsActive = &b
		}
	}
	filter.Limit, filter.Offset = h.ParsePagination(r)

	resp, err := h.Service.ListUsers(r.Context(), filter)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// Create handles POST /users
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var dto CreateUserDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	u, err := h.Service.CreateUser(r.Context(), p, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	u, err := h.Service.GetUser(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var dto UpdateUserDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	u, err := h.Service.UpdateUser(r.Context(), p, id, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if err := h.Service.DeleteUser(r.Context(), p, id); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Profile handles GET /users/profile
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	profile, err := h.Service.GetProfile(r.Context(), p)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, profile)
}

// UpdateProfile handles PUT /users/profile and PUT /users/profile/update
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var dto UpdateProfileDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	profile, err := h.Service.UpdateProfile(r.Context(), p, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var dto ChangePasswordDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if err := h.Service.ChangePassword(r.Context(), p, dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteDetail(w, http.StatusOK, "Password changed successfully.")
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var dto ResetPasswordDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if err := h.Service.ResetPassword(r.Context(), p, id, dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteDetail(w, http.StatusOK, "Password reset successfully.")
}

// RequestPasswordReset handles POST /password-reset/request
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var dto RequestPasswordResetDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if err := h.Service.RequestPasswordReset(r.Context(), dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteDetail(w, http.StatusOK, "OTP sent to your email.")
}

// ConfirmPasswordReset handles POST /password-reset/verify
func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var dto ConfirmPasswordResetDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if err := h.Service.ConfirmPasswordReset(r.Context(), dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteDetail(w, http.StatusOK, "Password reset successful.")
}

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Service.ListRoles(r.Context())
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, roles)
}

func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	role, err := h.Service.GetRole(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, role)
}

func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var dto CreateRoleDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	role, err := h.Service.CreateRole(r.Context(), p, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, role)
}
