package deletion

import (
	"context"
	"net/http"
	"strconv"

	apperrors "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/auth"
	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/transport"
)

type ServiceAPI interface {
	Create(ctx context.Context, p auth.Principal, dto CreateRequestDTO) (*Request, error)
	List(ctx context.Context, filter ListFilter) (*ListResponse, error)
	Get(ctx context.Context, id int64) (*Request, error)
	Approve(ctx context.Context, p auth.Principal, id int64) (*Request, error)
	Reject(ctx context.Context, p auth.Principal, id int64, dto RejectDTO) (*Request, error)
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

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Status: q.Get("status"),
		Module: q.Get("module"),
	}
	if raw := q.Get("requested_by"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.RequestedBy = &id
		}
	}
	filter.Limit, filter.Offset = h.ParsePagination(r)

	resp, err := h.Service.List(r.Context(), filter)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, apperrors.ErrMissingToken)
		return
	}

	var dto CreateRequestDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	req, err := h.Service.Create(r.Context(), p, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, req)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	req, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, req)
}

// Approve handles POST /deletion-requests/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, apperrors.ErrMissingToken)
		return
	}
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	req, err := h.Service.Approve(r.Context(), p, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, req)
}

// Reject handles POST /deletion-requests/{id}/reject; the body is optional.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, apperrors.ErrMissingToken)
		return
	}
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var dto RejectDTO
	if err := h.DecodeOptionalJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	req, err := h.Service.Reject(r.Context(), p, id, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, req)
}
