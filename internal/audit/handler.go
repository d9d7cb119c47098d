package audit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/internal/transport"
)

type ServiceAPI interface {
	List(ctx context.Context, filter ListFilter) (*ListResponse, error)
	Get(ctx context.Context, id int64) (*Log, error)
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
		ModelName: q.Get("model_name"),
		Action:    q.Get("action"),
		ObjectID:  q.Get("object_id"),
	}
	if raw := q.Get("user_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.UserID = &id
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

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	l, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, l)
}
